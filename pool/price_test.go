package pool

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPriceFromReserves_ComputesNativePerDisplayUnit(t *testing.T) {
	// 1,000,000 ZIG (10^12 uzig, exp 6) quote reserve, 500 ALPHA (exp 6)
	// base reserve => price = 2000 ZIG per ALPHA.
	price, err := PriceFromReserves("500000000", "1000000000000", 6, 6)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2000)))
}

func TestPriceFromReserves_DifferingExponents(t *testing.T) {
	price, err := PriceFromReserves("1000000", "2000000", 6, 0)
	assert.NoError(t, err)
	assert.True(t, price.Equal(decimal.NewFromInt(2000000)))
}

func TestPriceFromReserves_ZeroBaseReserveErrors(t *testing.T) {
	_, err := PriceFromReserves("0", "1000000", 6, 6)
	assert.Error(t, err)
}

func TestPriceFromReserves_InvalidAmountErrors(t *testing.T) {
	_, err := PriceFromReserves("not-a-number", "1000000", 6, 6)
	assert.Error(t, err)
}

func TestMatchReserves_IdentifiesBaseAndQuoteByDenom(t *testing.T) {
	assets := []poolQueryAsset{
		{Amount: "100"},
		{Amount: "200"},
	}
	assets[0].Info.NativeToken = &struct {
		Denom string `json:"denom"`
	}{Denom: "uzig"}
	assets[1].Info.Token = &struct {
		ContractAddr string `json:"contract_addr"`
	}{ContractAddr: "zig1contract"}

	r, err := matchReserves(assets, "zig1contract", "uzig")
	assert.NoError(t, err)
	assert.Equal(t, "zig1contract", r.BaseDenom)
	assert.Equal(t, "200", r.BaseRaw)
	assert.Equal(t, "uzig", r.QuoteDenom)
	assert.Equal(t, "100", r.QuoteRaw)
}

func TestMatchReserves_MissingLegErrors(t *testing.T) {
	assets := []poolQueryAsset{{Amount: "100"}}
	assets[0].Info.NativeToken = &struct {
		Denom string `json:"denom"`
	}{Denom: "uzig"}

	_, err := matchReserves(assets, "zig1contract", "uzig")
	assert.Error(t, err)
}
