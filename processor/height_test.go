package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zigscan/amm-indexer/event"
)

func TestMatchReservesByDenom_AssignsByDenom(t *testing.T) {
	assets := []event.Asset{
		{Denom: "factory/x/ALPHA", AmountBase: "760000000"},
		{Denom: "uzig", AmountBase: "2500000"},
	}
	base, quote := matchReservesByDenom(assets, "factory/x/ALPHA", "uzig")
	assert.Equal(t, "760000000", base)
	assert.Equal(t, "2500000", quote)
}

func TestMatchReservesByDenom_MissingLegLeavesEmpty(t *testing.T) {
	assets := []event.Asset{{Denom: "uzig", AmountBase: "2500000"}}
	base, quote := matchReservesByDenom(assets, "factory/x/ALPHA", "uzig")
	assert.Equal(t, "", base)
	assert.Equal(t, "2500000", quote)
}

func TestMatchReserveAssetAttrs_AssignsByAttributeDenom(t *testing.T) {
	attrs := event.AttrMap{
		"reserve_asset1_denom":  "uzig",
		"reserve_asset1_amount": "2000000",
		"reserve_asset2_denom":  "factory/x/ALPHA",
		"reserve_asset2_amount": "1000000000",
	}
	base, quote := matchReserveAssetAttrs(attrs, "factory/x/ALPHA", "uzig")
	assert.Equal(t, "1000000000", base)
	assert.Equal(t, "2000000", quote)
}

func TestNonEmptyPtr(t *testing.T) {
	assert.Nil(t, nonEmptyPtr(""))
	v := nonEmptyPtr("x")
	assert.Equal(t, "x", *v)
}
