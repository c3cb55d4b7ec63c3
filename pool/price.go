package pool

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zigscan/amm-indexer/cache"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/helpers"
)

// PriceFromReserves computes native-per-DISPLAY-unit-of-base price
// from two base-unit reserve strings, per §4.D/§4.H's shared formula:
// price = (quoteRaw / 10^quoteExp) / (baseRaw / 10^baseExp).
func PriceFromReserves(baseRaw, quoteRaw string, baseExponent, quoteExponent int) (decimal.Decimal, error) {
	baseDisp, err := helpers.ToDisplay(baseRaw, baseExponent)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("pool: base reserve: %w", err)
	}
	quoteDisp, err := helpers.ToDisplay(quoteRaw, quoteExponent)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("pool: quote reserve: %w", err)
	}
	if baseDisp.IsZero() {
		return decimal.Decimal{}, fmt.Errorf("pool: zero base reserve")
	}
	return quoteDisp.Div(baseDisp), nil
}

// poolQueryAsset is one leg of a CosmWasm AMM contract's {"pool":{}}
// smart-query response.
type poolQueryAsset struct {
	Info struct {
		NativeToken *struct {
			Denom string `json:"denom"`
		} `json:"native_token"`
		Token *struct {
			ContractAddr string `json:"contract_addr"`
		} `json:"token"`
	} `json:"info"`
	Amount string `json:"amount"`
}

type poolQueryResponse struct {
	Assets []poolQueryAsset `json:"assets"`
}

// Reserves is a resolved (denom, amount_base) pair per pool leg.
type Reserves struct {
	BaseDenom  string
	BaseRaw    string
	QuoteDenom string
	QuoteRaw   string
}

// ReservesFetcher queries live pool reserves via LCD smart query,
// TTL-caching results for ~2s and coalescing concurrent callers for the
// same pair contract, per §4.H.
type ReservesFetcher struct {
	chain *chain.Client
	ttl   *cache.TTL[string, Reserves]
	sf    *cache.SingleFlight
}

// NewReservesFetcher constructs a ReservesFetcher.
func NewReservesFetcher(c *chain.Client) *ReservesFetcher {
	return &ReservesFetcher{
		chain: c,
		ttl:   cache.NewTTL[string, Reserves](2*time.Second, 1024),
		sf:    &cache.SingleFlight{},
	}
}

// Fetch returns the live reserves of pairContract, identifying base vs
// quote by matching baseDenom/quoteDenom against the query response.
func (f *ReservesFetcher) Fetch(ctx context.Context, pairContract, baseDenom, quoteDenom string) (Reserves, error) {
	if r, ok := f.ttl.Get(pairContract); ok {
		return r, nil
	}

	v, err, _ := f.sf.Do(pairContract, func() (interface{}, error) {
		raw, err := f.chain.SmartQuery(ctx, pairContract, map[string]interface{}{"pool": struct{}{}})
		if err != nil {
			return Reserves{}, err
		}

		var resp poolQueryResponse
		if err := json.Unmarshal(raw, &resp); err != nil {
			return Reserves{}, fmt.Errorf("pool: decoding smart query response: %w", err)
		}

		r, err := matchReserves(resp.Assets, baseDenom, quoteDenom)
		if err != nil {
			return Reserves{}, err
		}
		f.ttl.Set(pairContract, r)
		return r, nil
	})
	if err != nil {
		return Reserves{}, err
	}
	return v.(Reserves), nil
}

func matchReserves(assets []poolQueryAsset, baseDenom, quoteDenom string) (Reserves, error) {
	var r Reserves
	for _, a := range assets {
		denom := assetDenom(a)
		switch denom {
		case baseDenom:
			r.BaseDenom, r.BaseRaw = denom, a.Amount
		case quoteDenom:
			r.QuoteDenom, r.QuoteRaw = denom, a.Amount
		}
	}
	if r.BaseRaw == "" || r.QuoteRaw == "" {
		return Reserves{}, fmt.Errorf("pool: smart query response missing base/quote reserves")
	}
	return r, nil
}

func assetDenom(a poolQueryAsset) string {
	if a.Info.NativeToken != nil {
		return a.Info.NativeToken.Denom
	}
	if a.Info.Token != nil {
		return a.Info.Token.ContractAddr
	}
	return ""
}
