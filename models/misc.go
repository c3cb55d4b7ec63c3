package models

import "time"

// IndexState is the singleton row holding the last fully committed
// height. Its only writer is checkpoint.Store.
type IndexState struct {
	tableName struct{} `pg:"index_state"`

	ID         string `pg:"id,pk"`
	LastHeight uint64 `pg:"last_height,use_zero"`
}

// IndexStateBlockID is the well-known singleton id for the block
// checkpoint row.
const IndexStateBlockID = "block"

// FXRate is a minute-bucketed external USD/native exchange rate.
type FXRate struct {
	tableName struct{} `pg:"fx_rates"`

	Ts           time.Time `pg:"ts,pk"`
	NativePerUSD float64   `pg:"native_per_usd"`
}

// PairCreated is the payload published on the internal pair_created
// notification channel.
type PairCreated struct {
	PoolID        uint64 `json:"pool_id"`
	PairContract  string `json:"pair_contract"`
	BaseDenom     string `json:"base_denom"`
	QuoteDenom    string `json:"quote_denom"`
	BaseTokenID   uint64 `json:"base_token_id"`
	QuoteTokenID  uint64 `json:"quote_token_id"`
	IsNativeQuote bool   `json:"is_native_quote"`
}
