package models

import "time"

// PairType enumerates the supported AMM contract flavors.
type PairType string

const (
	PairTypeXYK                  PairType = "xyk"
	PairTypeConcentrated         PairType = "concentrated"
	PairTypeCustomConcentrated   PairType = "custom-concentrated"
)

// Pool is an AMM pair, created by the Block Processor on create_pair and
// rarely mutated thereafter.
type Pool struct {
	tableName struct{} `pg:"pools"`

	ID             uint64    `pg:"id,pk"`
	PairContract   string    `pg:"pair_contract,unique"`
	BaseTokenID    uint64    `pg:"base_token_id"`
	QuoteTokenID   uint64    `pg:"quote_token_id"`
	LPDenom        *string   `pg:"lp_denom"`
	PairType       PairType  `pg:"pair_type"`
	IsNativeQuote  bool      `pg:"is_native_quote,use_zero"`
	FactoryAddress string    `pg:"factory_address"`
	RouterAddress  *string   `pg:"router_address"`
	CreatedHeight  uint64    `pg:"created_height,use_zero"`
	CreatedTx      string    `pg:"created_tx"`
	CreatedSigner  string    `pg:"created_signer"`
	CreatedAt      time.Time `pg:"created_at"`

	BaseToken  *Token `pg:"fk:base_token_id"`
	QuoteToken *Token `pg:"fk:quote_token_id"`
}

// PoolState is the latest raw reserves per pool, one row per pool.
type PoolState struct {
	tableName struct{} `pg:"pool_state"`

	PoolID          uint64    `pg:"pool_id,pk"`
	ReserveBaseBase  string    `pg:"reserve_base_base"`
	ReserveQuoteBase string    `pg:"reserve_quote_base"`
	UpdatedAt        time.Time `pg:"updated_at"`
}
