package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is the latest scalar price per (token, pool): native units per
// one DISPLAY unit of the base token. Exactly one row per (token_id,
// pool_id); every update must increase updated_at.
type Price struct {
	tableName struct{} `pg:"prices"`

	TokenID      uint64          `pg:"token_id,pk"`
	PoolID       uint64          `pg:"pool_id,pk"`
	PriceNative  decimal.Decimal `pg:"price_native,type:numeric"`
	IsPairNative bool            `pg:"is_pair_native,use_zero"`
	UpdatedAt    time.Time       `pg:"updated_at"`
}

// PriceTick is an append-only sampled price trail, time-partitioned.
type PriceTick struct {
	tableName struct{} `pg:"price_ticks"`

	CreatedAt   time.Time       `pg:"created_at,pk"`
	TokenID     uint64          `pg:"token_id,pk"`
	PoolID      uint64          `pg:"pool_id,pk"`
	PriceNative decimal.Decimal `pg:"price_native,type:numeric"`
}

// Candle1m is OHLCV per (pool_id, minute-aligned timestamp).
type Candle1m struct {
	tableName struct{} `pg:"ohlcv_1m"`

	PoolID      uint64           `pg:"pool_id,pk"`
	Minute      time.Time        `pg:"minute,pk"`
	Open        decimal.Decimal  `pg:"open,type:numeric(36,18)"`
	High        decimal.Decimal  `pg:"high,type:numeric(36,18)"`
	Low         decimal.Decimal  `pg:"low,type:numeric(36,18)"`
	Close       decimal.Decimal  `pg:"close,type:numeric(36,18)"`
	VolumeNative decimal.Decimal `pg:"volume_native,type:numeric(36,8)"`
	TradeCount  int64            `pg:"trade_count,use_zero"`
	Liquidity   *decimal.Decimal `pg:"liquidity,type:numeric(36,18)"`
}
