package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bucket is a rolling time-window label over which a matrix row aggregates.
type Bucket string

const (
	Bucket30m Bucket = "30m"
	Bucket1h  Bucket = "1h"
	Bucket4h  Bucket = "4h"
	Bucket24h Bucket = "24h"
)

// BucketWindows enumerates every bucket in the fixed cycle order the
// Rollup Engine iterates, paired with its window length in minutes.
var BucketWindows = []struct {
	Bucket  Bucket
	Minutes int
}{
	{Bucket30m, 30},
	{Bucket1h, 60},
	{Bucket4h, 240},
	{Bucket24h, 1440},
}

// PoolMatrix is a rolling per-bucket view of a pool's trading activity
// and TVL, owned exclusively by the Rollup Engine.
type PoolMatrix struct {
	tableName struct{} `pg:"pool_matrix"`

	PoolID           uint64          `pg:"pool_id,pk"`
	Bucket           Bucket          `pg:"bucket,pk"`
	VolBuyQuoteDisp  decimal.Decimal `pg:"vol_buy_quote_disp,type:numeric"`
	VolSellQuoteDisp decimal.Decimal `pg:"vol_sell_quote_disp,type:numeric"`
	VolBuyNative     decimal.Decimal `pg:"vol_buy_native,type:numeric"`
	VolSellNative    decimal.Decimal `pg:"vol_sell_native,type:numeric"`
	BuyTxCount       int64           `pg:"buy_tx_count,use_zero"`
	SellTxCount      int64           `pg:"sell_tx_count,use_zero"`
	TraderCount      int64           `pg:"trader_count,use_zero"`
	TVLNative        decimal.Decimal `pg:"tvl_native,type:numeric"`
	ReserveBaseDisp  decimal.Decimal `pg:"reserve_base_disp,type:numeric"`
	ReserveQuoteDisp decimal.Decimal `pg:"reserve_quote_disp,type:numeric"`
	UpdatedAt        time.Time       `pg:"updated_at"`
}

// TokenMatrix is a rolling per-bucket view of a token's price and market
// stats, owned exclusively by the Rollup Engine.
type TokenMatrix struct {
	tableName struct{} `pg:"token_matrix"`

	TokenID       uint64          `pg:"token_id,pk"`
	Bucket        Bucket          `pg:"bucket,pk"`
	PriceNative   decimal.Decimal `pg:"price_native,type:numeric"`
	MarketCapNative decimal.Decimal `pg:"market_cap_native,type:numeric"`
	FDVNative     decimal.Decimal `pg:"fdv_native,type:numeric"`
	Holders       int64           `pg:"holders,use_zero"`
	UpdatedAt     time.Time       `pg:"updated_at"`
}
