package models

import "time"

type TradeAction string

const (
	TradeActionSwap     TradeAction = "swap"
	TradeActionProvide  TradeAction = "provide"
	TradeActionWithdraw TradeAction = "withdraw"
)

type TradeDirection string

const (
	TradeDirectionBuy      TradeDirection = "buy"
	TradeDirectionSell     TradeDirection = "sell"
	TradeDirectionProvide  TradeDirection = "provide"
	TradeDirectionWithdraw TradeDirection = "withdraw"
)

// Trade is an immutable event record. Its natural key is
// (created_at, tx_hash, pool_id, msg_index); duplicates on replay must be
// silently ignored by the writer (ON CONFLICT DO NOTHING).
type Trade struct {
	tableName struct{} `pg:"trades"`

	CreatedAt        time.Time      `pg:"created_at,pk"`
	TxHash           string         `pg:"tx_hash,pk"`
	PoolID           uint64         `pg:"pool_id,pk"`
	MsgIndex         int            `pg:"msg_index,pk,use_zero"`
	Action           TradeAction    `pg:"action"`
	Direction        TradeDirection `pg:"direction"`
	OfferAmountBase  *string        `pg:"offer_amount_base"`
	AskAmountBase    *string        `pg:"ask_amount_base"`
	ReturnAmountBase *string        `pg:"return_amount_base"`
	ReserveBaseBase  *string        `pg:"reserve_base_base"`
	ReserveQuoteBase *string        `pg:"reserve_quote_base"`
	Height           uint64         `pg:"height,use_zero"`
	Signer           string         `pg:"signer"`
	IsRouter         bool           `pg:"is_router,use_zero"`
}
