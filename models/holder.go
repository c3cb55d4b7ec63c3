package models

import "time"

// Holder is a single (token, address) balance snapshot, owned exclusively
// by the Holders Sweeper.
type Holder struct {
	tableName struct{} `pg:"holders"`

	TokenID     uint64    `pg:"token_id,pk"`
	Address     string    `pg:"address,pk"`
	BalanceBase string    `pg:"balance_base"`
	UpdatedAt   time.Time `pg:"updated_at"`
}

// HolderStats is the per-token count of holders with a positive balance.
type HolderStats struct {
	tableName struct{} `pg:"holder_stats"`

	TokenID      uint64    `pg:"token_id,pk"`
	HoldersCount int64     `pg:"holders_count,use_zero"`
	UpdatedAt    time.Time `pg:"updated_at"`
}
