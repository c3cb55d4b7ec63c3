package models

import "time"

// TokenKind classifies how a denom came into existence on chain.
type TokenKind string

const (
	TokenKindNative  TokenKind = "native"
	TokenKindFactory TokenKind = "factory"
	TokenKindIBC     TokenKind = "ibc"
	TokenKindCW20    TokenKind = "cw20"
)

// DefaultExponent is the native denom's exponent. It is also the quote
// exponent in native-quoted price math, the native volume scale, and the
// fallback for IBC denoms whose metadata gives none; other denoms without
// resolved metadata keep exponent 0 (unresolved).
const DefaultExponent = 6

// NativeDenom is the canonical base unit of the chain.
const NativeDenom = "uzig"

// Token is the identity of an asset. Created on first sighting with a
// minimal stub, never destroyed; the Metadata Resolver is the only writer
// of its discretionary fields and must never clobber a non-null value
// with null (see token.MergeNonNull).
type Token struct {
	tableName struct{} `pg:"tokens"`

	ID              uint64    `pg:"id,pk"`
	Denom           string    `pg:"denom,unique"`
	Kind            TokenKind `pg:"kind"`
	Name            *string   `pg:"name"`
	Symbol          *string   `pg:"symbol"`
	DisplayUnit     *string   `pg:"display_unit"`
	Image           *string   `pg:"image"`
	Website         *string   `pg:"website"`
	Twitter         *string   `pg:"twitter"`
	Telegram        *string   `pg:"telegram"`
	Description     *string   `pg:"description"`
	Exponent        int       `pg:"exponent,use_zero"`
	MaxSupplyBase   *string   `pg:"max_supply_base"`
	TotalSupplyBase *string   `pg:"total_supply_base"`
	CreatedAt       time.Time `pg:"created_at"`
	UpdatedAt       time.Time `pg:"updated_at"`
}

// IsNative reports whether the token is the chain's native asset.
func (t *Token) IsNative() bool {
	return t.Denom == NativeDenom
}
