// Package token owns Token identity resolution (denom → stable id, with
// a sync.Map cache mirroring the teacher's coin.Repository) and the
// Metadata Resolver: merging on-chain metadata, IBC denom traces,
// factory supply, and asset-registry data into a canonical row without
// ever clobbering a non-null field with null.
package token

import (
	"sync"

	"github.com/go-pg/pg/v10"

	"github.com/zigscan/amm-indexer/models"
)

// Repository resolves and persists Token rows, caching denom→id lookups
// the way the teacher's coin.Repository caches symbol→id.
type Repository struct {
	db        *pg.DB
	cache     sync.Map // denom -> uint64
	denomByID sync.Map // uint64 -> string
}

// NewRepository constructs a Repository backed by db.
func NewRepository(db *pg.DB) *Repository {
	return &Repository{db: db}
}

// FindOrCreateStub returns the id for denom, inserting a minimal stub
// row on first sighting: kind is classified from the denom's shape,
// exponent is left at 0 (unresolved) except for the native denom, which
// is always 6. The Metadata Resolver fills in the real exponent async.
func (r *Repository) FindOrCreateStub(denom string) (uint64, error) {
	if id, ok := r.cache.Load(denom); ok {
		return id.(uint64), nil
	}

	kind := classifyDenom(denom)
	exponent := 0
	if kind == models.TokenKindNative {
		exponent = models.DefaultExponent
	}

	t := &models.Token{
		Denom:    denom,
		Kind:     kind,
		Exponent: exponent,
	}

	_, err := r.db.Model(t).
		Where("denom = ?denom").
		OnConflict("DO NOTHING").
		SelectOrInsert()
	if err != nil {
		return 0, err
	}

	r.cache.Store(denom, t.ID)
	r.denomByID.Store(t.ID, t.Denom)
	return t.ID, nil
}

// DenomByID returns the denom for a token id, populated from the same
// cache FindOrCreateStub fills and falling back to a database lookup
// for ids resolved before this process started.
func (r *Repository) DenomByID(id uint64) (string, error) {
	if denom, ok := r.denomByID.Load(id); ok {
		return denom.(string), nil
	}
	t, err := r.ByID(id)
	if err != nil {
		return "", err
	}
	r.denomByID.Store(id, t.Denom)
	r.cache.Store(t.Denom, id)
	return t.Denom, nil
}

// ByID loads a Token by id without using the cache (the Metadata
// Resolver always needs the freshest row).
func (r *Repository) ByID(id uint64) (*models.Token, error) {
	t := &models.Token{ID: id}
	if err := r.db.Model(t).WherePK().Select(); err != nil {
		return nil, err
	}
	return t, nil
}

// ExponentByID returns the token's current exponent, a plain
// uncached read since the Metadata Resolver can change it at any time
// and the block processor's price path needs the freshest value.
func (r *Repository) ExponentByID(id uint64) (int, error) {
	t, err := r.ByID(id)
	if err != nil {
		return 0, err
	}
	return t.Exponent, nil
}

// ByDenom loads a Token by denom without using the cache.
func (r *Repository) ByDenom(denom string) (*models.Token, error) {
	t := new(models.Token)
	if err := r.db.Model(t).Where("denom = ?", denom).Select(); err != nil {
		return nil, err
	}
	return t, nil
}

// classifyDenom infers a Token's kind from its denom string shape.
func classifyDenom(denom string) models.TokenKind {
	switch {
	case denom == models.NativeDenom:
		return models.TokenKindNative
	case len(denom) > 4 && denom[:4] == "ibc/":
		return models.TokenKindIBC
	case len(denom) > 8 && denom[:8] == "factory/":
		return models.TokenKindFactory
	default:
		return models.TokenKindCW20
	}
}

// MergeNonNull copies every non-nil discretionary field from patch into
// existing, leaving fields existing already has populated untouched —
// the "never clobber a non-null value with null" invariant owned by
// this component.
func MergeNonNull(existing *models.Token, patch *models.Token) {
	if patch.Name != nil {
		existing.Name = patch.Name
	}
	if patch.Symbol != nil {
		existing.Symbol = patch.Symbol
	}
	if patch.DisplayUnit != nil {
		existing.DisplayUnit = patch.DisplayUnit
	}
	if patch.Image != nil {
		existing.Image = patch.Image
	}
	if patch.Website != nil {
		existing.Website = patch.Website
	}
	if patch.Twitter != nil {
		existing.Twitter = patch.Twitter
	}
	if patch.Telegram != nil {
		existing.Telegram = patch.Telegram
	}
	if patch.Description != nil {
		existing.Description = patch.Description
	}
	if patch.MaxSupplyBase != nil {
		existing.MaxSupplyBase = patch.MaxSupplyBase
	}
	if patch.TotalSupplyBase != nil {
		existing.TotalSupplyBase = patch.TotalSupplyBase
	}
}

// SetResolved applies the Resolver's authoritative kind/exponent
// determination, which — unlike the discretionary fields above — is
// always overwritten once resolved rather than merged.
func SetResolved(existing *models.Token, kind models.TokenKind, exponent int) {
	existing.Kind = kind
	existing.Exponent = exponent
}

// Save persists existing's current field values.
func (r *Repository) Save(existing *models.Token) error {
	_, err := r.db.Model(existing).WherePK().Update()
	return err
}
