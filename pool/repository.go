// Package pool owns the Pool/PoolState domain: upsert on create_pair,
// an in-process cache keyed by pair contract for the block processor's
// phase-1/phase-1.5 lookups, and the shared reserves→price formula used
// by both the block processor and the standalone price ticker.
package pool

import (
	"github.com/go-pg/pg/v10"

	"github.com/zigscan/amm-indexer/cache"
	"github.com/zigscan/amm-indexer/models"
)

// Repository persists Pool/PoolState rows, grounded on the teacher's
// liquidity_pool.Repository (same single-table OnConflict-DO-UPDATE
// upsert shape, generalized to the AMM pair model).
type Repository struct {
	db    *pg.DB
	cache *cache.LRU[string, *models.Pool]
}

// NewRepository constructs a Repository with a pool cache capped at
// cacheSize entries.
func NewRepository(db *pg.DB, cacheSize int) *Repository {
	return &Repository{db: db, cache: cache.NewLRU[string, *models.Pool](cacheSize)}
}

// Upsert persists p and refreshes the in-process cache, used by
// Phase 1 of the block processor on every create_pair event.
func (r *Repository) Upsert(p *models.Pool) error {
	_, err := r.db.Model(p).OnConflict("(pair_contract) DO UPDATE").Insert()
	if err != nil {
		return err
	}
	r.cache.Add(p.PairContract, p)
	return nil
}

// ByPairContract returns the cached Pool, falling back to the database
// and populating the cache on a miss (Phase 1.5 prefetch).
func (r *Repository) ByPairContract(pairContract string) (*models.Pool, error) {
	if p, ok := r.cache.Get(pairContract); ok {
		return p, nil
	}

	p := new(models.Pool)
	if err := r.db.Model(p).Where("pair_contract = ?", pairContract).Select(); err != nil {
		return nil, err
	}
	r.cache.Add(pairContract, p)
	return p, nil
}

// NativeQuotedPools returns every pool quoted in the native denom, the
// price ticker's polling universe (§4.H).
func (r *Repository) NativeQuotedPools() ([]*models.Pool, error) {
	var pools []*models.Pool
	if err := r.db.Model(&pools).Where("is_native_quote = true").Select(); err != nil {
		return nil, err
	}
	return pools, nil
}

// UpsertState persists the latest raw reserves for a single pool
// synchronously, outside of the batch writer path.
func (r *Repository) UpsertState(s *models.PoolState) error {
	_, err := r.db.Model(s).
		OnConflict("(pool_id) DO UPDATE").
		Set("reserve_base_base = EXCLUDED.reserve_base_base, reserve_quote_base = EXCLUDED.reserve_quote_base, updated_at = EXCLUDED.updated_at").
		Insert()
	return err
}
