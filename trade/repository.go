// Package trade provides synchronous Trade access outside the batch
// writer's hot path: the fast-track listener's "first provide_liquidity
// trade for this pool" lookup and ad hoc repository queries. High-rate
// inserts go through batch.TradeWriter instead.
package trade

import (
	"github.com/go-pg/pg/v10"

	"github.com/zigscan/amm-indexer/models"
)

// Repository reads Trade rows, grounded on the teacher's
// transaction.Repository (plain db.Model().Where().Select() shape).
type Repository struct {
	db *pg.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *pg.DB) *Repository {
	return &Repository{db: db}
}

// FirstProvideLiquidity returns the earliest provide_liquidity trade
// for poolID ordered by (height, msg_index) ascending, used by the
// fast-track listener to seed the initial price/candle.
func (r *Repository) FirstProvideLiquidity(poolID uint64) (*models.Trade, error) {
	t := new(models.Trade)
	err := r.db.Model(t).
		Where("pool_id = ? AND action = ?", poolID, models.TradeActionProvide).
		Order("height ASC", "msg_index ASC").
		Limit(1).
		Select()
	if err != nil {
		return nil, err
	}
	return t, nil
}

// RecentByPool returns the most recent count trades for poolID, most
// recent first.
func (r *Repository) RecentByPool(poolID uint64, count int) ([]*models.Trade, error) {
	var trades []*models.Trade
	err := r.db.Model(&trades).
		Where("pool_id = ?", poolID).
		Order("created_at DESC").
		Limit(count).
		Select()
	return trades, err
}
