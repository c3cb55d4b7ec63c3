// Package priceindex owns the Price/PriceTick/Candle1m read-and-upsert
// paths that run outside the block processor's batched hot loop: the
// standalone price ticker and fast-track's initial seed write both need
// a price visible immediately, before the next batch flush.
package priceindex

import (
	"context"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/shopspring/decimal"

	"github.com/zigscan/amm-indexer/models"
)

// Repository persists Price/PriceTick/Candle1m rows synchronously,
// grounded on the teacher's coin.Repository (single-row upsert plus an
// append-only side table written in the same call).
type Repository struct {
	db *pg.DB
}

// NewRepository constructs a Repository.
func NewRepository(db *pg.DB) *Repository {
	return &Repository{db: db}
}

// UpsertPrice writes the latest scalar price for (tokenID, poolID) and
// appends a PriceTick sample in the same transaction. The Price row's
// updated_at is set to at unconditionally, even when the stored value
// is newer.
func (r *Repository) UpsertPrice(tokenID, poolID uint64, priceNative decimal.Decimal, isPairNative bool, at time.Time) error {
	return r.db.RunInTransaction(context.Background(), func(tx *pg.Tx) error {
		p := &models.Price{
			TokenID:      tokenID,
			PoolID:       poolID,
			PriceNative:  priceNative,
			IsPairNative: isPairNative,
			UpdatedAt:    at,
		}
		// Last-write-wins by design: the block-time path and the
		// standalone reserves ticker both call this with no ordering
		// guarantee between them, and neither should block on the other.
		_, err := tx.Model(p).
			OnConflict("(token_id, pool_id) DO UPDATE").
			Set("price_native = EXCLUDED.price_native, is_pair_native = EXCLUDED.is_pair_native, updated_at = EXCLUDED.updated_at").
			Insert()
		if err != nil {
			return err
		}

		tick := &models.PriceTick{
			CreatedAt:   at,
			TokenID:     tokenID,
			PoolID:      poolID,
			PriceNative: priceNative,
		}
		_, err = tx.Model(tick).OnConflict("DO NOTHING").Insert()
		return err
	})
}

// LatestByPool returns the current Price row for poolID's base token, if
// any.
func (r *Repository) LatestByPool(poolID uint64) (*models.Price, error) {
	p := new(models.Price)
	err := r.db.Model(p).Where("pool_id = ?", poolID).Select()
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SeedCandle writes a single-trade open=high=low=close candle directly,
// bypassing batch.CandleWriter, for the fast-track listener's initial
// seed where the candle must be visible before the next batch flush.
// ON CONFLICT DO NOTHING since the block processor's own swap path may
// have already raced ahead and created this minute's row first.
func (r *Repository) SeedCandle(poolID uint64, minute time.Time, price, volume decimal.Decimal, tradeCount int64) error {
	c := &models.Candle1m{
		PoolID:       poolID,
		Minute:       minute,
		Open:         price,
		High:         price,
		Low:          price,
		Close:        price,
		VolumeNative: volume,
		TradeCount:   tradeCount,
	}
	_, err := r.db.Model(c).OnConflict("DO NOTHING").Insert()
	return err
}

// LatestCandle returns the 1-minute candle with the most recent minute
// for poolID.
func (r *Repository) LatestCandle(poolID uint64) (*models.Candle1m, error) {
	c := new(models.Candle1m)
	err := r.db.Model(c).
		Where("pool_id = ?", poolID).
		Order("minute DESC").
		Limit(1).
		Select()
	if err != nil {
		return nil, err
	}
	return c, nil
}
