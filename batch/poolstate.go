package batch

import (
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/models"
)

// PoolStateWriter coalesces PoolState reserve updates, deduplicating
// multiple updates to the same pool within a batch to the last-enqueued
// one before the multi-row upsert.
type PoolStateWriter struct {
	batcher *Batcher[*models.PoolState]
}

// NewPoolStateWriter constructs a PoolStateWriter flushing into db.
func NewPoolStateWriter(db *pg.DB, maxItems int, maxWait time.Duration, logger *logrus.Entry, metrics *Metrics) *PoolStateWriter {
	w := &PoolStateWriter{}
	w.batcher = New("pool_state", maxItems, maxWait, func(items []*models.PoolState) error {
		deduped := dedupeLastWinsByPoolID(items)
		_, err := db.Model(&deduped).
			OnConflict("(pool_id) DO UPDATE").
			Set("reserve_base_base = EXCLUDED.reserve_base_base, reserve_quote_base = EXCLUDED.reserve_quote_base, updated_at = EXCLUDED.updated_at").
			Insert()
		return err
	}, logger, metrics)
	return w
}

// dedupeLastWinsByPoolID keeps only the last-enqueued PoolState per
// pool, preserving relative order among the surviving entries.
func dedupeLastWinsByPoolID(items []*models.PoolState) []*models.PoolState {
	lastIndex := make(map[uint64]int, len(items))
	for i, it := range items {
		lastIndex[it.PoolID] = i
	}
	out := make([]*models.PoolState, 0, len(lastIndex))
	for i, it := range items {
		if lastIndex[it.PoolID] == i {
			out = append(out, it)
		}
	}
	return out
}

// Add enqueues a pool state update for the next flush.
func (w *PoolStateWriter) Add(s *models.PoolState) {
	w.batcher.Add(s)
}

// Drain flushes any buffered pool states synchronously.
func (w *PoolStateWriter) Drain() error {
	return w.batcher.Drain()
}

// Len reports the number of buffered pool state updates.
func (w *PoolStateWriter) Len() int {
	return w.batcher.Len()
}
