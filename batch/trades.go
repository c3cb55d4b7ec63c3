package batch

import (
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/models"
)

// TradeWriter coalesces Trade inserts. The natural key
// (created_at, tx_hash, pool_id, msg_index) is enforced by the schema;
// duplicate trades within or across batches are silently dropped via
// ON CONFLICT DO NOTHING, matching the append-only invariant.
type TradeWriter struct {
	db      *pg.DB
	batcher *Batcher[*models.Trade]
}

// NewTradeWriter constructs a TradeWriter flushing into db.
func NewTradeWriter(db *pg.DB, maxItems int, maxWait time.Duration, logger *logrus.Entry, metrics *Metrics) *TradeWriter {
	w := &TradeWriter{db: db}
	w.batcher = New("trades", maxItems, maxWait, func(items []*models.Trade) error {
		_, err := db.Model(&items).OnConflict("DO NOTHING").Insert()
		return err
	}, logger, metrics)
	return w
}

// Exists reports whether a trade with this natural key has already
// been committed, used by the block processor to recognize a replayed
// swap before it re-enqueues an additive candle update for it.
func (w *TradeWriter) Exists(createdAt time.Time, txHash string, poolID uint64, msgIndex int) (bool, error) {
	return w.db.Model((*models.Trade)(nil)).
		Where("created_at = ? AND tx_hash = ? AND pool_id = ? AND msg_index = ?", createdAt, txHash, poolID, msgIndex).
		Exists()
}

// Add enqueues a trade for the next flush.
func (w *TradeWriter) Add(t *models.Trade) {
	w.batcher.Add(t)
}

// Drain flushes any buffered trades synchronously.
func (w *TradeWriter) Drain() error {
	return w.batcher.Drain()
}

// Len reports the number of buffered trades.
func (w *TradeWriter) Len() int {
	return w.batcher.Len()
}
