package batch

import (
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/models"
)

// CandlePoint is one price observation enqueued for in-batch OHLCV
// aggregation: a swap/liquidity event's price, volume, and trade
// increment at a given pool and minute.
type CandlePoint struct {
	PoolID     uint64
	Minute     time.Time
	Price      decimal.Decimal
	Volume     decimal.Decimal
	TradeCount int64
	Liquidity  *decimal.Decimal
}

type candleKey struct {
	PoolID uint64
	Minute time.Time
}

// CandleWriter coalesces CandlePoints into minute-bucketed OHLCV rows,
// applying the prior-close open rule and the documented ON CONFLICT
// merge (high/low via GREATEST/LEAST, close last-wins, volume and
// trade_count additive, liquidity COALESCE-preferring the incoming
// value).
type CandleWriter struct {
	batcher *Batcher[CandlePoint]
}

// NewCandleWriter constructs a CandleWriter flushing into db.
func NewCandleWriter(db *pg.DB, maxItems int, maxWait time.Duration, logger *logrus.Entry, metrics *Metrics) *CandleWriter {
	w := &CandleWriter{}
	w.batcher = New("ohlcv_1m", maxItems, maxWait, func(items []CandlePoint) error {
		return flushCandles(db, items)
	}, logger, metrics)
	return w
}

// Add enqueues a price observation for the next flush.
func (w *CandleWriter) Add(p CandlePoint) {
	w.batcher.Add(p)
}

// Drain flushes any buffered candle points synchronously.
func (w *CandleWriter) Drain() error {
	return w.batcher.Drain()
}

// Len reports the number of buffered candle points.
func (w *CandleWriter) Len() int {
	return w.batcher.Len()
}

func flushCandles(db *pg.DB, items []CandlePoint) error {
	agg := aggregateCandles(items)
	if err := resolveOpens(db, agg); err != nil {
		return fmt.Errorf("batch: resolving candle opens: %w", err)
	}

	rows := make([]*models.Candle1m, 0, len(agg))
	for _, c := range agg {
		rows = append(rows, c)
	}

	_, err := db.Model(&rows).
		OnConflict("(pool_id, minute) DO UPDATE").
		Set(`high = GREATEST(ohlcv_1m.high, EXCLUDED.high), ` +
			`low = LEAST(ohlcv_1m.low, EXCLUDED.low), ` +
			`close = EXCLUDED.close, ` +
			`volume_native = ohlcv_1m.volume_native + EXCLUDED.volume_native, ` +
			`trade_count = ohlcv_1m.trade_count + EXCLUDED.trade_count, ` +
			`liquidity = COALESCE(EXCLUDED.liquidity, ohlcv_1m.liquidity)`).
		Insert()
	return err
}

// aggregateCandles applies the in-batch merge rule — high=max(price),
// low=min(price), close=last(price), volume/trade_count summed — in
// enqueue order, tracking each key's first-seen price as a fallback
// open.
func aggregateCandles(items []CandlePoint) map[candleKey]*models.Candle1m {
	firstPrice := make(map[candleKey]decimal.Decimal)
	out := make(map[candleKey]*models.Candle1m)

	for _, p := range items {
		key := candleKey{PoolID: p.PoolID, Minute: p.Minute}
		row, ok := out[key]
		if !ok {
			firstPrice[key] = p.Price
			row = &models.Candle1m{
				PoolID:       p.PoolID,
				Minute:       p.Minute,
				High:         p.Price,
				Low:          p.Price,
				Close:        p.Price,
				VolumeNative: decimal.Zero,
			}
			out[key] = row
		}
		if p.Price.GreaterThan(row.High) {
			row.High = p.Price
		}
		if p.Price.LessThan(row.Low) {
			row.Low = p.Price
		}
		row.Close = p.Price
		row.VolumeNative = row.VolumeNative.Add(p.Volume)
		row.TradeCount += p.TradeCount
		if p.Liquidity != nil {
			row.Liquidity = p.Liquidity
		}
	}

	for key, row := range out {
		fp := firstPrice[key]
		row.Open = fp // overwritten by resolveOpens when a prior close exists
	}
	return out
}

// resolveOpens sets each candle's open to the prior minute's close,
// preferring another candle already in this batch for the same pool
// over a database lookup, and falling back to the first-observed price
// in the minute (already stashed in Open by aggregateCandles) when no
// prior close exists anywhere.
func resolveOpens(db *pg.DB, agg map[candleKey]*models.Candle1m) error {
	type lookupKey struct {
		PoolID uint64
		Minute time.Time
	}
	var needsLookup []lookupKey

	for key, row := range agg {
		prevKey := candleKey{PoolID: key.PoolID, Minute: key.Minute.Add(-time.Minute)}
		if prev, ok := agg[prevKey]; ok {
			row.Open = prev.Close
			continue
		}
		needsLookup = append(needsLookup, lookupKey{PoolID: key.PoolID, Minute: prevKey.Minute})
	}

	if len(needsLookup) == 0 {
		return nil
	}

	var priors []models.Candle1m
	err := db.Model(&priors).
		WhereGroup(func(q *pg.Query) (*pg.Query, error) {
			for _, lk := range needsLookup {
				q = q.WhereOr("(pool_id = ? AND minute = ?)", lk.PoolID, lk.Minute)
			}
			return q, nil
		}).
		Column("pool_id", "minute", "close").
		Select()
	if err != nil && err != pg.ErrNoRows {
		return err
	}

	priorClose := make(map[candleKey]decimal.Decimal, len(priors))
	for _, p := range priors {
		priorClose[candleKey{PoolID: p.PoolID, Minute: p.Minute}] = p.Close
	}

	for key, row := range agg {
		prevKey := candleKey{PoolID: key.PoolID, Minute: key.Minute.Add(-time.Minute)}
		if _, hadInBatch := agg[prevKey]; hadInBatch {
			continue
		}
		if close, ok := priorClose[prevKey]; ok {
			row.Open = close
		}
		// else: row.Open already holds the first-observed price, set by aggregateCandles.
	}

	return nil
}
