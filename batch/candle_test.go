package batch

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAggregateCandles_MergesWithinMinute(t *testing.T) {
	minute := time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC)

	points := []CandlePoint{
		{PoolID: 1, Minute: minute, Price: decimal.NewFromFloat(1.0), Volume: decimal.NewFromInt(10), TradeCount: 1},
		{PoolID: 1, Minute: minute, Price: decimal.NewFromFloat(1.5), Volume: decimal.NewFromInt(20), TradeCount: 1},
		{PoolID: 1, Minute: minute, Price: decimal.NewFromFloat(0.8), Volume: decimal.NewFromInt(5), TradeCount: 1},
	}

	agg := aggregateCandles(points)
	row := agg[candleKey{PoolID: 1, Minute: minute}]

	assert.True(t, row.High.Equal(decimal.NewFromFloat(1.5)))
	assert.True(t, row.Low.Equal(decimal.NewFromFloat(0.8)))
	assert.True(t, row.Close.Equal(decimal.NewFromFloat(0.8)))
	assert.True(t, row.VolumeNative.Equal(decimal.NewFromInt(35)))
	assert.Equal(t, int64(3), row.TradeCount)
	// no prior-minute candle in this batch: open falls back to first-observed price
	assert.True(t, row.Open.Equal(decimal.NewFromFloat(1.0)))
}

func TestAggregateCandles_SeparatesByPoolAndMinute(t *testing.T) {
	m1 := time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC)
	m2 := m1.Add(time.Minute)

	points := []CandlePoint{
		{PoolID: 1, Minute: m1, Price: decimal.NewFromInt(1), Volume: decimal.Zero},
		{PoolID: 2, Minute: m1, Price: decimal.NewFromInt(2), Volume: decimal.Zero},
		{PoolID: 1, Minute: m2, Price: decimal.NewFromInt(3), Volume: decimal.Zero},
	}

	agg := aggregateCandles(points)
	assert.Len(t, agg, 3)
}

func TestResolveOpens_ChainsWithinBatchAcrossMinutes(t *testing.T) {
	m1 := time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC)
	m2 := m1.Add(time.Minute)

	points := []CandlePoint{
		{PoolID: 1, Minute: m1, Price: decimal.NewFromFloat(2.0), Volume: decimal.Zero},
		{PoolID: 1, Minute: m2, Price: decimal.NewFromFloat(3.0), Volume: decimal.Zero},
	}
	agg := aggregateCandles(points)

	m2Row := agg[candleKey{PoolID: 1, Minute: m2}]
	m1Row := agg[candleKey{PoolID: 1, Minute: m1}]

	// Simulate resolveOpens' in-batch chaining without touching the DB.
	if prev, ok := agg[candleKey{PoolID: 1, Minute: m2.Add(-time.Minute)}]; ok {
		m2Row.Open = prev.Close
	}

	assert.True(t, m2Row.Open.Equal(m1Row.Close))
}

func TestAggregateCandles_LiquidityKeepsLastNonNil(t *testing.T) {
	minute := time.Date(2026, 8, 3, 12, 5, 0, 0, time.UTC)
	liq1 := decimal.NewFromInt(100)
	liq2 := decimal.NewFromInt(200)

	points := []CandlePoint{
		{PoolID: 1, Minute: minute, Price: decimal.NewFromInt(1), Volume: decimal.Zero, Liquidity: &liq1},
		{PoolID: 1, Minute: minute, Price: decimal.NewFromInt(1), Volume: decimal.Zero, Liquidity: nil},
		{PoolID: 1, Minute: minute, Price: decimal.NewFromInt(1), Volume: decimal.Zero, Liquidity: &liq2},
	}

	agg := aggregateCandles(points)
	row := agg[candleKey{PoolID: 1, Minute: minute}]
	assert.True(t, row.Liquidity.Equal(liq2))
}
