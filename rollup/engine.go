// Package rollup implements the Rollup Engine (spec §4.F): on a fixed
// cycle it recomputes PoolMatrix (volumes + TVL) and TokenMatrix (price
// resolution + market cap/FDV/holders) for each of the four rolling
// buckets. Grounded on the teacher's liquidity_pool.Service aggregation
// helpers, generalized from Minter's single-window coin stats to a
// four-bucket matrix and reworked around go-pg raw aggregate queries
// since no pack library implements windowed OHLCV-style rollups.
package rollup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pg/pg/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/metrics"
	"github.com/zigscan/amm-indexer/models"
)

// Engine recomputes PoolMatrix/TokenMatrix rows on a cycle.
type Engine struct {
	db      *pg.DB
	metrics *metrics.Metrics
	logger  *logrus.Entry

	// scalingHeuristic gates spec §9's TokenMatrix A/B leakage
	// correction (candidate A divided by 10^6 when it looks like a
	// BASE-unit value leaked into a DISPLAY-unit column).
	scalingHeuristic bool
}

// NewEngine constructs an Engine.
func NewEngine(db *pg.DB, m *metrics.Metrics, logger *logrus.Entry, scalingHeuristic bool) *Engine {
	return &Engine{db: db, metrics: m, logger: logger, scalingHeuristic: scalingHeuristic}
}

// RunCycle recomputes every bucket's PoolMatrix and TokenMatrix rows.
func (e *Engine) RunCycle(ctx context.Context) error {
	start := time.Now()
	var lastErr error

	for _, bw := range models.BucketWindows {
		if err := e.refreshPoolMatrixBucket(ctx, bw.Bucket, bw.Minutes); err != nil {
			e.logger.WithError(err).WithField("bucket", bw.Bucket).Error("rollup: pool matrix refresh failed")
			lastErr = err
		}
		if err := e.refreshTokenMatrixBucket(ctx, bw.Bucket, bw.Minutes); err != nil {
			e.logger.WithError(err).WithField("bucket", bw.Bucket).Error("rollup: token matrix refresh failed")
			lastErr = err
		}
	}

	if e.metrics != nil && e.metrics.RollupCycleMs != nil {
		e.metrics.RollupCycleMs.Observe(float64(time.Since(start).Milliseconds()))
	}
	return lastErr
}

// RefreshPoolMatrixOnce recomputes all four buckets for a single pool,
// the fast-track listener's single-entity fast path.
func (e *Engine) RefreshPoolMatrixOnce(ctx context.Context, poolID uint64) error {
	for _, bw := range models.BucketWindows {
		if err := e.refreshPoolMatrixBucketFor(ctx, bw.Bucket, bw.Minutes, &poolID); err != nil {
			return err
		}
	}
	return nil
}

// RefreshTokenMatrixOnce recomputes all four buckets for a single
// token, the fast-track listener's single-entity fast path.
func (e *Engine) RefreshTokenMatrixOnce(ctx context.Context, tokenID uint64) error {
	for _, bw := range models.BucketWindows {
		if err := e.refreshTokenMatrixBucketFor(ctx, bw.Bucket, bw.Minutes, &tokenID); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) refreshPoolMatrixBucket(ctx context.Context, bucket models.Bucket, minutes int) error {
	return e.refreshPoolMatrixBucketFor(ctx, bucket, minutes, nil)
}

type poolVolumeRow struct {
	PoolID        uint64          `pg:"pool_id"`
	IsNativeQuote bool            `pg:"is_native_quote"`
	BaseTokenID   uint64          `pg:"base_token_id"`
	QuoteTokenID  uint64          `pg:"quote_token_id"`
	BuyRaw        decimal.Decimal `pg:"buy_raw"`
	SellRaw       decimal.Decimal `pg:"sell_raw"`
	BuyTxCount    int64           `pg:"buy_tx_count"`
	SellTxCount   int64           `pg:"sell_tx_count"`
	TraderCount   int64           `pg:"trader_count"`
	ReserveBase   string          `pg:"reserve_base_base"`
	ReserveQuote  string          `pg:"reserve_quote_base"`
}

// refreshPoolMatrixBucketFor computes volumes and TVL for every pool
// (or, if poolID is non-nil, just that one) over the bucket's window.
func (e *Engine) refreshPoolMatrixBucketFor(ctx context.Context, bucket models.Bucket, minutes int, poolID *uint64) error {
	var rows []poolVolumeRow
	query := `
		SELECT
			p.id AS pool_id,
			p.is_native_quote,
			p.base_token_id,
			p.quote_token_id,
			COALESCE(SUM(CASE WHEN t.direction = 'buy' THEN t.offer_amount_base::numeric ELSE 0 END), 0) AS buy_raw,
			COALESCE(SUM(CASE WHEN t.direction = 'sell' THEN t.return_amount_base::numeric ELSE 0 END), 0) AS sell_raw,
			COALESCE(SUM(CASE WHEN t.direction = 'buy' THEN 1 ELSE 0 END), 0) AS buy_tx_count,
			COALESCE(SUM(CASE WHEN t.direction = 'sell' THEN 1 ELSE 0 END), 0) AS sell_tx_count,
			COUNT(DISTINCT t.signer) AS trader_count,
			COALESCE(ps.reserve_base_base, '0') AS reserve_base_base,
			COALESCE(ps.reserve_quote_base, '0') AS reserve_quote_base
		FROM pools p
		LEFT JOIN trades t ON t.pool_id = p.id
			AND t.action = 'swap'
			AND t.created_at >= now() - ?::interval
		LEFT JOIN pool_state ps ON ps.pool_id = p.id
		WHERE (? IS NULL OR p.id = ?)
		GROUP BY p.id, p.is_native_quote, p.base_token_id, p.quote_token_id, ps.reserve_base_base, ps.reserve_quote_base
	`
	interval := fmt.Sprintf("%d minutes", minutes)
	if _, err := e.db.QueryContext(ctx, &rows, query, interval, poolID, poolID); err != nil {
		return fmt.Errorf("rollup: aggregating pool volumes: %w", err)
	}

	for _, r := range rows {
		if err := e.upsertPoolMatrixRow(ctx, bucket, r); err != nil {
			e.logger.WithError(err).WithField("pool_id", r.PoolID).Warn("rollup: upserting pool matrix row")
		}
	}
	return nil
}

func (e *Engine) upsertPoolMatrixRow(ctx context.Context, bucket models.Bucket, r poolVolumeRow) error {
	quoteExponent, err := e.exponentByID(ctx, r.QuoteTokenID)
	if err != nil {
		return err
	}
	baseExponent, err := e.exponentByID(ctx, r.BaseTokenID)
	if err != nil {
		return err
	}

	quoteDivisor := decimal.New(1, int32(quoteExponent))
	buyDisp := r.BuyRaw.Div(quoteDivisor)
	sellDisp := r.SellRaw.Div(quoteDivisor)

	quotePrice := decimal.NewFromInt(1)
	if !r.IsNativeQuote {
		if p, ok := e.latestPriceForToken(ctx, r.QuoteTokenID); ok {
			quotePrice = p
		} else {
			quotePrice = decimal.Zero
		}
	}

	m := &models.PoolMatrix{
		PoolID:           r.PoolID,
		Bucket:           bucket,
		VolBuyQuoteDisp:  buyDisp,
		VolSellQuoteDisp: sellDisp,
		VolBuyNative:     buyDisp.Mul(quotePrice),
		VolSellNative:    sellDisp.Mul(quotePrice),
		BuyTxCount:       r.BuyTxCount,
		SellTxCount:      r.SellTxCount,
		TraderCount:      r.TraderCount,
		UpdatedAt:        time.Now().UTC(),
	}

	basePxDisp, basePxOK := e.basePriceDisp(ctx, r.PoolID, r.BaseTokenID)
	quotePxDisp := decimal.NewFromInt(1)
	if !r.IsNativeQuote {
		quotePxDisp = quotePrice
	}

	reserveBaseDisp := displayAmount(r.ReserveBase, baseExponent)
	reserveQuoteDisp := displayAmount(r.ReserveQuote, quoteExponent)
	m.ReserveBaseDisp = reserveBaseDisp
	m.ReserveQuoteDisp = reserveQuoteDisp

	if basePxOK {
		m.TVLNative = reserveQuoteDisp.Mul(quotePxDisp).Add(reserveBaseDisp.Mul(basePxDisp))
	}

	_, err = e.db.Model(m).
		OnConflict("(pool_id, bucket) DO UPDATE").
		Set(`vol_buy_quote_disp = EXCLUDED.vol_buy_quote_disp,
			vol_sell_quote_disp = EXCLUDED.vol_sell_quote_disp,
			vol_buy_native = EXCLUDED.vol_buy_native,
			vol_sell_native = EXCLUDED.vol_sell_native,
			buy_tx_count = EXCLUDED.buy_tx_count,
			sell_tx_count = EXCLUDED.sell_tx_count,
			trader_count = EXCLUDED.trader_count,
			tvl_native = EXCLUDED.tvl_native,
			reserve_base_disp = EXCLUDED.reserve_base_disp,
			reserve_quote_disp = EXCLUDED.reserve_quote_disp,
			updated_at = EXCLUDED.updated_at`).
		Insert()
	return err
}

// basePriceDisp implements §4.F's three-step TVL base-price fallback:
// this pool's own Price row, else the most recent Price for the base
// token in any native-quoted pool, else the most recent candle close
// for this pool.
func (e *Engine) basePriceDisp(ctx context.Context, poolID, baseTokenID uint64) (decimal.Decimal, bool) {
	var price decimal.Decimal
	_, err := e.db.QueryOneContext(ctx, pg.Scan(&price),
		`SELECT price_native FROM prices WHERE pool_id = ? AND token_id = ?`, poolID, baseTokenID)
	if err == nil {
		return price, true
	}

	_, err = e.db.QueryOneContext(ctx, pg.Scan(&price), `
		SELECT pr.price_native
		FROM prices pr
		JOIN pools p ON p.id = pr.pool_id
		WHERE pr.token_id = ? AND p.is_native_quote = true
		ORDER BY pr.updated_at DESC
		LIMIT 1`, baseTokenID)
	if err == nil {
		return price, true
	}

	_, err = e.db.QueryOneContext(ctx, pg.Scan(&price),
		`SELECT close FROM ohlcv_1m WHERE pool_id = ? ORDER BY minute DESC LIMIT 1`, poolID)
	if err == nil {
		return price, true
	}
	return decimal.Zero, false
}

// latestPriceForToken returns the most recently updated Price row's
// price_native for tokenID across any pool it appears as base in.
func (e *Engine) latestPriceForToken(ctx context.Context, tokenID uint64) (decimal.Decimal, bool) {
	var price decimal.Decimal
	_, err := e.db.QueryOneContext(ctx, pg.Scan(&price),
		`SELECT price_native FROM prices WHERE token_id = ? ORDER BY updated_at DESC LIMIT 1`, tokenID)
	if err != nil {
		return decimal.Zero, false
	}
	return price, true
}

func (e *Engine) refreshTokenMatrixBucket(ctx context.Context, bucket models.Bucket, minutes int) error {
	return e.refreshTokenMatrixBucketFor(ctx, bucket, minutes, nil)
}

// refreshTokenMatrixBucketFor recomputes price/market-cap/FDV/holders
// for every token that appears as a base leg in a native-quoted pool
// (or, if tokenID is non-nil, just that one).
func (e *Engine) refreshTokenMatrixBucketFor(ctx context.Context, bucket models.Bucket, minutes int, tokenID *uint64) error {
	var ids []uint64
	_, err := e.db.QueryContext(ctx, &ids, `
		SELECT DISTINCT p.base_token_id
		FROM pools p
		WHERE p.is_native_quote = true AND (? IS NULL OR p.base_token_id = ?)`, tokenID, tokenID)
	if err != nil {
		return fmt.Errorf("rollup: listing native-quoted base tokens: %w", err)
	}

	for _, id := range ids {
		if err := e.upsertTokenMatrixRow(ctx, bucket, minutes, id); err != nil {
			e.logger.WithError(err).WithField("token_id", id).Warn("rollup: upserting token matrix row")
		}
	}
	return nil
}

func (e *Engine) upsertTokenMatrixRow(ctx context.Context, bucket models.Bucket, minutes int, tokenID uint64) error {
	price := e.resolveTokenPrice(ctx, minutes, tokenID)

	exponent, err := e.exponentByID(ctx, tokenID)
	if err != nil {
		return err
	}

	var totalSupplyBase, maxSupplyBase *string
	if _, err := e.db.QueryOneContext(ctx, pg.Scan(&totalSupplyBase, &maxSupplyBase),
		`SELECT total_supply_base, max_supply_base FROM tokens WHERE id = ?`, tokenID); err != nil {
		return err
	}

	marketCap := decimal.Zero
	if totalSupplyBase != nil {
		marketCap = displayAmount(*totalSupplyBase, exponent).Mul(price)
	}
	fdv := decimal.Zero
	if maxSupplyBase != nil {
		fdv = displayAmount(*maxSupplyBase, exponent).Mul(price)
	} else if totalSupplyBase != nil {
		fdv = marketCap
	}

	var holders int64
	if _, err := e.db.QueryOneContext(ctx, pg.Scan(&holders),
		`SELECT count(*) FROM holders WHERE token_id = ? AND balance_base != '0'`, tokenID); err != nil {
		return err
	}

	m := &models.TokenMatrix{
		TokenID:         tokenID,
		Bucket:          bucket,
		PriceNative:     price,
		MarketCapNative: marketCap,
		FDVNative:       fdv,
		Holders:         holders,
		UpdatedAt:       time.Now().UTC(),
	}

	_, err = e.db.Model(m).
		OnConflict("(token_id, bucket) DO UPDATE").
		Set(`price_native = EXCLUDED.price_native,
			market_cap_native = EXCLUDED.market_cap_native,
			fdv_native = EXCLUDED.fdv_native,
			holders = EXCLUDED.holders,
			updated_at = EXCLUDED.updated_at`).
		Insert()
	return err
}

// resolveTokenPrice implements §4.F's TokenMatrix candidate A/B
// resolution: A is the latest Price across native-quoted pools where
// this token is base; B is the trailing bucket-window average candle
// close across those same pools. A is preferred; when both exist and
// their ratio suggests a BASE-unit value leaked into a DISPLAY-unit
// column (A/B in [1e5, 1e7]) and the token's exponent is exactly 6, A
// is rescaled by 10^6 before use.
func (e *Engine) resolveTokenPrice(ctx context.Context, minutes int, tokenID uint64) decimal.Decimal {
	var candidateA decimal.Decimal
	hasA := false
	if _, err := e.db.QueryOneContext(ctx, pg.Scan(&candidateA), `
		SELECT pr.price_native
		FROM prices pr
		JOIN pools p ON p.id = pr.pool_id
		WHERE pr.token_id = ? AND p.is_native_quote = true
		ORDER BY pr.updated_at DESC
		LIMIT 1`, tokenID); err == nil {
		hasA = true
	}

	var candidateB decimal.Decimal
	hasB := false
	interval := fmt.Sprintf("%d minutes", minutes)
	if _, err := e.db.QueryOneContext(ctx, pg.Scan(&candidateB), `
		SELECT AVG(c.close)
		FROM ohlcv_1m c
		JOIN pools p ON p.id = c.pool_id
		WHERE p.base_token_id = ? AND p.is_native_quote = true
			AND c.minute >= now() - ?::interval`, tokenID, interval); err == nil && !candidateB.IsZero() {
		hasB = true
	}

	if hasA && e.scalingHeuristic && hasB {
		exponent, err := e.exponentByID(ctx, tokenID)
		if err == nil && exponent == 6 && !candidateB.IsZero() {
			ratio := candidateA.Div(candidateB)
			lower := decimal.New(1, 5)
			upper := decimal.New(1, 7)
			if ratio.GreaterThanOrEqual(lower) && ratio.LessThanOrEqual(upper) {
				candidateA = candidateA.Div(decimal.New(1, 6))
			}
		}
	}

	if hasA {
		return candidateA
	}
	if hasB {
		return candidateB
	}
	return decimal.Zero
}

func (e *Engine) exponentByID(ctx context.Context, tokenID uint64) (int, error) {
	var exp int
	_, err := e.db.QueryOneContext(ctx, pg.Scan(&exp), `SELECT exponent FROM tokens WHERE id = ?`, tokenID)
	if err != nil {
		return 0, err
	}
	return exp, nil
}

func displayAmount(raw string, exponent int) decimal.Decimal {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return v.Div(decimal.New(1, int32(exponent)))
}
