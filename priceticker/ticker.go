// Package priceticker runs an independent polling loop (spec §4.H) over
// every native-quoted pool, refreshing Price between block-processor
// commits so quote pages stay live during quiet blocks. Grounded on the
// teacher's coin.Service price-watcher loop, generalized from a single
// coin's market price to per-pool reserve polling.
package priceticker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/metrics"
	"github.com/zigscan/amm-indexer/models"
	"github.com/zigscan/amm-indexer/pool"
	"github.com/zigscan/amm-indexer/priceindex"
	"github.com/zigscan/amm-indexer/token"
)

// Ticker polls every native-quoted pool's live reserves on a fixed
// interval and upserts Price, independently of block processing.
type Ticker struct {
	pools    *pool.Repository
	tokens   *token.Repository
	reserves *pool.ReservesFetcher
	prices   *priceindex.Repository
	metrics  *metrics.Metrics
	logger   *logrus.Entry

	interval time.Duration
}

// NewTicker constructs a Ticker polling at the given interval (default
// 8s per §4.H).
func NewTicker(pools *pool.Repository, tokens *token.Repository, reserves *pool.ReservesFetcher, prices *priceindex.Repository, m *metrics.Metrics, logger *logrus.Entry, interval time.Duration) *Ticker {
	return &Ticker{pools: pools, tokens: tokens, reserves: reserves, prices: prices, metrics: m, logger: logger, interval: interval}
}

// Run polls until ctx is cancelled.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	pools, err := t.pools.NativeQuotedPools()
	if err != nil {
		t.logger.WithError(err).Warn("priceticker: listing native-quoted pools")
		return
	}

	for _, p := range pools {
		if err := t.refreshOne(ctx, p); err != nil {
			t.logger.WithError(err).WithField("pool_id", p.ID).Warn("priceticker: refreshing price")
		}
	}
}

func (t *Ticker) refreshOne(ctx context.Context, p *models.Pool) error {
	baseExponent, err := t.tokens.ExponentByID(p.BaseTokenID)
	if err != nil {
		return err
	}
	if baseExponent == 0 {
		// Unresolved exponent: skip, matching the block processor's
		// identical "data is not lost" sentinel rule.
		return nil
	}

	baseDenom, err := t.tokens.DenomByID(p.BaseTokenID)
	if err != nil {
		return err
	}
	quoteDenom, err := t.tokens.DenomByID(p.QuoteTokenID)
	if err != nil {
		return err
	}

	reserves, err := t.reserves.Fetch(ctx, p.PairContract, baseDenom, quoteDenom)
	if err != nil {
		return err
	}

	priceNative, err := pool.PriceFromReserves(reserves.BaseRaw, reserves.QuoteRaw, baseExponent, models.DefaultExponent)
	if err != nil {
		return err
	}
	if !priceNative.IsPositive() {
		return nil
	}

	return t.prices.UpsertPrice(p.BaseTokenID, p.ID, priceNative, p.IsNativeQuote, time.Now().UTC())
}
