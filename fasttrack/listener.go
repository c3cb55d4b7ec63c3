// Package fasttrack implements the Fast-Track Listener (spec §4.E): it
// owns the single pair_created NOTIFY subscription and, on each new
// pool, runs a handful of independent best-effort refresh tasks so a
// freshly created pair gets metadata, holder counts, matrix rows, and
// a seed price/candle without waiting for its next scheduled sweep.
// Grounded on the teacher's broadcast.Service consumer loop, fanning
// out to per-concern tasks the way markets.Service fans out to its
// per-market updaters.
package fasttrack

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/zigscan/amm-indexer/holders"
	"github.com/zigscan/amm-indexer/metrics"
	"github.com/zigscan/amm-indexer/models"
	"github.com/zigscan/amm-indexer/notify"
	"github.com/zigscan/amm-indexer/pool"
	"github.com/zigscan/amm-indexer/priceindex"
	"github.com/zigscan/amm-indexer/rollup"
	"github.com/zigscan/amm-indexer/token"
	"github.com/zigscan/amm-indexer/trade"
)

// Listener consumes pair_created notifications and runs the fast-track
// task set for each.
type Listener struct {
	notify     *notify.Listener
	resolver   *token.Resolver
	tokenRepo  *token.Repository
	holders    *holders.Sweeper
	rollup     *rollup.Engine
	trades     *trade.Repository
	reserves   *pool.ReservesFetcher
	prices     *priceindex.Repository
	metrics    *metrics.Metrics
	logger     *logrus.Entry
}

// Deps bundles Listener's collaborators.
type Deps struct {
	Notify    *notify.Listener
	Resolver  *token.Resolver
	TokenRepo *token.Repository
	Holders   *holders.Sweeper
	Rollup    *rollup.Engine
	Trades    *trade.Repository
	Reserves  *pool.ReservesFetcher
	Prices    *priceindex.Repository
	Metrics   *metrics.Metrics
	Logger    *logrus.Entry
}

// NewListener constructs a Listener.
func NewListener(d Deps) *Listener {
	return &Listener{
		notify:    d.Notify,
		resolver:  d.Resolver,
		tokenRepo: d.TokenRepo,
		holders:   d.Holders,
		rollup:    d.Rollup,
		trades:    d.Trades,
		reserves:  d.Reserves,
		prices:    d.Prices,
		metrics:   d.Metrics,
		logger:    d.Logger,
	}
}

// Run subscribes to pair_created and dispatches each payload to
// handlePair, blocking until ctx is cancelled.
func (l *Listener) Run(ctx context.Context, channel string) error {
	if err := l.notify.Listen(channel); err != nil {
		return err
	}
	return l.notify.Run(ctx, func(payload string) {
		var pc models.PairCreated
		if err := json.Unmarshal([]byte(payload), &pc); err != nil {
			l.logger.WithError(err).Warn("fasttrack: decoding pair_created payload")
			return
		}
		l.handlePair(ctx, pc)
	})
}

// handlePair runs every fast-track task for a new pair concurrently and
// independently: one task's failure never blocks another's.
func (l *Listener) handlePair(ctx context.Context, pc models.PairCreated) {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { l.refreshMetadata(gctx, pc); return nil })
	g.Go(func() error { l.refreshHolders(gctx, pc); return nil })
	g.Go(func() error { l.securityScan(gctx, pc); return nil })
	g.Go(func() error { l.refreshMatrices(gctx, pc); return nil })
	g.Go(func() error { l.seedPriceAndCandle(gctx, pc); return nil })

	_ = g.Wait()
}

func (l *Listener) refreshMetadata(ctx context.Context, pc models.PairCreated) {
	if err := l.resolver.Refresh(ctx, pc.BaseDenom); err != nil {
		l.countTaskError("metadata")
		l.logger.WithError(err).WithField("token_id", pc.BaseTokenID).Warn("fasttrack: refreshing base metadata")
	}
	if !pc.IsNativeQuote {
		if err := l.resolver.Refresh(ctx, pc.QuoteDenom); err != nil {
			l.countTaskError("metadata")
			l.logger.WithError(err).WithField("token_id", pc.QuoteTokenID).Warn("fasttrack: refreshing quote metadata")
		}
	}
}

// refreshHolders sweeps holder balances for every non-native leg of
// the new pair. Each leg is refreshed twice, since a brand new denom's
// first denom_owners page can race the mint that seeded it: the second
// RefreshOne runs whenever the first succeeds, whatever holder count
// the first one found, and a failed first refresh is not repeated.
func (l *Listener) refreshHolders(ctx context.Context, pc models.PairCreated) {
	l.refreshHolderLeg(ctx, pc.BaseTokenID, pc.BaseDenom)
	if !pc.IsNativeQuote {
		l.refreshHolderLeg(ctx, pc.QuoteTokenID, pc.QuoteDenom)
	}
}

func (l *Listener) refreshHolderLeg(ctx context.Context, tokenID uint64, denom string) {
	if err := l.holders.RefreshOne(ctx, tokenID, denom); err != nil {
		l.countTaskError("holders")
		l.logger.WithError(err).WithField("token_id", tokenID).Warn("fasttrack: refreshing holders")
		return
	}
	// Second pass, run after every successful first pass: a token minted
	// in the same block as its pair can momentarily 404/empty-page on
	// denom_owners.
	if err := l.holders.RefreshOne(ctx, tokenID, denom); err != nil {
		l.countTaskError("holders")
		l.logger.WithError(err).WithField("token_id", tokenID).Warn("fasttrack: retrying holders refresh")
	}
}

// securityScan is a placeholder hook for a future contract/token risk
// scan; today it only records that the pair was seen.
func (l *Listener) securityScan(ctx context.Context, pc models.PairCreated) {
	l.logger.WithField("pool_id", pc.PoolID).Debug("fasttrack: security scan stub")
}

func (l *Listener) refreshMatrices(ctx context.Context, pc models.PairCreated) {
	if err := l.rollup.RefreshPoolMatrixOnce(ctx, pc.PoolID); err != nil {
		l.countTaskError("matrix")
		l.logger.WithError(err).WithField("pool_id", pc.PoolID).Warn("fasttrack: refreshing pool matrix")
	}
	if err := l.rollup.RefreshTokenMatrixOnce(ctx, pc.BaseTokenID); err != nil {
		l.countTaskError("matrix")
		l.logger.WithError(err).WithField("token_id", pc.BaseTokenID).Warn("fasttrack: refreshing token matrix")
	}
}

// seedPriceAndCandle prefers the pair's first provide_liquidity trade
// (its reserve columns give an exact seed); if none has landed yet, it
// falls back to a live LCD reserves fetch. Both paths are native-quote
// only, and both respect the exponent-0-unresolved skip rule.
func (l *Listener) seedPriceAndCandle(ctx context.Context, pc models.PairCreated) {
	if !pc.IsNativeQuote {
		return
	}

	baseExponent, err := l.tokenRepo.ExponentByID(pc.BaseTokenID)
	if err != nil {
		l.countTaskError("seed")
		l.logger.WithError(err).WithField("token_id", pc.BaseTokenID).Warn("fasttrack: resolving base exponent")
		return
	}
	if baseExponent == 0 {
		return
	}

	if t, err := l.trades.FirstProvideLiquidity(pc.PoolID); err == nil && t.ReserveBaseBase != nil && t.ReserveQuoteBase != nil {
		l.seedFromReserves(pc, *t.ReserveBaseBase, *t.ReserveQuoteBase, baseExponent, t.CreatedAt)
		return
	}

	reserves, err := l.reserves.Fetch(ctx, pc.PairContract, pc.BaseDenom, pc.QuoteDenom)
	if err != nil {
		l.countTaskError("seed")
		l.logger.WithError(err).WithField("pool_id", pc.PoolID).Warn("fasttrack: fetching live reserves fallback")
		return
	}
	l.seedFromReserves(pc, reserves.BaseRaw, reserves.QuoteRaw, baseExponent, time.Now().UTC())
}

func (l *Listener) seedFromReserves(pc models.PairCreated, baseRaw, quoteRaw string, baseExponent int, at time.Time) {
	priceNative, err := pool.PriceFromReserves(baseRaw, quoteRaw, baseExponent, models.DefaultExponent)
	if err != nil {
		l.countTaskError("seed")
		l.logger.WithError(err).WithField("pool_id", pc.PoolID).Warn("fasttrack: computing seed price")
		return
	}
	if err := l.prices.UpsertPrice(pc.BaseTokenID, pc.PoolID, priceNative, pc.IsNativeQuote, at); err != nil {
		l.countTaskError("seed")
		l.logger.WithError(err).WithField("pool_id", pc.PoolID).Warn("fasttrack: upserting seed price")
		return
	}
	if err := l.prices.SeedCandle(pc.PoolID, at.Truncate(time.Minute), priceNative, decimal.Zero, 0); err != nil {
		l.countTaskError("seed")
		l.logger.WithError(err).WithField("pool_id", pc.PoolID).Warn("fasttrack: seeding candle")
	}
}

func (l *Listener) countTaskError(task string) {
	if l.metrics != nil && l.metrics.FastTrackTaskErrors != nil {
		l.metrics.FastTrackTaskErrors.WithLabelValues(task).Inc()
	}
}
