// Package processor is the Block Processor: for a single height it
// extracts pool creations, swaps, and liquidity events from the chain's
// block-results payload and turns them into Trade/PoolState/Price/
// Candle1m writes, then a Driver pipelines many heights concurrently
// while committing them in strict ascending order. Grounded on the
// teacher's core.Extender.Run/handleBlockResponse loop shape,
// generalized from a strictly-sequential single-height loop into a
// bounded, ordered pipeline per the redesign notes.
package processor

import (
	"github.com/sirupsen/logrus"

	"github.com/zigscan/amm-indexer/batch"
	"github.com/zigscan/amm-indexer/chain"
	"github.com/zigscan/amm-indexer/checkpoint"
	"github.com/zigscan/amm-indexer/metrics"
	"github.com/zigscan/amm-indexer/notify"
	"github.com/zigscan/amm-indexer/pool"
	"github.com/zigscan/amm-indexer/priceindex"
	"github.com/zigscan/amm-indexer/token"
)

// PairCreatedChannel is the sole internal NOTIFY channel the Block
// Processor publishes on; fasttrack.Listener is its only subscriber.
const PairCreatedChannel = "pair_created"

// Deps bundles every collaborator a Height needs to run its phases.
// Constructed once in cmd/indexer/main.go and shared across every
// in-flight height.
type Deps struct {
	Chain      *chain.Client
	Pools      *pool.Repository
	Reserves   *pool.ReservesFetcher
	Tokens     *token.Repository
	Resolver   *token.Resolver
	Trades     *batch.TradeWriter
	PoolStates *batch.PoolStateWriter
	Candles    *batch.CandleWriter
	Prices     *priceindex.Repository
	Publisher  *notify.Publisher
	Checkpoint *checkpoint.Store
	Metrics    *metrics.Metrics
	Logger     *logrus.Entry

	FactoryAddr     string
	Concurrency     int
	MetaConcurrency int
	MaxPendingTasks int
}

// pendingTasks reports the combined backlog across the three batch
// writers, used to trigger an interim drain per spec §4.D's
// MAX_PENDING_TASKS soft cap.
func (d *Deps) pendingTasks() int {
	return d.Trades.Len() + d.PoolStates.Len() + d.Candles.Len()
}

// drainIfOverCap drains all three batch writers once the combined
// backlog crosses MaxPendingTasks, independent of the driver's
// per-height commit drain.
func (d *Deps) drainIfOverCap() {
	if d.pendingTasks() < d.MaxPendingTasks {
		return
	}
	if err := d.Trades.Drain(); err != nil {
		d.Logger.WithError(err).Error("processor: interim trade drain failed")
	}
	if err := d.PoolStates.Drain(); err != nil {
		d.Logger.WithError(err).Error("processor: interim pool state drain failed")
	}
	if err := d.Candles.Drain(); err != nil {
		d.Logger.WithError(err).Error("processor: interim candle drain failed")
	}
}
