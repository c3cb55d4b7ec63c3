package processor

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zigscan/amm-indexer/cache"
)

// Driver runs the Block Processor's main loop: a bounded, strictly-
// ordered pipeline of heights, generalized from the teacher's
// sequential core.Extender.Run loop (pull status, walk startHeight..
// lastBlock) into a PIPELINE_DEPTH-wide concurrent window that still
// commits in ascending height order.
type Driver struct {
	deps *Deps

	pipelineDepth   int
	pollInterval    time.Duration
	checkpointOnErr bool
}

// NewDriver constructs a Driver. pollInterval is how long the driver
// waits before re-checking chain head once it has caught up.
func NewDriver(deps *Deps, pipelineDepth int, pollInterval time.Duration, checkpointOnError bool) *Driver {
	return &Driver{
		deps:            deps,
		pipelineDepth:   pipelineDepth,
		pollInterval:    pollInterval,
		checkpointOnErr: checkpointOnError,
	}
}

// Run drives heights from the last checkpoint (exclusive) forward
// forever, until ctx is cancelled.
func (d *Driver) Run(ctx context.Context) error {
	next, err := d.deps.Checkpoint.Read()
	if err != nil {
		return err
	}
	next++

	sem := cache.NewSemaphore(int64(d.pipelineDepth))
	commitMu := newOrderedCommit(next)

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		status, err := d.deps.Chain.Status(ctx)
		if err != nil {
			d.deps.Logger.WithError(err).Warn("processor: fetching chain status")
			if !sleepCtx(ctx, d.pollInterval) {
				return nil
			}
			continue
		}
		head, err := status.LatestHeight()
		if err != nil {
			d.deps.Logger.WithError(err).Warn("processor: parsing chain status height")
			if !sleepCtx(ctx, d.pollInterval) {
				return nil
			}
			continue
		}

		if next > head {
			if !sleepCtx(ctx, d.pollInterval) {
				return nil
			}
			continue
		}

		for h := next; h <= head; h++ {
			if err := sem.Acquire(ctx); err != nil {
				return nil
			}
			height := h
			go func() {
				defer sem.Release()
				d.runOne(ctx, height, commitMu)
			}()
		}
		next = head + 1

		// Sleep one poll interval before polling status again; the
		// pipeline semaphore acquired above is the real backpressure,
		// this just avoids a tight status-polling loop while heights
		// are still in flight.
		if !sleepCtx(ctx, d.pollInterval) {
			return nil
		}
	}
}

// runOne processes a single height and commits it in order once every
// lower height has already committed. When CHECKPOINT_ON_ERROR is
// false, a failing height is retried with backoff in place rather than
// letting the pipeline advance past it — the retrying goroutine simply
// holds its semaphore permit until it succeeds or ctx is cancelled.
func (d *Driver) runOne(ctx context.Context, height uint64, oc *orderedCommit) {
	retryDelay := 500 * time.Millisecond
	for {
		start := time.Now()
		err := NewHeight(height, d.deps).Process(ctx)
		if d.deps.Metrics != nil && d.deps.Metrics.BlockProcessMs != nil {
			d.deps.Metrics.BlockProcessMs.Observe(float64(time.Since(start).Milliseconds()))
		}
		if err == nil {
			break
		}

		d.deps.Logger.WithError(err).WithField("height", height).Error("processor: height failed")
		if d.checkpointOnErr {
			break
		}
		if !sleepCtx(ctx, retryDelay) {
			return
		}
		retryDelay *= 2
		if retryDelay > 10*time.Second {
			retryDelay = 10 * time.Second
		}
	}

	oc.commit(height, func() {
		d.drainAndCheckpoint(height)
	})
}

func (d *Driver) drainAndCheckpoint(height uint64) {
	if err := d.deps.Trades.Drain(); err != nil {
		d.deps.Logger.WithError(err).WithField("height", height).Error("processor: draining trades")
	}
	if err := d.deps.PoolStates.Drain(); err != nil {
		d.deps.Logger.WithError(err).WithField("height", height).Error("processor: draining pool states")
	}
	if err := d.deps.Candles.Drain(); err != nil {
		d.deps.Logger.WithError(err).WithField("height", height).Error("processor: draining candles")
	}
	if err := d.deps.Checkpoint.Write(height); err != nil {
		d.deps.Logger.WithError(err).WithField("height", height).Error("processor: writing checkpoint")
		return
	}
	if d.deps.Metrics != nil && d.deps.Metrics.CheckpointHeight != nil {
		d.deps.Metrics.CheckpointHeight.Set(float64(height))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RunOnceForTest processes a single explicit height synchronously,
// bypassing the polling loop, for callers that don't want to stand up
// a fake /status endpoint.
func (d *Driver) RunOnceForTest(ctx context.Context, height uint64) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return NewHeight(height, d.deps).Process(gctx)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return d.deps.Checkpoint.Write(height)
}
