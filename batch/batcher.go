// Package batch coalesces high-rate per-row writes (trades, pool
// state, candles) into amortized multi-row upserts. The buffering
// policy is generic; flush semantics are specialized per queue in
// trades.go, poolstate.go, and candle.go.
package batch

import (
	"reflect"
	"sync"
	"time"

	"github.com/fatih/structs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Metrics is the optional set of collectors a Batcher reports into. A
// nil *Metrics, or a nil field within it, disables that observation —
// callers that don't care about a given queue's metrics pass nil.
type Metrics struct {
	QueueSize   prometheus.Gauge
	FlushMs     prometheus.Observer
	FlushErrors prometheus.Counter
}

// FlushFunc persists a batch of items. Errors are logged by the
// Batcher; recovery is the caller's responsibility per the batch
// contract ("on failure, the batch is reported; the caller decides
// recovery").
type FlushFunc[T any] func(items []T) error

// Batcher buffers items of type T and flushes them when the queue
// reaches maxItems, maxWait elapses since the first buffered item, or
// Drain is called explicitly. Flushes are single-flight: a dedicated
// mutex (flushMu) serializes writes so two flushes for the same queue
// never overlap, independent of the buffer mutex (mu) that governs
// enqueue/swap.
type Batcher[T any] struct {
	mu      sync.Mutex
	flushMu sync.Mutex

	items    []T
	maxItems int
	maxWait  time.Duration
	timer    *time.Timer

	flush   FlushFunc[T]
	logger  *logrus.Entry
	name    string
	metrics *Metrics
}

// New constructs a Batcher backed by flush, which is invoked with the
// buffered items whenever a flush condition is met. metrics may be nil.
func New[T any](name string, maxItems int, maxWait time.Duration, flush FlushFunc[T], logger *logrus.Entry, metrics *Metrics) *Batcher[T] {
	return &Batcher[T]{
		maxItems: maxItems,
		maxWait:  maxWait,
		flush:    flush,
		logger:   logger.WithField("batcher", name),
		name:     name,
		metrics:  metrics,
	}
}

// Add enqueues item, triggering an async flush if the queue just
// reached its size cap, and arming the wait timer if this is the first
// item in a fresh buffer.
func (b *Batcher[T]) Add(item T) {
	b.mu.Lock()
	b.items = append(b.items, item)
	full := len(b.items) >= b.maxItems
	first := len(b.items) == 1
	size := len(b.items)
	if first {
		b.armTimer()
	}
	b.mu.Unlock()

	if b.metrics != nil && b.metrics.QueueSize != nil {
		b.metrics.QueueSize.Set(float64(size))
	}

	if full {
		go b.flushNow()
	}
}

func (b *Batcher[T]) armTimer() {
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(b.maxWait, func() {
		b.flushNow()
	})
}

// Drain flushes any buffered items synchronously and returns the flush
// error, if any. Safe to call concurrently with Add.
func (b *Batcher[T]) Drain() error {
	return b.flushNow()
}

func (b *Batcher[T]) flushNow() error {
	b.mu.Lock()
	if b.timer != nil {
		b.timer.Stop()
	}
	batch := b.items
	b.items = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if b.metrics != nil && b.metrics.QueueSize != nil {
		b.metrics.QueueSize.Set(0)
	}

	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	start := time.Now()
	err := b.flush(batch)
	if b.metrics != nil && b.metrics.FlushMs != nil {
		b.metrics.FlushMs.Observe(float64(time.Since(start).Milliseconds()))
	}

	if err != nil {
		if b.metrics != nil && b.metrics.FlushErrors != nil {
			b.metrics.FlushErrors.Inc()
		}
		fields := logrus.Fields{"size": len(batch)}
		if len(batch) > 0 {
			fields["sample"] = sampleFields(batch[0])
		}
		b.logger.WithError(err).WithFields(fields).Error("batch flush failed")
		return err
	}
	return nil
}

// sampleFields converts a single buffered item into a field map for
// diagnostic logging on flush failure, via fatih/structs so any
// exported struct (or pointer to one) can be attached without a
// per-type Fields() method.
func sampleFields(item interface{}) map[string]interface{} {
	v := reflect.ValueOf(item)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return map[string]interface{}{"value": item}
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return map[string]interface{}{"value": item}
	}
	return structs.Map(v.Interface())
}

// Len reports the number of items currently buffered, for backpressure
// decisions at the call site.
func (b *Batcher[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
