package batch

import (
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestBatcher_FlushesAtMaxItems(t *testing.T) {
	var flushed [][]int
	var mu sync.Mutex
	done := make(chan struct{}, 1)

	b := New[int]("t", 3, time.Hour, func(items []int) error {
		mu.Lock()
		flushed = append(flushed, append([]int{}, items...))
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, testLogger(), nil)

	b.Add(1)
	b.Add(2)
	b.Add(3)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected flush triggered by size cap")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]int{{1, 2, 3}}, flushed)
}

func TestBatcher_FlushesAfterMaxWait(t *testing.T) {
	var calls int32
	b := New[int]("t", 100, 10*time.Millisecond, func(items []int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, testLogger(), nil)

	b.Add(1)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestBatcher_DrainFlushesImmediately(t *testing.T) {
	var got []int
	b := New[int]("t", 100, time.Hour, func(items []int) error {
		got = items
		return nil
	}, testLogger(), nil)

	b.Add(42)
	assert.NoError(t, b.Drain())
	assert.Equal(t, []int{42}, got)
	assert.Equal(t, 0, b.Len())
}

func TestBatcher_DrainOnEmptyBufferIsNoop(t *testing.T) {
	var calls int32
	b := New[int]("t", 100, time.Hour, func(items []int) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, testLogger(), nil)

	assert.NoError(t, b.Drain())
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}
