package cache

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSemaphore_BoundsConcurrency(t *testing.T) {
	s := NewSemaphore(2)
	var inFlight, maxSeen int32

	run := func() {
		_ = s.Acquire(context.Background())
		defer s.Release()

		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxSeen)
			if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
	}

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			run()
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	assert.LessOrEqual(t, int(maxSeen), 2)
}

func TestSingleFlight_CoalescesConcurrentCallers(t *testing.T) {
	var calls int32
	sf := &SingleFlight{}

	fn := func() (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return "result", nil
	}

	results := make(chan interface{}, 3)
	for i := 0; i < 3; i++ {
		go func() {
			v, _, _ := sf.Do("k", fn)
			results <- v
		}()
	}
	for i := 0; i < 3; i++ {
		assert.Equal(t, "result", <-results)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
