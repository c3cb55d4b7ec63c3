package chain

import (
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// jitteredBackOff implements min(1000·1.5ⁿ,10000)+U[0,250) ms, the retry
// policy every outbound call in this package and the fx fetcher shares.
// backoff.ExponentialBackOff's own jitter model doesn't match this
// additive-uniform shape, so a small custom BackOff is used instead of
// reaching for its defaults.
type jitteredBackOff struct {
	attempt int
	max     time.Duration
}

func newJitteredBackOff() backoff.BackOff {
	return &jitteredBackOff{max: 10 * time.Second}
}

func (b *jitteredBackOff) NextBackOff() time.Duration {
	base := 1000 * pow(1.5, b.attempt)
	if base > float64(b.max.Milliseconds()) {
		base = float64(b.max.Milliseconds())
	}
	b.attempt++
	jitter := time.Duration(rand.Intn(250)) * time.Millisecond
	return time.Duration(base)*time.Millisecond + jitter
}

func (b *jitteredBackOff) Reset() {
	b.attempt = 0
}

func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}
