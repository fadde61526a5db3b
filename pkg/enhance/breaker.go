package enhance

import (
	"sync"
)

const defaultThreshold = 5

// Breaker is the gateway's circuit breaker: consecutive failures trip it
// open, any success closes it again. It is an explicit object with its
// own lifecycle, constructed once per gateway, never shared global state.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	failures  int
	open      bool
}

// NewBreaker returns a breaker tripping after threshold consecutive
// failures. A non-positive threshold uses the default of 5.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Breaker{threshold: threshold}
}

// CheckState reports whether a call may proceed. An open circuit rejects
// the call before any I/O happens.
func (b *Breaker) CheckState() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.open
}

// RecordSuccess closes the circuit and zeroes the failure counter.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.open = false
}

// RecordFailure counts one failure and trips the circuit when the
// consecutive count reaches the threshold.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if b.failures >= b.threshold {
		b.open = true
	}
}

// Reset explicitly closes the circuit.
func (b *Breaker) Reset() {
	b.RecordSuccess()
}

// Failures returns the current consecutive-failure count.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
