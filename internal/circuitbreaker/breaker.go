// Package circuitbreaker guards the notification service endpoint. Dispatch
// is best-effort and never retried, so when the service is persistently down
// there is no value in issuing a doomed request per creation; the breaker
// skips them until a cooldown passes.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

// Breaker is a single-endpoint circuit breaker. After threshold consecutive
// failures it opens; after cooldown it lets one probe through (half-open).
type Breaker struct {
	mu                  sync.Mutex
	state               state
	consecutiveFailures int
	openedAt            time.Time

	threshold int
	cooldown  time.Duration
	clock     func() time.Time
}

func New(threshold int, cooldown time.Duration) *Breaker {
	return &Breaker{
		threshold: threshold,
		cooldown:  cooldown,
		clock:     time.Now,
	}
}

// WithClock overrides the time source. Used by tests.
func (b *Breaker) WithClock(clock func() time.Time) *Breaker {
	b.clock = clock
	return b
}

// Allow reports whether a request may proceed. In the open state it returns
// ErrCircuitOpen until the cooldown elapses, then admits a single probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case stateOpen:
		if b.clock().Sub(b.openedAt) >= b.cooldown {
			b.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		// A probe is already in flight.
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess closes the breaker and resets the failure count.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = stateClosed
	b.consecutiveFailures = 0
}

// RecordFailure counts a failed request and opens the breaker at the
// threshold. A failed half-open probe re-opens immediately.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.consecutiveFailures++
	if b.state == stateHalfOpen || b.consecutiveFailures >= b.threshold {
		b.state = stateOpen
		b.openedAt = b.clock()
	}
}
