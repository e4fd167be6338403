package resilience

import (
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the circuit is
// open. The multi-query collector treats it as a signal to stop issuing
// further template calls against a dead upstream.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker is a minimal circuit breaker for a single upstream service. After
// FailureThreshold consecutive failures it rejects calls for ResetTimeout,
// then admits a single probe; a successful probe closes the circuit again.
type Breaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration

	consecutiveFailures int
	openedAt            time.Time
	open                bool

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a Breaker. threshold <= 0 defaults to 5, resetTimeout
// <= 0 defaults to 30s.
func NewBreaker(threshold int, resetTimeout time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: threshold,
		resetTimeout:     resetTimeout,
		nowFunc:          time.Now,
	}
}

// Allow reports whether a call may proceed. While open, only one probe per
// ResetTimeout window is admitted.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if b.nowFunc().Sub(b.openedAt) >= b.resetTimeout {
		// Half-open: admit a probe and push the window forward so repeated
		// Allow calls don't flood a still-dead upstream.
		b.openedAt = b.nowFunc()
		return nil
	}
	return ErrCircuitOpen
}

// Record reports a call outcome. Non-transient errors do not trip the breaker.
func (b *Breaker) Record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil || !IsTransient(err) {
		b.consecutiveFailures = 0
		b.open = false
		return
	}

	b.consecutiveFailures++
	if b.consecutiveFailures >= b.failureThreshold && !b.open {
		b.open = true
		b.openedAt = b.nowFunc()
	}
}

// Open reports whether the circuit is currently open.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && b.nowFunc().Sub(b.openedAt) < b.resetTimeout
}

// Reset forces the circuit closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.consecutiveFailures = 0
}
