// Package ratelimit provides a per-source token-bucket registry shared by
// every outbound API call path. The registry is constructed once at pipeline
// startup and passed through explicitly; there is no package-level singleton.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultPerMinute is the ceiling applied to sources without an explicit
// entry in the registry.
const DefaultPerMinute = 20

// Registry holds one limiter per source name. Every outbound call must
// acquire permission via Wait before issuing the network request.
type Registry struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	fallback int
}

// NewRegistry creates a Registry from a source -> calls-per-minute map.
// Sources not present in the map get DefaultPerMinute.
func NewRegistry(perMinute map[string]int) *Registry {
	r := &Registry{
		limiters: make(map[string]*rate.Limiter, len(perMinute)),
		fallback: DefaultPerMinute,
	}
	for source, n := range perMinute {
		r.limiters[source] = newLimiter(n)
	}
	return r
}

func newLimiter(perMinute int) *rate.Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)
}

// Wait blocks until the source's limiter allows one call, or the context is
// done. Unknown sources are registered lazily with the default ceiling.
func (r *Registry) Wait(ctx context.Context, source string) error {
	r.mu.Lock()
	lim, ok := r.limiters[source]
	if !ok {
		lim = newLimiter(r.fallback)
		r.limiters[source] = lim
		zap.L().Debug("ratelimit: registered source with default ceiling",
			zap.String("source", source),
			zap.Int("per_minute", r.fallback),
		)
	}
	r.mu.Unlock()

	if err := lim.Wait(ctx); err != nil {
		return eris.Wrapf(err, "ratelimit: wait for %s", source)
	}
	return nil
}

// Allow reports whether a call for source would be admitted right now,
// consuming a token if so. Used by cheap validation paths that must not block.
func (r *Registry) Allow(source string) bool {
	r.mu.Lock()
	lim, ok := r.limiters[source]
	if !ok {
		lim = newLimiter(r.fallback)
		r.limiters[source] = lim
	}
	r.mu.Unlock()
	return lim.Allow()
}
