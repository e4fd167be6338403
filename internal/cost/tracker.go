package cost

import (
	"sync"

	"go.uber.org/zap"
)

// Usage accumulates calls, tokens, and estimated cost for one api type.
type Usage struct {
	Calls   int     `json:"calls"`
	Tokens  int     `json:"tokens"`
	CostUSD float64 `json:"cost_usd"`
}

// Tracker is the process-wide usage ledger. Every API call path reports its
// token usage and estimated cost here. The tracker is constructed at pipeline
// startup and injected; it is reset only via an explicit Reset call, never
// implicitly.
type Tracker struct {
	mu     sync.Mutex
	byType map[string]*Usage
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{byType: make(map[string]*Usage)}
}

// Record adds one call's usage under the given api type.
func (t *Tracker) Record(apiType string, tokens int, costUSD float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	u, ok := t.byType[apiType]
	if !ok {
		u = &Usage{}
		t.byType[apiType] = u
	}
	u.Calls++
	u.Tokens += tokens
	u.CostUSD += costUSD

	zap.L().Debug("cost: recorded call",
		zap.String("api_type", apiType),
		zap.Int("tokens", tokens),
		zap.Float64("cost_usd", costUSD),
	)
}

// ByType returns a copy of the per-api-type totals.
func (t *Tracker) ByType() map[string]Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Usage, len(t.byType))
	for k, v := range t.byType {
		out[k] = *v
	}
	return out
}

// Session returns the aggregate totals across all api types.
func (t *Tracker) Session() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	var total Usage
	for _, u := range t.byType {
		total.Calls += u.Calls
		total.Tokens += u.Tokens
		total.CostUSD += u.CostUSD
	}
	return total
}

// Reset clears all counters.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byType = make(map[string]*Usage)
}
