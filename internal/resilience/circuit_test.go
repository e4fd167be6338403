package resilience

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error {
	return NewSourceError("api", 503, eris.New("unavailable"))
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for range 3 {
		require.NoError(t, b.Allow())
		b.Record(transientErr())
	}

	assert.True(t, b.Open())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerIgnoresNonTransient(t *testing.T) {
	b := NewBreaker(2, time.Minute)

	b.Record(eris.New("parse failure"))
	b.Record(eris.New("parse failure"))

	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreakerSuccessResets(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.Record(transientErr())
	b.Record(transientErr())
	b.Record(nil)
	b.Record(transientErr())

	assert.False(t, b.Open())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker(1, 10*time.Second)
	b.nowFunc = func() time.Time { return now }

	b.Record(transientErr())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the reset window one probe is admitted.
	now = now.Add(11 * time.Second)
	require.NoError(t, b.Allow())
	// A second call inside the same window is rejected again.
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// A successful probe closes the circuit.
	b.Record(nil)
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}

func TestBreakerReset(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	b.Record(transientErr())
	require.True(t, b.Open())

	b.Reset()
	assert.False(t, b.Open())
	assert.NoError(t, b.Allow())
}
