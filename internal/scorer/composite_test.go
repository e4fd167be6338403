package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/impactwatch/intel-cli/internal/model"
)

func TestCompositeRegression(t *testing.T) {
	// Exact weight constants: B=0.8, 2=0.8 →
	// 0.8*0.30 + 0.8*0.30 + 0.7*0.09 + 0.6*0.09 + 0.8*0.13 + 0.5*0.09 = 0.746 → 0.75
	got := Composite(model.ReliabilityB, 2, 0.7, 0.6, 0.8, 0.5)
	assert.Equal(t, 0.75, got)

	// Deterministic across invocations.
	for range 10 {
		assert.Equal(t, got, Composite(model.ReliabilityB, 2, 0.7, 0.6, 0.8, 0.5))
	}
}

func TestCompositeBounds(t *testing.T) {
	assert.Equal(t, 1.0, Composite(model.ReliabilityA, 1, 1, 1, 1, 1))
	assert.Equal(t, 0.0, Composite(model.ReliabilityF, 6, 0, 0, 0, 0))
}

func TestCompositeClampsSubscores(t *testing.T) {
	// Out-of-range subscores are clamped, not propagated.
	high := Composite(model.ReliabilityA, 1, 5.0, 2.0, 9.9, 1.5)
	assert.Equal(t, 1.0, high)

	low := Composite(model.ReliabilityF, 6, -1, -0.5, -3, -0.1)
	assert.Equal(t, 0.0, low)
}

func TestCompositeWeightsSumToOne(t *testing.T) {
	sum := weightReliability + weightCredibility + weightSpecificity +
		weightRecency + weightEvidence + weightExpert
	assert.InDelta(t, 1.0, sum, 1e-9)
	// Reliability + credibility carry 60%; evidence outweighs the other
	// continuous factors.
	assert.InDelta(t, 0.6, weightReliability+weightCredibility, 1e-9)
	assert.Greater(t, weightEvidence, weightSpecificity)
}

func TestCompositeTwoDecimalRounding(t *testing.T) {
	// C=0.6, 3=0.6: 0.6*0.6 + 0.333*0.09 + 0.333*0.09 + 0.333*0.13 + 0.333*0.09
	got := Composite(model.ReliabilityC, 3, 0.333, 0.333, 0.333, 0.333)
	assert.Equal(t, 0.49, got)
}
