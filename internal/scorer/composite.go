package scorer

import (
	"math"

	"github.com/impactwatch/intel-cli/internal/model"
)

// Composite weights. Reliability and credibility together carry 60% of the
// overall score; the remaining 40% splits across the four continuous factors
// with evidence weighted slightly higher than the others.
const (
	weightReliability = 0.30
	weightCredibility = 0.30
	weightSpecificity = 0.09
	weightRecency     = 0.09
	weightEvidence    = 0.13
	weightExpert      = 0.09
)

// reliabilityAnchors maps the A-F scale to numeric values.
var reliabilityAnchors = map[model.Reliability]float64{
	model.ReliabilityA: 1.0,
	model.ReliabilityB: 0.8,
	model.ReliabilityC: 0.6,
	model.ReliabilityD: 0.4,
	model.ReliabilityE: 0.2,
	model.ReliabilityF: 0.0,
}

// credibilityAnchors maps the 1-6 scale to numeric values.
var credibilityAnchors = map[model.Credibility]float64{
	1: 1.0,
	2: 0.8,
	3: 0.6,
	4: 0.4,
	5: 0.2,
	6: 0.0,
}

// Composite computes the overall score as a fixed-weight linear combination
// of the six graded factors, rounded to 2 decimal places. It is pure: the
// same inputs always yield the same output, with no LLM involvement.
func Composite(reliability model.Reliability, credibility model.Credibility, specificity, recency, evidence, expert float64) float64 {
	score := reliabilityAnchors[reliability]*weightReliability +
		credibilityAnchors[credibility]*weightCredibility +
		clamp01(specificity)*weightSpecificity +
		clamp01(recency)*weightRecency +
		clamp01(evidence)*weightEvidence +
		clamp01(expert)*weightExpert

	return math.Round(score*100) / 100
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
