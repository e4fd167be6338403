package model

import "time"

// Reliability is a doctrine-based A-F grade of how trustworthy the origin of
// a piece of information is. A means a proven, consistently accurate source;
// F means reliability cannot be judged.
type Reliability string

const (
	ReliabilityA Reliability = "A"
	ReliabilityB Reliability = "B"
	ReliabilityC Reliability = "C"
	ReliabilityD Reliability = "D"
	ReliabilityE Reliability = "E"
	ReliabilityF Reliability = "F"
)

// Valid reports whether r is one of the A-F grades.
func (r Reliability) Valid() bool {
	switch r {
	case ReliabilityA, ReliabilityB, ReliabilityC, ReliabilityD, ReliabilityE, ReliabilityF:
		return true
	}
	return false
}

// Credibility is a doctrine-based 1-6 grade of how plausible the content
// itself is, independent of its source. 1 means confirmed by independent
// sources; 6 means credibility cannot be judged.
type Credibility int

// Valid reports whether c is in the 1-6 range.
func (c Credibility) Valid() bool {
	return c >= 1 && c <= 6
}

// SourceScore is a credibility assessment attached to an Artifact.
// OverallScore is a pure deterministic function of the other six graded
// fields (see scorer.Composite) and is never independently mutated.
type SourceScore struct {
	ID                string      `json:"id,omitempty"`
	ArtifactID        string      `json:"artifact_id"`
	SourceReliability Reliability `json:"source_reliability"`
	InfoCredibility   Credibility `json:"info_credibility"`
	Specificity       float64     `json:"specificity"`
	Recency           float64     `json:"recency"`
	Evidence          float64     `json:"evidence"`
	Expert            float64     `json:"expert"`
	OverallScore      float64     `json:"overall_score"`
	Rationale         string      `json:"rationale"`
	ModelUsed         string      `json:"model_used"`
	ScoredAt          time.Time   `json:"scored_at"`
}
