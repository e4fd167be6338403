package scorer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/impactwatch/intel-cli/internal/model"
)

// unparsableRationale is the sentinel rationale when the model omitted one.
const unparsableRationale = "unable to parse rationale"

// Field regexes are independent of each other so a partially malformed
// response still yields every field the model did produce. Fixed-field text
// tolerates drift better than strict JSON here, at the cost of the defaults
// below.
var (
	reliabilityRe = regexp.MustCompile(`(?im)^\s*SOURCE_RELIABILITY:\s*([A-F])\b`)
	credibilityRe = regexp.MustCompile(`(?im)^\s*INFO_CREDIBILITY:\s*([1-6])\b`)
	specificityRe = regexp.MustCompile(`(?im)^\s*SPECIFICITY:\s*([0-9]*\.?[0-9]+)`)
	recencyRe     = regexp.MustCompile(`(?im)^\s*RECENCY:\s*([0-9]*\.?[0-9]+)`)
	evidenceRe    = regexp.MustCompile(`(?im)^\s*EVIDENCE:\s*([0-9]*\.?[0-9]+)`)
	expertRe      = regexp.MustCompile(`(?im)^\s*EXPERT:\s*([0-9]*\.?[0-9]+)`)
	rationaleRe   = regexp.MustCompile(`(?im)^\s*RATIONALE:\s*(.+)$`)
)

// parsedFields holds the defaulted, clamped result of parsing one response.
type parsedFields struct {
	Reliability model.Reliability
	Credibility model.Credibility
	Specificity float64
	Recency     float64
	Evidence    float64
	Expert      float64
	Rationale   string
}

// parseResponse extracts each labeled field independently, applying the
// documented defaults: F for reliability, 6 for credibility, 0.5 for each
// subscore, and a sentinel rationale. Subscores are clamped to [0,1]
// regardless of what the model returned.
func parseResponse(text string) parsedFields {
	p := parsedFields{
		Reliability: model.ReliabilityF,
		Credibility: 6,
		Specificity: 0.5,
		Recency:     0.5,
		Evidence:    0.5,
		Expert:      0.5,
		Rationale:   unparsableRationale,
	}

	if m := reliabilityRe.FindStringSubmatch(text); m != nil {
		p.Reliability = model.Reliability(strings.ToUpper(m[1]))
	}
	if m := credibilityRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			p.Credibility = model.Credibility(n)
		}
	}
	p.Specificity = parseSubscore(specificityRe, text, p.Specificity)
	p.Recency = parseSubscore(recencyRe, text, p.Recency)
	p.Evidence = parseSubscore(evidenceRe, text, p.Evidence)
	p.Expert = parseSubscore(expertRe, text, p.Expert)

	if m := rationaleRe.FindStringSubmatch(text); m != nil {
		if r := strings.TrimSpace(m[1]); r != "" {
			p.Rationale = r
		}
	}

	return p
}

func parseSubscore(re *regexp.Regexp, text string, fallback float64) float64 {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return fallback
	}
	return clamp01(v)
}
