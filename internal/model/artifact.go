package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Artifact is a single collected unit of evidence: one cited article, report,
// or transcript excerpt discussing automation's impact on a profession.
// An Artifact is immutable after collection except for Metadata, which
// downstream stages may extend.
type Artifact struct {
	ID          string         `json:"id"`
	URL         string         `json:"url"`
	Title       string         `json:"title"`
	Content     string         `json:"content"`
	SourceType  string         `json:"source_type"`
	CollectedAt time.Time      `json:"collected_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// Metadata keys written by the collector.
const (
	MetaQuery            = "query"
	MetaCategory         = "category"
	MetaCitationIndex    = "citation_index"
	MetaCitationCount    = "citation_count"
	MetaExtractionMethod = "extraction_method"
	MetaResponseID       = "response_id"
)

// Extraction methods recorded under MetaExtractionMethod.
const (
	ExtractionCitation     = "citation-based"
	ExtractionScrapedTitle = "scraped-title"
	ExtractionFallback     = "fallback-title"
)

// GenerateArtifactID derives a deterministic artifact id from the source name,
// a timestamp, and a short hash of the URL. Repeated collection of the same
// URL in the same second from the same source yields the same id; cross-run
// dedup must use URL equality instead.
func GenerateArtifactID(source, url string, at time.Time) string {
	sum := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%s-%d-%s", source, at.Unix(), hex.EncodeToString(sum[:])[:12])
}

// SetMeta extends the artifact's metadata map, allocating it on first use.
func (a *Artifact) SetMeta(key string, value any) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]any)
	}
	a.Metadata[key] = value
}
