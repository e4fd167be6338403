// Package collector implements query-driven artifact collection: the
// Connector contract all data sources satisfy, and a search-backed collector
// that turns one topical query into a bounded set of attributable artifacts.
package collector

import (
	"context"

	"github.com/impactwatch/intel-cli/internal/model"
)

// Options carries per-collection parameters beyond the query itself.
type Options struct {
	// Category selects the query template family. Empty means no template;
	// the raw query is used as-is.
	Category model.Category

	// Timeframe is free text interpolated into the query ("2025-2026",
	// "last 12 months").
	Timeframe string
}

// Connector is the polymorphic surface every artifact source implements, so
// the rest of the pipeline stays source-agnostic.
//
// Collect fails with a resilience.ConfigError when credentials are invalid
// and a resilience.SourceError for transient upstream failures; the caller
// owns retry policy. ValidateConfig performs a cheap round-trip to confirm
// credentials are usable and never returns an error, only false (with the
// cause logged).
type Connector interface {
	Name() string
	Collect(ctx context.Context, query string, maxResults int, opts Options) ([]model.Artifact, error)
	ValidateConfig(ctx context.Context) bool
}
