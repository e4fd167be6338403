package store

import (
	"context"

	"github.com/impactwatch/intel-cli/internal/model"
)

// ArtifactFilter specifies criteria for listing artifacts.
type ArtifactFilter struct {
	Category   model.Category `json:"category,omitempty"`
	SourceType string         `json:"source_type,omitempty"`
	Limit      int            `json:"limit,omitempty"`
	Offset     int            `json:"offset,omitempty"`
}

// Store defines the persistence interface for the intelligence pipeline.
// Artifacts are unique by URL; saving an already-stored URL is a no-op.
// Classifications and source scores are append-only: re-running a judgment
// with a different model appends a new row rather than overwriting history.
type Store interface {
	// Artifacts
	SaveArtifact(ctx context.Context, a *model.Artifact) error
	SaveArtifacts(ctx context.Context, artifacts []model.Artifact) (int, error)
	GetArtifact(ctx context.Context, id string) (*model.Artifact, error)
	ArtifactExists(ctx context.Context, url string) (bool, error)
	ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]model.Artifact, error)
	ListArtifactURLs(ctx context.Context) ([]string, error)

	// Judgments
	SaveClassification(ctx context.Context, c *model.Classification) error
	ListClassifications(ctx context.Context, artifactID string) ([]model.Classification, error)
	SaveSourceScore(ctx context.Context, sc *model.SourceScore) error
	ListSourceScores(ctx context.Context, artifactID string) ([]model.SourceScore, error)

	// Work queues for the classify/score commands
	ListUnclassified(ctx context.Context, limit int) ([]model.Artifact, error)
	ListUnscored(ctx context.Context, limit int) ([]model.Artifact, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
