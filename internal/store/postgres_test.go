package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/impactwatch/intel-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetArtifact_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE id = \$1`).
		WithArgs("missing-id").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetArtifact(context.Background(), "missing-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveArtifact(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	a := testArtifact("https://example.com/pg")
	mock.ExpectExec(`INSERT INTO artifacts`).
		WithArgs(a.ID, a.URL, a.Title, a.Content, a.SourceType, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveArtifact(context.Background(), &a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveArtifacts_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	batch := []model.Artifact{
		testArtifact("https://example.com/c1"),
		testArtifact("https://example.com/c2"),
	}
	mock.ExpectCopyFrom(pgx.Identifier{"artifacts"},
		[]string{"id", "url", "title", "content", "source_type", "collected_at", "metadata"}).
		WillReturnResult(2)

	n, err := s.SaveArtifacts(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ArtifactExists(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM artifacts WHERE url = \$1\)`).
		WithArgs("https://example.com/known").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := s.ArtifactExists(context.Background(), "https://example.com/known")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveClassification_AssignsID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	c := model.Classification{
		ArtifactID: "artifact-1",
		Category:   model.CategoryReplace,
		Confidence: 0.9,
		Rationale:  "explicit replacement claims",
		ModelUsed:  "claude-haiku",
	}
	mock.ExpectExec(`INSERT INTO classifications`).
		WithArgs(pgxmock.AnyArg(), "artifact-1", "replace", 0.9, "explicit replacement claims", "claude-haiku", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SaveClassification(context.Background(), &c))
	assert.NotEmpty(t, c.ID)
	assert.False(t, c.ClassifiedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListSourceScores(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	scoredAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows([]string{
		"id", "artifact_id", "source_reliability", "info_credibility",
		"specificity", "recency", "evidence", "expert", "overall_score",
		"rationale", "model_used", "scored_at",
	}).AddRow("score-1", "artifact-1", "B", 2, 0.7, 0.6, 0.8, 0.5, 0.75,
		"named employer with concrete numbers", "claude-haiku", scoredAt)

	mock.ExpectQuery(`SELECT id, artifact_id, source_reliability`).
		WithArgs("artifact-1").
		WillReturnRows(rows)

	got, err := s.ListSourceScores(context.Background(), "artifact-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ReliabilityB, got[0].SourceReliability)
	assert.Equal(t, model.Credibility(2), got[0].InfoCredibility)
	assert.InDelta(t, 0.75, got[0].OverallScore, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUnclassified(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	collectedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := []byte(`{"category":"replace"}`)
	rows := pgxmock.NewRows([]string{
		"id", "url", "title", "content", "source_type", "collected_at", "metadata",
	}).AddRow("artifact-1", "https://example.com/pending", "Pending", "body", "perplexity", collectedAt, &meta)

	mock.ExpectQuery(`LEFT JOIN classifications`).
		WithArgs(10).
		WillReturnRows(rows)

	got, err := s.ListUnclassified(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "https://example.com/pending", got[0].URL)
	assert.Equal(t, "replace", got[0].Metadata[model.MetaCategory])
	assert.NoError(t, mock.ExpectationsWereMet())
}
