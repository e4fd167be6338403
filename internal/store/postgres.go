package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/impactwatch/intel-cli/internal/db"
	"github.com/impactwatch/intel-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_artifact": `INSERT INTO artifacts (id, url, title, content, source_type, collected_at, metadata)
	 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (url) DO NOTHING`,
	"get_artifact":    `SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE id = $1`,
	"artifact_exists": `SELECT EXISTS(SELECT 1 FROM artifacts WHERE url = $1)`,
	"insert_classification": `INSERT INTO classifications (id, artifact_id, category, confidence, rationale, model_used, classified_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
	"insert_source_score": `INSERT INTO source_scores
	 (id, artifact_id, source_reliability, info_credibility, specificity, recency, evidence, expert, overall_score, rationale, model_used, scored_at)
	 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS artifacts (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL,
	source_type  TEXT NOT NULL,
	collected_at TIMESTAMPTZ NOT NULL,
	metadata     JSONB
);

CREATE TABLE IF NOT EXISTS classifications (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	artifact_id   TEXT NOT NULL REFERENCES artifacts(id),
	category      TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL,
	rationale     TEXT NOT NULL,
	model_used    TEXT NOT NULL,
	classified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS source_scores (
	id                 TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	artifact_id        TEXT NOT NULL REFERENCES artifacts(id),
	source_reliability TEXT NOT NULL,
	info_credibility   INTEGER NOT NULL,
	specificity        DOUBLE PRECISION NOT NULL,
	recency            DOUBLE PRECISION NOT NULL,
	evidence           DOUBLE PRECISION NOT NULL,
	expert             DOUBLE PRECISION NOT NULL,
	overall_score      DOUBLE PRECISION NOT NULL,
	rationale          TEXT NOT NULL,
	model_used         TEXT NOT NULL,
	scored_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_artifacts_url ON artifacts(url);
CREATE INDEX IF NOT EXISTS idx_artifacts_source_type ON artifacts(source_type);
CREATE INDEX IF NOT EXISTS idx_artifacts_category ON artifacts((metadata->>'category'));
CREATE INDEX IF NOT EXISTS idx_classifications_artifact_id ON classifications(artifact_id);
CREATE INDEX IF NOT EXISTS idx_source_scores_artifact_id ON source_scores(artifact_id);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	metaJSON, err := marshalMetadataBytes(a.Metadata)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal metadata")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO artifacts (id, url, title, content, source_type, collected_at, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (url) DO NOTHING`,
		a.ID, a.URL, a.Title, a.Content, a.SourceType, a.CollectedAt.UTC(), metaJSON,
	)
	return eris.Wrapf(err, "postgres: insert artifact %s", a.ID)
}

// SaveArtifacts bulk-inserts a batch via COPY. The collector deduplicates
// against the store's URL set before calling, so URL conflicts do not occur
// within a run.
func (s *PostgresStore) SaveArtifacts(ctx context.Context, artifacts []model.Artifact) (int, error) {
	if len(artifacts) == 0 {
		return 0, nil
	}

	columns := []string{"id", "url", "title", "content", "source_type", "collected_at", "metadata"}
	rows := make([][]any, 0, len(artifacts))
	for i := range artifacts {
		a := &artifacts[i]
		metaJSON, err := marshalMetadataBytes(a.Metadata)
		if err != nil {
			return 0, eris.Wrap(err, "postgres: marshal metadata")
		}
		rows = append(rows, []any{a.ID, a.URL, a.Title, a.Content, a.SourceType, a.CollectedAt.UTC(), metaJSON})
	}

	n, err := db.CopyFrom(ctx, s.pool, "artifacts", columns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: save artifacts")
	}
	return int(n), nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	a, err := scanArtifactRow(s.pool.QueryRow(ctx,
		`SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, eris.Errorf("artifact not found: %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get artifact %s", id)
	}
	return a, nil
}

func (s *PostgresStore) ArtifactExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifacts WHERE url = $1)`,
		url,
	).Scan(&exists)
	return exists, eris.Wrap(err, "postgres: artifact exists")
}

func (s *PostgresStore) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]model.Artifact, error) {
	query := `SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Category != "" {
		query += fmt.Sprintf(` AND metadata->>'category' = $%d`, argIdx)
		args = append(args, string(filter.Category))
		argIdx++
	}
	if filter.SourceType != "" {
		query += fmt.Sprintf(` AND source_type = $%d`, argIdx)
		args = append(args, filter.SourceType)
		argIdx++
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list artifacts")
	}
	defer rows.Close()

	return collectArtifactRows(rows, "postgres: list artifacts iterate")
}

func (s *PostgresStore) ListArtifactURLs(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT url FROM artifacts`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list artifact urls")
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "postgres: scan artifact url")
		}
		urls = append(urls, u)
	}
	return urls, eris.Wrap(rows.Err(), "postgres: list artifact urls iterate")
}

func (s *PostgresStore) SaveClassification(ctx context.Context, c *model.Classification) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ClassifiedAt.IsZero() {
		c.ClassifiedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO classifications (id, artifact_id, category, confidence, rationale, model_used, classified_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		c.ID, c.ArtifactID, string(c.Category), c.Confidence, c.Rationale, c.ModelUsed, c.ClassifiedAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert classification for %s", c.ArtifactID)
}

func (s *PostgresStore) ListClassifications(ctx context.Context, artifactID string) ([]model.Classification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, artifact_id, category, confidence, rationale, model_used, classified_at
		 FROM classifications WHERE artifact_id = $1 ORDER BY classified_at DESC`,
		artifactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list classifications for %s", artifactID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		if err := rows.Scan(&c.ID, &c.ArtifactID, &c.Category, &c.Confidence, &c.Rationale, &c.ModelUsed, &c.ClassifiedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan classification")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list classifications iterate")
}

func (s *PostgresStore) SaveSourceScore(ctx context.Context, sc *model.SourceScore) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.ScoredAt.IsZero() {
		sc.ScoredAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO source_scores
		 (id, artifact_id, source_reliability, info_credibility, specificity, recency, evidence, expert, overall_score, rationale, model_used, scored_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sc.ID, sc.ArtifactID, string(sc.SourceReliability), int(sc.InfoCredibility),
		sc.Specificity, sc.Recency, sc.Evidence, sc.Expert, sc.OverallScore,
		sc.Rationale, sc.ModelUsed, sc.ScoredAt.UTC(),
	)
	return eris.Wrapf(err, "postgres: insert source score for %s", sc.ArtifactID)
}

func (s *PostgresStore) ListSourceScores(ctx context.Context, artifactID string) ([]model.SourceScore, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, artifact_id, source_reliability, info_credibility, specificity, recency, evidence, expert, overall_score, rationale, model_used, scored_at
		 FROM source_scores WHERE artifact_id = $1 ORDER BY scored_at DESC`,
		artifactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list source scores for %s", artifactID)
	}
	defer rows.Close()

	var out []model.SourceScore
	for rows.Next() {
		var sc model.SourceScore
		var reliability string
		var credibility int
		if err := rows.Scan(&sc.ID, &sc.ArtifactID, &reliability, &credibility,
			&sc.Specificity, &sc.Recency, &sc.Evidence, &sc.Expert, &sc.OverallScore,
			&sc.Rationale, &sc.ModelUsed, &sc.ScoredAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan source score")
		}
		sc.SourceReliability = model.Reliability(reliability)
		sc.InfoCredibility = model.Credibility(credibility)
		out = append(out, sc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list source scores iterate")
}

func (s *PostgresStore) ListUnclassified(ctx context.Context, limit int) ([]model.Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.url, a.title, a.content, a.source_type, a.collected_at, a.metadata
		 FROM artifacts a
		 LEFT JOIN classifications c ON c.artifact_id = a.id
		 WHERE c.id IS NULL
		 ORDER BY a.collected_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unclassified")
	}
	defer rows.Close()

	return collectArtifactRows(rows, "postgres: list unclassified iterate")
}

func (s *PostgresStore) ListUnscored(ctx context.Context, limit int) ([]model.Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, a.url, a.title, a.content, a.source_type, a.collected_at, a.metadata
		 FROM artifacts a
		 LEFT JOIN source_scores sc ON sc.artifact_id = a.id
		 WHERE sc.id IS NULL
		 ORDER BY a.collected_at ASC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list unscored")
	}
	defer rows.Close()

	return collectArtifactRows(rows, "postgres: list unscored iterate")
}

// helpers

func marshalMetadataBytes(meta map[string]any) ([]byte, error) {
	if meta == nil {
		return nil, nil
	}
	return json.Marshal(meta)
}

func scanArtifactRow(row pgx.Row) (*model.Artifact, error) {
	var a model.Artifact
	var metaNull *[]byte

	if err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Content, &a.SourceType, &a.CollectedAt, &metaNull); err != nil {
		return nil, err
	}
	if metaNull != nil {
		if err := json.Unmarshal(*metaNull, &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal metadata")
		}
	}
	return &a, nil
}

func collectArtifactRows(rows pgx.Rows, wrapMsg string) ([]model.Artifact, error) {
	var out []model.Artifact
	for rows.Next() {
		a, err := scanArtifactRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan artifact")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
