package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/impactwatch/intel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS artifacts (
	id           TEXT PRIMARY KEY,
	url          TEXT NOT NULL UNIQUE,
	title        TEXT NOT NULL,
	content      TEXT NOT NULL,
	source_type  TEXT NOT NULL,
	collected_at DATETIME NOT NULL,
	metadata     TEXT
);

CREATE TABLE IF NOT EXISTS classifications (
	id            TEXT PRIMARY KEY,
	artifact_id   TEXT NOT NULL REFERENCES artifacts(id),
	category      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	rationale     TEXT NOT NULL,
	model_used    TEXT NOT NULL,
	classified_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS source_scores (
	id                 TEXT PRIMARY KEY,
	artifact_id        TEXT NOT NULL REFERENCES artifacts(id),
	source_reliability TEXT NOT NULL,
	info_credibility   INTEGER NOT NULL,
	specificity        REAL NOT NULL,
	recency            REAL NOT NULL,
	evidence           REAL NOT NULL,
	expert             REAL NOT NULL,
	overall_score      REAL NOT NULL,
	rationale          TEXT NOT NULL,
	model_used         TEXT NOT NULL,
	scored_at          DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_artifacts_url ON artifacts(url);
CREATE INDEX IF NOT EXISTS idx_artifacts_source_type ON artifacts(source_type);
CREATE INDEX IF NOT EXISTS idx_classifications_artifact_id ON classifications(artifact_id);
CREATE INDEX IF NOT EXISTS idx_source_scores_artifact_id ON source_scores(artifact_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveArtifact(ctx context.Context, a *model.Artifact) error {
	metaJSON, err := marshalMetadata(a.Metadata)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal metadata")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO artifacts (id, url, title, content, source_type, collected_at, metadata)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.URL, a.Title, a.Content, a.SourceType, a.CollectedAt.UTC(), metaJSON,
	)
	return eris.Wrapf(err, "sqlite: insert artifact %s", a.ID)
}

// SaveArtifacts inserts a batch in one transaction, skipping URLs already
// stored. Returns the number of rows actually inserted.
func (s *SQLiteStore) SaveArtifacts(ctx context.Context, artifacts []model.Artifact) (int, error) {
	if len(artifacts) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var inserted int64
	for i := range artifacts {
		a := &artifacts[i]
		metaJSON, err := marshalMetadata(a.Metadata)
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal metadata")
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO artifacts (id, url, title, content, source_type, collected_at, metadata)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.URL, a.Title, a.Content, a.SourceType, a.CollectedAt.UTC(), metaJSON,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert artifact %s", a.ID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit tx")
	}
	return int(inserted), nil
}

func (s *SQLiteStore) GetArtifact(ctx context.Context, id string) (*model.Artifact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE id = ?`,
		id,
	)
	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, eris.Errorf("artifact not found: %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get artifact %s", id)
	}
	return a, nil
}

func (s *SQLiteStore) ArtifactExists(ctx context.Context, url string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM artifacts WHERE url = ?)`,
		url,
	).Scan(&exists)
	return exists, eris.Wrap(err, "sqlite: artifact exists")
}

func (s *SQLiteStore) ListArtifacts(ctx context.Context, filter ArtifactFilter) ([]model.Artifact, error) {
	query := `SELECT id, url, title, content, source_type, collected_at, metadata FROM artifacts WHERE 1=1`
	var args []any

	if filter.Category != "" {
		query += ` AND json_extract(metadata, '$.category') = ?`
		args = append(args, string(filter.Category))
	}
	if filter.SourceType != "" {
		query += ` AND source_type = ?`
		args = append(args, filter.SourceType)
	}
	query += ` ORDER BY collected_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list artifacts")
	}
	defer rows.Close()

	return collectArtifacts(rows, "sqlite: list artifacts iterate")
}

func (s *SQLiteStore) ListArtifactURLs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM artifacts`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list artifact urls")
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan artifact url")
		}
		urls = append(urls, u)
	}
	return urls, eris.Wrap(rows.Err(), "sqlite: list artifact urls iterate")
}

func (s *SQLiteStore) SaveClassification(ctx context.Context, c *model.Classification) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.ClassifiedAt.IsZero() {
		c.ClassifiedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classifications (id, artifact_id, category, confidence, rationale, model_used, classified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.ArtifactID, string(c.Category), c.Confidence, c.Rationale, c.ModelUsed, c.ClassifiedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert classification for %s", c.ArtifactID)
}

func (s *SQLiteStore) ListClassifications(ctx context.Context, artifactID string) ([]model.Classification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artifact_id, category, confidence, rationale, model_used, classified_at
		 FROM classifications WHERE artifact_id = ? ORDER BY classified_at DESC`,
		artifactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list classifications for %s", artifactID)
	}
	defer rows.Close()

	var out []model.Classification
	for rows.Next() {
		var c model.Classification
		if err := rows.Scan(&c.ID, &c.ArtifactID, &c.Category, &c.Confidence, &c.Rationale, &c.ModelUsed, &c.ClassifiedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan classification")
		}
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list classifications iterate")
}

func (s *SQLiteStore) SaveSourceScore(ctx context.Context, sc *model.SourceScore) error {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.ScoredAt.IsZero() {
		sc.ScoredAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO source_scores
		 (id, artifact_id, source_reliability, info_credibility, specificity, recency, evidence, expert, overall_score, rationale, model_used, scored_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.ArtifactID, string(sc.SourceReliability), int(sc.InfoCredibility),
		sc.Specificity, sc.Recency, sc.Evidence, sc.Expert, sc.OverallScore,
		sc.Rationale, sc.ModelUsed, sc.ScoredAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert source score for %s", sc.ArtifactID)
}

func (s *SQLiteStore) ListSourceScores(ctx context.Context, artifactID string) ([]model.SourceScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, artifact_id, source_reliability, info_credibility, specificity, recency, evidence, expert, overall_score, rationale, model_used, scored_at
		 FROM source_scores WHERE artifact_id = ? ORDER BY scored_at DESC`,
		artifactID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list source scores for %s", artifactID)
	}
	defer rows.Close()

	var out []model.SourceScore
	for rows.Next() {
		sc, err := scanSourceScore(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *sc)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list source scores iterate")
}

func (s *SQLiteStore) ListUnclassified(ctx context.Context, limit int) ([]model.Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.url, a.title, a.content, a.source_type, a.collected_at, a.metadata
		 FROM artifacts a
		 LEFT JOIN classifications c ON c.artifact_id = a.id
		 WHERE c.id IS NULL
		 ORDER BY a.collected_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unclassified")
	}
	defer rows.Close()

	return collectArtifacts(rows, "sqlite: list unclassified iterate")
}

func (s *SQLiteStore) ListUnscored(ctx context.Context, limit int) ([]model.Artifact, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.url, a.title, a.content, a.source_type, a.collected_at, a.metadata
		 FROM artifacts a
		 LEFT JOIN source_scores sc ON sc.artifact_id = a.id
		 WHERE sc.id IS NULL
		 ORDER BY a.collected_at ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list unscored")
	}
	defer rows.Close()

	return collectArtifacts(rows, "sqlite: list unscored iterate")
}

// helpers

func marshalMetadata(meta map[string]any) (sql.NullString, error) {
	if meta == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanArtifact(row scannable) (*model.Artifact, error) {
	var a model.Artifact
	var metaJSON sql.NullString

	err := row.Scan(&a.ID, &a.URL, &a.Title, &a.Content, &a.SourceType, &a.CollectedAt, &metaJSON)
	if err != nil {
		return nil, err
	}

	if metaJSON.Valid {
		if err := json.Unmarshal([]byte(metaJSON.String), &a.Metadata); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal metadata")
		}
	}
	return &a, nil
}

func scanSourceScore(row scannable) (*model.SourceScore, error) {
	var sc model.SourceScore
	var reliability string
	var credibility int

	err := row.Scan(&sc.ID, &sc.ArtifactID, &reliability, &credibility,
		&sc.Specificity, &sc.Recency, &sc.Evidence, &sc.Expert, &sc.OverallScore,
		&sc.Rationale, &sc.ModelUsed, &sc.ScoredAt)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan source score")
	}

	sc.SourceReliability = model.Reliability(reliability)
	sc.InfoCredibility = model.Credibility(credibility)
	return &sc, nil
}

func collectArtifacts(rows *sql.Rows, wrapMsg string) ([]model.Artifact, error) {
	var out []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan artifact")
		}
		out = append(out, *a)
	}
	return out, eris.Wrap(rows.Err(), wrapMsg)
}
