package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dshills/prdforge/internal/domain"
	"github.com/dshills/prdforge/internal/repository"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// querier is the subset of *sql.DB and *sql.Tx the repository needs.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	store
	db *sql.DB
}

// New creates a new SQLite repository.
func New(dbPath string) (*SQLiteRepository, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	repo := &SQLiteRepository{store: store{q: db}, db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		tool_type TEXT NOT NULL,
		raw_input TEXT NOT NULL,
		title TEXT NOT NULL,
		payload TEXT NOT NULL, -- JSON object, shape keyed by tool_type
		share_id TEXT UNIQUE,
		revision INTEGER NOT NULL DEFAULT 1,
		model TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_tool ON artifacts(tool_type);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at DESC);

	CREATE TABLE IF NOT EXISTS versions (
		id TEXT PRIMARY KEY,
		artifact_id TEXT NOT NULL REFERENCES artifacts(id) ON DELETE CASCADE,
		number INTEGER NOT NULL,
		title TEXT NOT NULL,
		payload TEXT NOT NULL, -- JSON object
		change_summary TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		UNIQUE(artifact_id, number)
	);
	CREATE INDEX IF NOT EXISTS idx_versions_artifact ON versions(artifact_id);

	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		idea TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT 'custom',
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analytics_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		tool_type TEXT NOT NULL DEFAULT '',
		artifact_id TEXT, -- no foreign key: events outlive artifacts
		input_length INTEGER NOT NULL DEFAULT 0,
		generation_time_ms INTEGER NOT NULL DEFAULT 0,
		session_id TEXT NOT NULL DEFAULT '',
		export_type TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_type ON analytics_events(event_type);
	`

	_, err := r.db.Exec(schema)
	return err
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// WithTx executes fn within a transaction.
func (r *SQLiteRepository) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	txRepo := &txRepository{store: store{q: tx}}
	if err := fn(txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// txRepository runs every operation on one transaction.
type txRepository struct {
	store
}

func (t *txRepository) WithTx(ctx context.Context, fn func(repository.Repository) error) error {
	// Already in a transaction, just execute
	return fn(t)
}

func (t *txRepository) Close() error {
	return nil // No-op for transaction wrapper
}

// store holds the queries shared by the pool and transaction wrappers.
type store struct {
	q querier
}

// Artifacts

const artifactColumns = `id, tool_type, raw_input, title, payload, share_id, revision, model, created_at, updated_at`

func (s *store) CreateArtifact(ctx context.Context, a *domain.Artifact) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	_, err = s.q.ExecContext(ctx,
		`INSERT INTO artifacts (`+artifactColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), string(a.ToolType), a.RawInput, a.Title, string(payload), a.ShareID,
		a.Revision, a.Model, a.CreatedAt.Format(timeFormat), a.UpdatedAt.Format(timeFormat))
	return err
}

func (s *store) GetArtifact(ctx context.Context, id uuid.UUID) (*domain.Artifact, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id.String())
	return scanArtifact(row)
}

func (s *store) GetArtifactByShareID(ctx context.Context, shareID string) (*domain.Artifact, error) {
	row := s.q.QueryRowContext(ctx, `SELECT `+artifactColumns+` FROM artifacts WHERE share_id = ?`, shareID)
	return scanArtifact(row)
}

func (s *store) ListArtifacts(ctx context.Context, filter repository.ArtifactFilter) ([]*domain.Artifact, error) {
	query := `SELECT ` + artifactColumns + ` FROM artifacts WHERE 1=1`
	var args []interface{}

	if filter.ToolType != nil {
		query += ` AND tool_type = ?`
		args = append(args, string(*filter.ToolType))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := []*domain.Artifact{}
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *store) UpdateArtifact(ctx context.Context, a *domain.Artifact, expectedRevision int) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	res, err := s.q.ExecContext(ctx,
		`UPDATE artifacts SET title = ?, payload = ?, revision = revision + 1, updated_at = ?
		 WHERE id = ? AND revision = ?`,
		a.Title, string(payload), a.UpdatedAt.Format(timeFormat), a.ID.String(), expectedRevision)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		if _, err := s.revision(ctx, a.ID); err != nil {
			return err
		}
		return domain.ErrConflict
	}
	a.Revision = expectedRevision + 1
	return nil
}

func (s *store) revision(ctx context.Context, id uuid.UUID) (int, error) {
	var rev int
	err := s.q.QueryRowContext(ctx, `SELECT revision FROM artifacts WHERE id = ?`, id.String()).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return rev, err
}

func (s *store) SetShareID(ctx context.Context, id uuid.UUID, shareID string) (string, error) {
	_, err := s.q.ExecContext(ctx,
		`UPDATE artifacts SET share_id = ? WHERE id = ? AND share_id IS NULL`,
		shareID, id.String())
	if err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("share id collision: %w", domain.ErrConflict)
		}
		return "", err
	}

	var stored sql.NullString
	err = s.q.QueryRowContext(ctx, `SELECT share_id FROM artifacts WHERE id = ?`, id.String()).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return stored.String, nil
}

func (s *store) DeleteArtifact(ctx context.Context, id uuid.UUID) error {
	idStr := id.String()
	// Delete in order respecting foreign key constraints
	if _, err := s.q.ExecContext(ctx, `DELETE FROM versions WHERE artifact_id = ?`, idStr); err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `DELETE FROM artifacts WHERE id = ?`, idStr)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *store) CountArtifacts(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM artifacts`).Scan(&n)
	return n, err
}

func scanArtifact(row rowScanner) (*domain.Artifact, error) {
	var a domain.Artifact
	var idStr, toolStr, payload, createdStr, updatedStr string
	var shareID sql.NullString
	if err := row.Scan(&idStr, &toolStr, &a.RawInput, &a.Title, &payload, &shareID,
		&a.Revision, &a.Model, &createdStr, &updatedStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var err error
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	a.ToolType = domain.ToolType(toolStr)
	if a.Payload, err = domain.DecodePayload(a.ToolType, json.RawMessage(payload)); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", idStr, err)
	}
	if shareID.Valid {
		a.ShareID = &shareID.String
	}
	if a.CreatedAt, err = time.Parse(timeFormat, createdStr); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = time.Parse(timeFormat, updatedStr); err != nil {
		return nil, err
	}
	return &a, nil
}

// Versions

const versionColumns = `v.id, v.artifact_id, v.number, a.tool_type, v.title, v.payload, v.change_summary, v.created_at`

func (s *store) CreateVersion(ctx context.Context, v *domain.Version) error {
	payload, err := json.Marshal(v.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	var next int
	err = s.q.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(number), 0) + 1 FROM versions WHERE artifact_id = ?`,
		v.ArtifactID.String()).Scan(&next)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx,
		`INSERT INTO versions (id, artifact_id, number, title, payload, change_summary, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		v.ID.String(), v.ArtifactID.String(), next, v.Title, string(payload), v.ChangeSummary,
		v.CreatedAt.Format(timeFormat))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("version number %d taken: %w", next, domain.ErrConflict)
		}
		return err
	}
	v.Number = next
	return nil
}

func (s *store) GetVersion(ctx context.Context, id uuid.UUID) (*domain.Version, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM versions v JOIN artifacts a ON a.id = v.artifact_id WHERE v.id = ?`,
		id.String())
	return scanVersion(row)
}

func (s *store) ListVersions(ctx context.Context, artifactID uuid.UUID) ([]*domain.Version, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT `+versionColumns+` FROM versions v JOIN artifacts a ON a.id = v.artifact_id
		 WHERE v.artifact_id = ? ORDER BY v.number DESC`,
		artifactID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := []*domain.Version{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func scanVersion(row rowScanner) (*domain.Version, error) {
	var v domain.Version
	var idStr, artifactStr, toolStr, payload, createdStr string
	if err := row.Scan(&idStr, &artifactStr, &v.Number, &toolStr, &v.Title, &payload,
		&v.ChangeSummary, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var err error
	if v.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if v.ArtifactID, err = uuid.Parse(artifactStr); err != nil {
		return nil, err
	}
	v.ToolType = domain.ToolType(toolStr)
	if v.Payload, err = domain.DecodePayload(v.ToolType, json.RawMessage(payload)); err != nil {
		return nil, fmt.Errorf("decode payload of version %s: %w", idStr, err)
	}
	if v.CreatedAt, err = time.Parse(timeFormat, createdStr); err != nil {
		return nil, err
	}
	return &v, nil
}

// Templates

func (s *store) CreateTemplate(ctx context.Context, t *domain.Template) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO templates (id, name, description, idea, category, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID.String(), t.Name, t.Description, t.Idea, t.Category, t.CreatedAt.Format(timeFormat))
	return err
}

func (s *store) GetTemplate(ctx context.Context, id uuid.UUID) (*domain.Template, error) {
	row := s.q.QueryRowContext(ctx,
		`SELECT id, name, description, idea, category, created_at FROM templates WHERE id = ?`, id.String())
	return scanTemplate(row)
}

func (s *store) ListTemplates(ctx context.Context) ([]*domain.Template, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, name, description, idea, category, created_at FROM templates ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []*domain.Template{}
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM templates WHERE id = ?`, id.String())
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var t domain.Template
	var idStr, createdStr string
	var description sql.NullString
	if err := row.Scan(&idStr, &t.Name, &description, &t.Idea, &t.Category, &createdStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var err error
	if t.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if description.Valid {
		t.Description = &description.String
	}
	if t.CreatedAt, err = time.Parse(timeFormat, createdStr); err != nil {
		return nil, err
	}
	return &t, nil
}

// Analytics

func (s *store) LogEvent(ctx context.Context, e *domain.AnalyticsEvent) error {
	var artifactID *string
	if e.ArtifactID != nil {
		id := e.ArtifactID.String()
		artifactID = &id
	}
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO analytics_events (id, event_type, tool_type, artifact_id, input_length,
			generation_time_ms, session_id, export_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), string(e.EventType), string(e.ToolType), artifactID, e.InputLength,
		e.GenerationTimeMs, e.SessionID, string(e.ExportType), e.CreatedAt.Format(timeFormat))
	return err
}

func (s *store) Summary(ctx context.Context) (*domain.AnalyticsSummary, error) {
	sum := &domain.AnalyticsSummary{ByTool: map[domain.ToolType]int{}}

	var err error
	if sum.TotalArtifacts, err = s.CountArtifacts(ctx); err != nil {
		return nil, err
	}

	var avg float64
	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(AVG(generation_time_ms), 0) FROM analytics_events WHERE event_type = ?`,
		string(domain.EventGenerated)).Scan(&sum.TotalGenerations, &avg)
	if err != nil {
		return nil, err
	}
	sum.AvgGenerationTimeMs = int64(math.Round(avg))

	err = s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM analytics_events WHERE event_type = ?`,
		string(domain.EventExported)).Scan(&sum.TotalExports)
	if err != nil {
		return nil, err
	}

	rows, err := s.q.QueryContext(ctx,
		`SELECT tool_type, COUNT(*) FROM analytics_events
		 WHERE event_type = ? AND tool_type != '' GROUP BY tool_type`,
		string(domain.EventGenerated))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var tool string
		var n int
		if err := rows.Scan(&tool, &n); err != nil {
			return nil, err
		}
		sum.ByTool[domain.ToolType(tool)] = n
	}
	return sum, rows.Err()
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Ensure implementations satisfy the interface
var _ repository.Repository = (*SQLiteRepository)(nil)
var _ repository.Repository = (*txRepository)(nil)
