package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are rejected rather than migrated.
const schemaVersion = 1

// ErrNotFound reports that no checkpoint exists for the job.
var ErrNotFound = errors.New("checkpoint not found")

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Checkpoint is the durable progress of one annotation job.
type Checkpoint struct {
	JobID            string
	MediaID          string
	SourcePath       string
	BackendID        string
	TotalLines       int
	BatchSize        int
	SaveInterval     int
	CompletedIndices []int
	UpdatedAt        time.Time
}

// Remaining returns how many lines the job still has to annotate.
func (c *Checkpoint) Remaining() int {
	remaining := c.TotalLines - len(c.CompletedIndices)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CompletedSet returns the completed indices as a membership set.
func (c *Checkpoint) CompletedSet() map[int]bool {
	set := make(map[int]bool, len(c.CompletedIndices))
	for _, idx := range c.CompletedIndices {
		set[idx] = true
	}
	return set
}

// Store manages checkpoint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the checkpoint database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Save inserts or replaces the checkpoint for cp.JobID. The completed index
// list is stored sorted so reads are deterministic.
func (s *Store) Save(ctx context.Context, cp *Checkpoint) error {
	if cp == nil || strings.TrimSpace(cp.JobID) == "" {
		return errors.New("checkpoint: job id required")
	}
	indices := append([]int(nil), cp.CompletedIndices...)
	sort.Ints(indices)
	completedJSON, err := json.Marshal(indices)
	if err != nil {
		return fmt.Errorf("marshal completed indices: %w", err)
	}
	updatedAt := time.Now().UTC()
	err = s.execWithRetry(ctx,
		`INSERT INTO checkpoints (
            job_id, media_id, source_path, backend_id,
            total_lines, batch_size, save_interval, completed_json, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(job_id) DO UPDATE SET
            media_id = excluded.media_id,
            source_path = excluded.source_path,
            backend_id = excluded.backend_id,
            total_lines = excluded.total_lines,
            batch_size = excluded.batch_size,
            save_interval = excluded.save_interval,
            completed_json = excluded.completed_json,
            updated_at = excluded.updated_at`,
		cp.JobID,
		cp.MediaID,
		cp.SourcePath,
		cp.BackendID,
		cp.TotalLines,
		cp.BatchSize,
		cp.SaveInterval,
		string(completedJSON),
		updatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	cp.UpdatedAt = updatedAt
	return nil
}

// Load returns the checkpoint for a job id, or ErrNotFound.
func (s *Store) Load(ctx context.Context, jobID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT job_id, media_id, source_path, backend_id,
                total_lines, batch_size, save_interval, completed_json, updated_at
         FROM checkpoints WHERE job_id = ?`, jobID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return cp, nil
}

// FindByMedia returns the most recently updated checkpoint for a media id,
// or ErrNotFound. Resume by media id picks up the newest interrupted job.
func (s *Store) FindByMedia(ctx context.Context, mediaID string) (*Checkpoint, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT job_id, media_id, source_path, backend_id,
                total_lines, batch_size, save_interval, completed_json, updated_at
         FROM checkpoints WHERE media_id = ?
         ORDER BY updated_at DESC LIMIT 1`, mediaID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media %s: %w", mediaID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find checkpoint: %w", err)
	}
	return cp, nil
}

// List returns all checkpoints, most recently updated first.
func (s *Store) List(ctx context.Context) ([]*Checkpoint, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT job_id, media_id, source_path, backend_id,
                total_lines, batch_size, save_interval, completed_json, updated_at
         FROM checkpoints ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	defer rows.Close()

	var checkpoints []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		checkpoints = append(checkpoints, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkpoints: %w", err)
	}
	return checkpoints, nil
}

// Delete removes the checkpoint for a job id. Deleting a missing checkpoint
// is not an error.
func (s *Store) Delete(ctx context.Context, jobID string) error {
	if err := s.execWithRetry(ctx, "DELETE FROM checkpoints WHERE job_id = ?", jobID); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (*Checkpoint, error) {
	var (
		cp            Checkpoint
		completedJSON string
		updatedAt     string
	)
	if err := row.Scan(
		&cp.JobID, &cp.MediaID, &cp.SourcePath, &cp.BackendID,
		&cp.TotalLines, &cp.BatchSize, &cp.SaveInterval, &completedJSON, &updatedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(completedJSON), &cp.CompletedIndices); err != nil {
		return nil, fmt.Errorf("decode completed indices: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	cp.UpdatedAt = parsed
	return &cp, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	ctx = ensureContext(ctx)
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		_, lastErr = s.db.ExecContext(ctx, query, args...)
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
