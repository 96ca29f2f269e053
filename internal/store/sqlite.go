package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gamefetch/internal/logging"

	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusIncomplete  = "incomplete"
	StatusFailed      = "failed"
	StatusInterrupted = "interrupted"
)

// Run represents a row in the runs table: one install or verify invocation.
type Run struct {
	ID           string     `json:"id"`
	VersionID    string     `json:"version_id"`
	Root         string     `json:"root"`
	Status       string     `json:"status"`
	Rounds       int        `json:"rounds"`
	Dispatched   int        `json:"dispatched"`
	Succeeded    int        `json:"succeeded"`
	BytesWritten int64      `json:"bytes_written"`
	FailedCount  int        `json:"failed_count"`
	Mismatches   int        `json:"mismatches"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// Failure represents a permanently failed entry recorded against a run.
type Failure struct {
	RunID    string `json:"run_id"`
	URL      string `json:"url"`
	Path     string `json:"path"`
	Attempts int    `json:"attempts"`
	Kind     string `json:"kind"`
	Message  string `json:"message,omitempty"`
}

// Result carries the final counters of a run.
type Result struct {
	// VersionID replaces the requested ID when an alias was resolved.
	VersionID    string
	Status       string
	Rounds       int
	Dispatched   int
	Succeeded    int
	BytesWritten int64
	Mismatches   int
	Error        string
	Failures     []Failure
}

// Store wraps an sql.DB and provides typed helpers.
type Store struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at the given path and ensures schema.
func Open(path string) (*Store, error) {
	// Pragmas: busy timeout and WAL for better concurrency.
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_journal_mode=WAL&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// Conservative limits.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    version_id TEXT NOT NULL,
    root TEXT,
    status TEXT,
    rounds INTEGER DEFAULT 0,
    dispatched INTEGER DEFAULT 0,
    succeeded INTEGER DEFAULT 0,
    bytes_written INTEGER DEFAULT 0,
    failed_count INTEGER DEFAULT 0,
    error_message TEXT,
    started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    finished_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_runs_version ON runs(version_id);

CREATE TABLE IF NOT EXISTS failures (
    id INTEGER PRIMARY KEY,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    url TEXT NOT NULL,
    path TEXT NOT NULL,
    attempts INTEGER,
    kind TEXT,
    message TEXT
);
CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
`
	if _, err := db.Exec(ddl); err != nil {
		return err
	}

	// Added after the first schema revision.
	return ensureColumn(db, "runs", "mismatches", "INTEGER DEFAULT 0")
}

func ensureColumn(db *sql.DB, table, column, colType string) error {
	hasCol, err := hasColumn(db, table, column)
	if err != nil {
		return err
	}
	if hasCol {
		return nil
	}

	_, err = db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, colType))
	return err
}

func hasColumn(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if strings.EqualFold(name, column) {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Close closes the underlying DB.
func (s *Store) Close() error { return s.db.Close() }

// CreateRun inserts a running row and returns its generated ID.
func (s *Store) CreateRun(ctx context.Context, versionID, root string) (string, error) {
	if strings.TrimSpace(versionID) == "" {
		return "", ErrEmptyVersion
	}
	id := uuid.NewString()
	if err := s.InsertRun(ctx, id, versionID, root); err != nil {
		return "", err
	}
	return id, nil
}

// InsertRun inserts a running row under a caller-chosen ID.
func (s *Store) InsertRun(ctx context.Context, id, versionID, root string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyRunID
	}
	if strings.TrimSpace(versionID) == "" {
		return ErrEmptyVersion
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO runs (id, version_id, root, status)
VALUES (?, ?, ?, ?)`, id, versionID, root, StatusRunning)
	if err != nil {
		return err
	}
	logging.LogDBCreate(id, versionID, root)
	return nil
}

// FinishRun stores the final counters of a run together with its permanent
// failures in one transaction.
func (s *Store) FinishRun(ctx context.Context, id string, res Result) (err error) {
	if id == "" {
		return ErrEmptyRunID
	}
	defer func() { logging.LogDBOperation("finish_run", id, err) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var errMsg any
	if msg := strings.TrimSpace(res.Error); msg != "" {
		errMsg = msg
	}
	r, err := tx.ExecContext(ctx, `
UPDATE runs
SET version_id = COALESCE(NULLIF(?, ''), version_id), status = ?, rounds = ?, dispatched = ?, succeeded = ?, bytes_written = ?,
    failed_count = ?, mismatches = ?, error_message = ?, finished_at = CURRENT_TIMESTAMP
WHERE id = ?`,
		res.VersionID, normalizeStatus(res.Status), res.Rounds, res.Dispatched, res.Succeeded, res.BytesWritten,
		len(res.Failures), res.Mismatches, errMsg, id)
	if err != nil {
		return err
	}
	affected, err := r.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	if len(res.Failures) > 0 {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO failures (run_id, url, path, attempts, kind, message) VALUES (?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, f := range res.Failures {
			if _, err := stmt.ExecContext(ctx, id, f.URL, f.Path, f.Attempts, f.Kind, f.Message); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// ListFilter narrows and orders ListRuns.
type ListFilter struct {
	Status    string // optional: running|completed|incomplete|failed|interrupted
	VersionID string // optional
	Order     string // asc|desc by start time
	Limit     int    // optional
	Offset    int    // optional
}

const runColumns = `id, version_id, root, status, rounds, dispatched, succeeded, bytes_written, failed_count, mismatches, error_message, started_at, finished_at`

// ListRuns returns runs filtered and sorted, newest first by default.
func (s *Store) ListRuns(ctx context.Context, f ListFilter) ([]Run, error) {
	order := "DESC"
	if strings.ToLower(f.Order) == "asc" {
		order = "ASC"
	}
	var (
		args  []any
		conds []string
	)
	sb := strings.Builder{}
	sb.WriteString("SELECT " + runColumns + " FROM runs")
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, normalizeStatus(f.Status))
	}
	if f.VersionID != "" {
		conds = append(conds, "version_id = ?")
		args = append(args, f.VersionID)
	}
	if len(conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY started_at ")
	sb.WriteString(order)
	sb.WriteString(", rowid ")
	sb.WriteString(order)
	if f.Limit > 0 {
		sb.WriteString(" LIMIT ?")
		args = append(args, f.Limit)
		if f.Offset > 0 {
			sb.WriteString(" OFFSET ?")
			args = append(args, f.Offset)
		}
	} else if f.Offset > 0 {
		sb.WriteString(" LIMIT -1 OFFSET ?")
		args = append(args, f.Offset)
	}
	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Run, 0, 32)
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns a single run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (Run, bool, error) {
	if id == "" {
		return Run{}, false, ErrEmptyRunID
	}
	r, err := scanRun(s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, false, nil
	}
	if err != nil {
		return Run{}, false, err
	}
	return r, true, nil
}

// ListFailures returns the permanent failures of a run in insertion order.
func (s *Store) ListFailures(ctx context.Context, runID string) ([]Failure, error) {
	if runID == "" {
		return nil, ErrEmptyRunID
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, url, path, attempts, kind, message
FROM failures
WHERE run_id = ?
ORDER BY id ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Failure
	for rows.Next() {
		var f Failure
		var kind, message sql.NullString
		if err := rows.Scan(&f.RunID, &f.URL, &f.Path, &f.Attempts, &kind, &message); err != nil {
			return nil, err
		}
		f.Kind = kind.String
		f.Message = message.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its failures.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyRunID
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	logging.LogDBOperation("delete_run", id, err)
	return err
}

// MarkAbandoned flips runs still marked running to interrupted. A process
// that dies mid-install leaves such rows behind.
func (s *Store) MarkAbandoned(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, finished_at = CURRENT_TIMESTAMP WHERE status = ?`, StatusInterrupted, StatusRunning)
	if err != nil {
		return 0, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if affected > 0 {
		logging.LogDBOperation("mark_abandoned", fmt.Sprintf("%d rows", affected), nil)
	}
	return affected, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r        Run
		root     sql.NullString
		status   sql.NullString
		errMsg   sql.NullString
		finished sql.NullTime
	)
	if err := sc.Scan(&r.ID, &r.VersionID, &root, &status, &r.Rounds, &r.Dispatched, &r.Succeeded,
		&r.BytesWritten, &r.FailedCount, &r.Mismatches, &errMsg, &r.StartedAt, &finished); err != nil {
		return Run{}, err
	}
	r.Root = root.String
	r.Status = status.String
	r.ErrorMessage = errMsg.String
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func normalizeStatus(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case StatusRunning, StatusCompleted, StatusIncomplete, StatusInterrupted:
		return s
	case "failed", "error":
		return StatusFailed
	case "canceled", "cancelled":
		return StatusInterrupted
	default:
		return StatusRunning
	}
}
