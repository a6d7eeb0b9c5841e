package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	domainerrors "dagestimator/internal/core/errors"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5

	// Fixed-width so ts_utc sorts lexically.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

type Store struct {
	path string
	db   *sql.DB
	mu   sync.Mutex
}

// Open creates or opens the history database at path. busyTimeout bounds how
// long sqlite waits on a locked database before failing a statement.
func Open(path string, busyTimeout time.Duration) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("history path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("history path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory %q: %w", dir, err)
		}
	}
	if busyTimeout <= 0 {
		busyTimeout = 2 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)",
		cleanPath, busyTimeout.Milliseconds())
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite history %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite history %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func projectKey(raw string) string {
	if key := strings.TrimSpace(raw); key != "" {
		return key
	}
	return "default"
}

// SaveRun persists run and its regions in one transaction and returns the
// run id, generating one when run.ID is empty.
func (s *Store) SaveRun(ctx context.Context, run Run) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.Timestamp.IsZero() {
		run.Timestamp = time.Now().UTC()
	}
	run.Project = projectKey(run.Project)

	err := s.withRetry("save run", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `
INSERT INTO runs (
  id, project_key, program, frontend, input, ts_utc, duration_ms, routine_count, failure_count,
  instructions, reads, writes, calls, width, depth
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Project, run.Program, run.Frontend, run.Input,
			run.Timestamp.UTC().Format(tsLayout), run.Duration.Milliseconds(),
			run.Routines, run.Failures, run.Instructions, run.Reads, run.Writes, run.Calls,
			run.Width, run.Depth,
		); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO regions (
  run_id, seq, path, kind, instructions, blocks, reads, writes, calls, width, depth, skipped, error
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for i, r := range run.Regions {
			if _, err := stmt.ExecContext(ctx,
				run.ID, i, r.Path, r.Kind, r.Instructions, r.Blocks, r.Reads, r.Writes, r.Calls,
				r.Width, r.Depth, r.Skipped, r.Error,
			); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

const runColumns = `id, project_key, program, frontend, input, ts_utc, duration_ms, routine_count,
  failure_count, instructions, reads, writes, calls, width, depth`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var (
		run        Run
		tsRaw      string
		durationMS int64
	)
	if err := row.Scan(
		&run.ID, &run.Project, &run.Program, &run.Frontend, &run.Input, &tsRaw, &durationMS,
		&run.Routines, &run.Failures, &run.Instructions, &run.Reads, &run.Writes, &run.Calls,
		&run.Width, &run.Depth,
	); err != nil {
		return Run{}, err
	}
	ts, err := time.Parse(tsLayout, tsRaw)
	if err != nil {
		return Run{}, fmt.Errorf("parse run timestamp %q: %w", tsRaw, err)
	}
	run.Timestamp = ts.UTC()
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return run, nil
}

// LoadRun returns the run with the given id, regions included.
func (s *Store) LoadRun(ctx context.Context, id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var run Run
	err := s.withRetry("load run", func() error {
		var err error
		run, err = scanRun(s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domainerrors.AddContext(domainerrors.New(domainerrors.CodeNotFound, "run not found"), "run", id)
	}
	if err != nil {
		return nil, err
	}

	var rows *sql.Rows
	err = s.withRetry("load regions", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, `
SELECT path, kind, instructions, blocks, reads, writes, calls, width, depth, skipped, error
FROM regions WHERE run_id = ? ORDER BY seq ASC`, id)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var r Region
		if err := rows.Scan(
			&r.Path, &r.Kind, &r.Instructions, &r.Blocks, &r.Reads, &r.Writes, &r.Calls,
			&r.Width, &r.Depth, &r.Skipped, &r.Error,
		); err != nil {
			return nil, fmt.Errorf("scan region row: %w", err)
		}
		run.Regions = append(run.Regions, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate region rows: %w", err)
	}
	return &run, nil
}

// ListRuns returns the newest runs of a project first, without regions.
// A non-positive limit returns every run.
func (s *Store) ListRuns(ctx context.Context, project string, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT ` + runColumns + ` FROM runs WHERE project_key = ? ORDER BY ts_utc DESC, id ASC`
	args := []any{projectKey(project)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	var rows *sql.Rows
	err := s.withRetry("list runs", func() error {
		var qErr error
		rows, qErr = s.db.QueryContext(ctx, query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run rows: %w", err)
	}
	return runs, nil
}

// Prune deletes all but the newest keep runs of a project and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, project string, keep int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if keep < 0 {
		keep = 0
	}
	var removed int64
	err := s.withRetry("prune runs", func() error {
		res, err := s.db.ExecContext(ctx, `
DELETE FROM runs WHERE project_key = ? AND id NOT IN (
  SELECT id FROM runs WHERE project_key = ? ORDER BY ts_utc DESC, id ASC LIMIT ?
)`, projectKey(project), projectKey(project), keep)
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	return int(removed), err
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}

func IsCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "malformed") || strings.Contains(msg, "not a database") || errors.Is(err, os.ErrInvalid)
}
