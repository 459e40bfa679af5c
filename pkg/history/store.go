// Package history deals with the run-record database: one row per run and
// one per lane, appended after every `cilane run`.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store is an append-only SQLite database of past runs.
type Store struct {
	db *sql.DB
}

// Open creates or opens the history database at the given path.  WAL mode
// keeps `cilane history list` readable while a run is being recorded.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o777); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open history database: %w", err)
	}

	// SQLite allows one writer at a time; a second connection would just
	// manufacture SQLITE_BUSY errors.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RunRecord is one row of `runs`.
type RunRecord struct {
	ID         string
	StartedAt  time.Time
	Branch     string
	Descriptor string
	Digest     string
	Failed     bool

	Lanes []LaneRecord
}

// LaneRecord is one row of `lanes`.
type LaneRecord struct {
	Name         string
	OS           string
	AllowFailure bool
	Failed       bool
	Error        string
	Duration     time.Duration
}

// Record appends a run and its lanes in one transaction.
func (s *Store) Record(ctx context.Context, rec RunRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, branch, descriptor, digest, failed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.StartedAt.UTC().Format(time.RFC3339), rec.Branch,
		rec.Descriptor, rec.Digest, boolToInt(rec.Failed),
	); err != nil {
		return err
	}
	for _, lane := range rec.Lanes {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO lanes (run_id, name, os, allow_failure, failed, error, duration_ms)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rec.ID, lane.Name, lane.OS, boolToInt(lane.AllowFailure),
			boolToInt(lane.Failed), lane.Error, lane.Duration.Milliseconds(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// List returns the most recent runs, newest first, without lane detail.
func (s *Store) List(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, branch, descriptor, digest, failed
		 FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ret []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedAt string
		var failed int
		if err := rows.Scan(&rec.ID, &startedAt, &rec.Branch,
			&rec.Descriptor, &rec.Digest, &failed); err != nil {
			return nil, err
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
		rec.Failed = failed != 0
		ret = append(ret, rec)
	}
	return ret, rows.Err()
}

// Get returns one run with its lanes.
func (s *Store) Get(ctx context.Context, runID string) (*RunRecord, error) {
	var rec RunRecord
	var startedAt string
	var failed int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, started_at, branch, descriptor, digest, failed
		 FROM runs WHERE id = ?`, runID).
		Scan(&rec.ID, &startedAt, &rec.Branch, &rec.Descriptor, &rec.Digest, &failed)
	if err != nil {
		return nil, err
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339, startedAt)
	rec.Failed = failed != 0

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, os, allow_failure, failed, error, duration_ms
		 FROM lanes WHERE run_id = ? ORDER BY name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var lane LaneRecord
		var allowFailure, laneFailed int
		var durationMS int64
		if err := rows.Scan(&lane.Name, &lane.OS, &allowFailure,
			&laneFailed, &lane.Error, &durationMS); err != nil {
			return nil, err
		}
		lane.AllowFailure = allowFailure != 0
		lane.Failed = laneFailed != 0
		lane.Duration = time.Duration(durationMS) * time.Millisecond
		rec.Lanes = append(rec.Lanes, lane)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
