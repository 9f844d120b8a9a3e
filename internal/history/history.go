// Package history keeps a record of past check runs in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/prettymuchbryce/kpicheck/internal/scan"
	"github.com/prettymuchbryce/kpicheck/internal/summary"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// Run is one recorded check.
type Run struct {
	ID           int64     `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	Root         string    `json:"root"`
	Total        int       `json:"total"`
	Compliant    int       `json:"compliant"`
	NonCompliant int       `json:"noncompliant"`
	Unreadable   int       `json:"unreadable"`
	AverageScore *float64  `json:"average_score,omitempty"`
	Fixed        int       `json:"fixed"`
}

// File is the recorded status of one document in a run.
type File struct {
	Path   string      `json:"path"`
	Status scan.Status `json:"status"`
	Score  *int        `json:"score,omitempty"`
}

// Store is a run history database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("history: create data dir: %w", err)
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("history: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at    TEXT    NOT NULL,
			root          TEXT    NOT NULL,
			total         INTEGER NOT NULL,
			compliant     INTEGER NOT NULL,
			noncompliant  INTEGER NOT NULL,
			unreadable    INTEGER NOT NULL,
			average_score REAL,
			fixed         INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS run_files (
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			path   TEXT    NOT NULL,
			status TEXT    NOT NULL,
			score  INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_run_files_run ON run_files(run_id);
	`)
	return err
}

// RecordRun stores a run with its per-file results and returns the run ID.
func (s *Store) RecordRun(ctx context.Context, startedAt time.Time, root string, results []scan.CheckResult, fixed int) (int64, error) {
	sum := summary.Summarize(results)
	var avg *float64
	if sum.ScoredFiles > 0 {
		avg = &sum.AverageScore
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, root, total, compliant, noncompliant, unreadable, average_score, fixed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		startedAt.UTC().Format(time.RFC3339), root, sum.TotalFiles, sum.Compliant, sum.NonCompliant, sum.Unreadable, avg, fixed,
	)
	if err != nil {
		return 0, fmt.Errorf("history: insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO run_files (run_id, path, status, score) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("history: prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		if _, err := stmt.ExecContext(ctx, id, r.FilePath, string(r.Status), r.Score); err != nil {
			return 0, fmt.Errorf("history: insert %s: %w", r.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("history: commit: %w", err)
	}
	return id, nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, root, total, compliant, noncompliant, unreadable, average_score, fixed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r       Run
			started string
			avg     sql.NullFloat64
		)
		if err := rows.Scan(&r.ID, &started, &r.Root, &r.Total, &r.Compliant, &r.NonCompliant, &r.Unreadable, &avg, &r.Fixed); err != nil {
			return nil, fmt.Errorf("history: scan run: %w", err)
		}
		if r.StartedAt, err = time.Parse(time.RFC3339, started); err != nil {
			return nil, fmt.Errorf("history: run %d: %w", r.ID, err)
		}
		if avg.Valid {
			v := avg.Float64
			r.AverageScore = &v
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Files returns the per-file results of a run in recorded order.
func (s *Store) Files(ctx context.Context, runID int64) ([]File, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, status, score FROM run_files WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("history: query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var (
			f      File
			status string
			score  sql.NullInt64
		)
		if err := rows.Scan(&f.Path, &status, &score); err != nil {
			return nil, fmt.Errorf("history: scan file: %w", err)
		}
		f.Status = scan.Status(status)
		if score.Valid {
			v := int(score.Int64)
			f.Score = &v
		}
		files = append(files, f)
	}
	return files, rows.Err()
}
