// Package store handles SQLite persistence.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/speedtype/internal/model"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for session results.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS results (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			wpm INTEGER NOT NULL,
			accuracy INTEGER NOT NULL,
			errors INTEGER NOT NULL,
			duration_sec INTEGER NOT NULL,
			correct_chars INTEGER NOT NULL DEFAULT 0,
			total_keystrokes INTEGER NOT NULL DEFAULT 0,
			passage_length INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL DEFAULT '',
			started_at TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_results_rank ON results(wpm DESC, accuracy DESC, created_at ASC);`,
		`CREATE INDEX IF NOT EXISTS idx_results_name ON results(name);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertResult stores a finished session result and returns its id.
// A zero CreatedAt is stamped with the current time.
func (s *Store) InsertResult(ctx context.Context, r model.Result) (int64, error) {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	startedAt := r.StartedAt
	if startedAt.IsZero() {
		startedAt = createdAt
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO results (name, wpm, accuracy, errors, duration_sec, correct_chars, total_keystrokes, passage_length, reason, started_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Name,
		r.WPM,
		r.Accuracy,
		r.Errors,
		r.DurationSec,
		r.CorrectChars,
		r.TotalKeystrokes,
		r.PassageLength,
		r.Reason,
		startedAt.UTC().Format(timeLayout),
		createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// TopResults returns the best n results ordered by wpm desc, accuracy desc,
// earliest first on ties.
func (s *Store) TopResults(ctx context.Context, n int) ([]model.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, selectResults+`
		ORDER BY wpm DESC, accuracy DESC, created_at ASC, id ASC
		LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	return scanResults(rows)
}

// ListResults returns results matching filter, oldest first. Last keeps only
// the most recent N matches.
func (s *Store) ListResults(ctx context.Context, filter model.ResultFilter) ([]model.Result, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.Name != "" {
		clauses = append(clauses, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.Since != nil {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}
	query := fmt.Sprintf(`%s
		WHERE %s
		ORDER BY created_at ASC, id ASC`, selectResults, strings.Join(clauses, " AND "))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	results, err := scanResults(rows)
	if err != nil {
		return nil, err
	}
	if filter.Last > 0 && len(results) > filter.Last {
		results = results[len(results)-filter.Last:]
	}
	return results, nil
}

// CountResults returns the number of stored results.
func (s *Store) CountResults(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM results`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Fixed-width UTC timestamps keep TEXT ordering chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const selectResults = `SELECT id, name, wpm, accuracy, errors, duration_sec, correct_chars,
		total_keystrokes, passage_length, reason, started_at, created_at
		FROM results`

func scanResults(rows *sql.Rows) ([]model.Result, error) {
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []model.Result
	for rows.Next() {
		var r model.Result
		var startedAt, createdAt string
		if err := rows.Scan(&r.ID, &r.Name, &r.WPM, &r.Accuracy, &r.Errors, &r.DurationSec, &r.CorrectChars,
			&r.TotalKeystrokes, &r.PassageLength, &r.Reason, &startedAt, &createdAt); err != nil {
			return nil, err
		}
		var err error
		if r.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
