// Package store keeps the submission history in SQLite and writes page dumps.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/ticketfill/internal/types"
)

// Store handles all database operations
type Store struct {
	db *sql.DB
}

// New creates a new Store with SQLite backend
func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// One writer; the run is sequential anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate history db: %w", err)
	}

	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		target TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		error_message TEXT,
		log_entries TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_target ON submissions(target, started_at);
	CREATE INDEX IF NOT EXISTS idx_submissions_started_at ON submissions(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// BeginSubmission records the start of an attempt and returns its id
func (s *Store) BeginSubmission(target string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`
		INSERT INTO submissions (id, target, status, started_at)
		VALUES (?, ?, ?, ?)
	`, id, target, StatusRunning, startedAt.UTC())
	if err != nil {
		return "", fmt.Errorf("failed to record submission start: %w", err)
	}
	return id, nil
}

// CompleteSubmission stores the final outcome of an attempt
func (s *Store) CompleteSubmission(id string, r types.Result) error {
	logJSON, err := json.Marshal(LogFor(r))
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE submissions
		SET status = ?, completed_at = ?, error_message = ?, log_entries = ?
		WHERE id = ?
	`, string(r.Outcome), time.Now().UTC(), r.Error, string(logJSON), id)
	if err != nil {
		return fmt.Errorf("failed to record submission outcome: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s not found", id)
	}
	return nil
}

// RecentSubmissions returns the newest submissions first
func (s *Store) RecentSubmissions(limit int) ([]Submission, error) {
	rows, err := s.db.Query(`
		SELECT id, target, status, started_at, completed_at, error_message, log_entries
		FROM submissions
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanSubmissions(rows)
}

// LastOutcome returns the most recent completed outcome for target
func (s *Store) LastOutcome(target string) (types.SubmissionOutcome, bool, error) {
	var status string
	err := s.db.QueryRow(`
		SELECT status FROM submissions
		WHERE target = ? AND status != ?
		ORDER BY started_at DESC
		LIMIT 1
	`, target, StatusRunning).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return types.SubmissionOutcome(status), true, nil
}

func scanSubmissions(rows *sql.Rows) ([]Submission, error) {
	var subs []Submission
	for rows.Next() {
		var sub Submission
		var completed sql.NullTime
		var errMsg, logJSON sql.NullString

		err := rows.Scan(&sub.ID, &sub.Target, &sub.Status, &sub.StartedAt, &completed, &errMsg, &logJSON)
		if err != nil {
			return nil, err
		}

		if completed.Valid {
			t := completed.Time
			sub.CompletedAt = &t
		}
		sub.ErrorMessage = errMsg.String
		if logJSON.Valid && logJSON.String != "" {
			if err := json.Unmarshal([]byte(logJSON.String), &sub.Log); err != nil {
				return nil, fmt.Errorf("submission %s has a corrupt attempt log: %w", sub.ID, err)
			}
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
