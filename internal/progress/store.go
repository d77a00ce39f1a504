// Package progress persists finished quiz rounds and pronunciation attempts
// to a local sqlite file. Recording progress is fire-and-forget for the
// handlers: failures are logged by the caller and never shown to the user.
package progress

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the sqlite database.
type Store struct {
	db *sql.DB
}

// Stats summarizes one session's history for the landing page.
type Stats struct {
	QuizRounds    int
	BestQuizScore int
	Attempts      int
	AverageScore  float64
}

const schema = `
CREATE TABLE IF NOT EXISTS quiz_rounds (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	category   TEXT NOT NULL,
	score      INTEGER NOT NULL,
	total      INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS attempts (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	word       TEXT NOT NULL,
	score      REAL NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quiz_rounds_session ON quiz_rounds(session_id);
CREATE INDEX IF NOT EXISTS idx_attempts_session ON attempts(session_id);
`

// Open creates or opens the store at path, applying the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating progress dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening progress db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying progress schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordQuizRound stores one finished quiz round.
func (s *Store) RecordQuizRound(sessionID, category string, score, total int) error {
	_, err := s.db.Exec(
		`INSERT INTO quiz_rounds (session_id, category, score, total, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, category, score, total, time.Now().UTC())
	return err
}

// RecordAttempt stores one scored pronunciation attempt.
func (s *Store) RecordAttempt(sessionID, word string, score float64) error {
	_, err := s.db.Exec(
		`INSERT INTO attempts (session_id, word, score, created_at) VALUES (?, ?, ?, ?)`,
		sessionID, word, score, time.Now().UTC())
	return err
}

// SessionStats aggregates a session's quiz and pronunciation history.
func (s *Store) SessionStats(sessionID string) (Stats, error) {
	var stats Stats

	row := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(MAX(score), 0) FROM quiz_rounds WHERE session_id = ?`,
		sessionID)
	if err := row.Scan(&stats.QuizRounds, &stats.BestQuizScore); err != nil {
		return Stats{}, err
	}

	row = s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(AVG(score), 0) FROM attempts WHERE session_id = ?`,
		sessionID)
	if err := row.Scan(&stats.Attempts, &stats.AverageScore); err != nil {
		return Stats{}, err
	}
	return stats, nil
}
