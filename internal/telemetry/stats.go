package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Generation is the outcome of one generation call. It carries sizes, not
// conversation text.
type Generation struct {
	SessionID   string
	Backend     string
	Model       string
	StartedAt   time.Time
	Duration    time.Duration
	Outcome     string // "ok" or "error"
	ErrorKind   string
	PromptChars int
	ReplyChars  int
}

// Summary aggregates recorded generations
type Summary struct {
	Total     int
	Failed    int
	AvgMillis float64
}

// StatsStore records generation outcomes in SQLite
type StatsStore struct {
	db *sql.DB
}

// InitDB opens (and creates if needed) the stats database at path
func InitDB(path string) (*StatsStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	createGenerationsTable := `
	CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT,
		backend TEXT,
		model TEXT,
		started_at DATETIME,
		duration_ms INTEGER,
		outcome TEXT,
		error_kind TEXT,
		prompt_chars INTEGER,
		reply_chars INTEGER
	);`

	if _, err := db.Exec(createGenerationsTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create generations table: %w", err)
	}

	return &StatsStore{db: db}, nil
}

// Record stores one generation
func (s *StatsStore) Record(ctx context.Context, g Generation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generations (session_id, backend, model, started_at, duration_ms, outcome, error_kind, prompt_chars, reply_chars)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.SessionID, g.Backend, g.Model, g.StartedAt, g.Duration.Milliseconds(), g.Outcome, g.ErrorKind, g.PromptChars, g.ReplyChars,
	)
	if err != nil {
		return fmt.Errorf("failed to record generation: %w", err)
	}
	return nil
}

// Summarize aggregates generations, optionally for one session
func (s *StatsStore) Summarize(ctx context.Context, sessionID string) (Summary, error) {
	query := `SELECT COUNT(*), COALESCE(SUM(CASE WHEN outcome != 'ok' THEN 1 ELSE 0 END), 0), COALESCE(AVG(duration_ms), 0) FROM generations`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}

	var sum Summary
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&sum.Total, &sum.Failed, &sum.AvgMillis); err != nil {
		return Summary{}, fmt.Errorf("failed to summarize generations: %w", err)
	}
	return sum, nil
}

// Close closes the database
func (s *StatsStore) Close() error {
	return s.db.Close()
}
