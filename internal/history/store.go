// Package history persists an audit trail of processed commands in a
// local SQLite database. Plans themselves are not stored, only the
// request, its classification, and the outcome.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Entry is one processed command.
type Entry struct {
	ID        int64         `json:"id"`
	RequestID string        `json:"requestId"`
	Command   string        `json:"command"`
	Type      string        `json:"type"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Store writes and reads command history.
type Store struct {
	db *sql.DB
}

// Open creates the store at dbPath, creating parent directories and
// the schema as needed.
func Open(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history database: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		request_id TEXT NOT NULL,
		command TEXT NOT NULL,
		type TEXT NOT NULL,
		success INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_commands_created_at ON commands(created_at);
	CREATE INDEX IF NOT EXISTS idx_commands_type ON commands(type);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record appends one entry. CreatedAt is stamped here.
func (s *Store) Record(entry *Entry) error {
	entry.CreatedAt = time.Now().UTC()

	res, err := s.db.Exec(
		"INSERT INTO commands (request_id, command, type, success, duration_ms, created_at) VALUES (?, ?, ?, ?, ?, ?)",
		entry.RequestID, entry.Command, entry.Type, entry.Success,
		entry.Duration.Milliseconds(), entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}

	entry.ID, _ = res.LastInsertId()
	return nil
}

// List returns the most recent entries, newest first.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		"SELECT id, request_id, command, type, success, duration_ms, created_at FROM commands ORDER BY id DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var durationMS int64
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Command, &e.Type, &e.Success, &durationMS, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		e.Duration = time.Duration(durationMS) * time.Millisecond
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByType aggregates history by classification type.
func (s *Store) CountByType() (map[string]int, error) {
	rows, err := s.db.Query("SELECT type, COUNT(*) FROM commands GROUP BY type")
	if err != nil {
		return nil, fmt.Errorf("aggregate history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, fmt.Errorf("scan aggregate: %w", err)
		}
		counts[t] = n
	}

	return counts, rows.Err()
}
