// Package state persists sandbox session records so they survive
// process restarts and can be inspected or recovered. It is pure
// persistence: the session sandbox is the only writer, introspection
// commands may read concurrently, and last-writer-wins is acceptable
// because writes are serialized through the single active sandbox.
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed session state store, one row per session id.
type Store struct {
	db *sql.DB
}

// Open creates or opens the session store at the given path, creating
// parent directories as needed.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *Store) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		workspace TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_workspace ON sessions(workspace);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces the record for state.SessionID.
func (s *Store) Save(state *SessionState) error {
	if state.SessionID == "" {
		return fmt.Errorf("session id must not be empty")
	}
	if state.CreatedAt.IsZero() {
		state.CreatedAt = time.Now()
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions (session_id, workspace, data, created_at)
		VALUES (?, ?, ?, ?)`,
		state.SessionID, state.Workspace, string(data), state.CreatedAt.UnixMilli())
	return err
}

// Load returns the state for sessionID, or nil if no record exists.
func (s *Store) Load(sessionID string) (*SessionState, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM sessions WHERE session_id = ?`, sessionID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalState(data)
}

// ActiveForWorkspace returns the most recently created session for the
// workspace, or nil if none is active. The sandbox enforces the
// one-active-session invariant, so at most one row should match.
func (s *Store) ActiveForWorkspace(workspace string) (*SessionState, error) {
	var data string
	err := s.db.QueryRow(`
		SELECT data FROM sessions WHERE workspace = ?
		ORDER BY created_at DESC LIMIT 1`, workspace).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return unmarshalState(data)
}

// Delete removes the record for sessionID. Deleting an unknown id is
// not an error.
func (s *Store) Delete(sessionID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE session_id = ?`, sessionID)
	return err
}

func unmarshalState(data string) (*SessionState, error) {
	var st SessionState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	return &st, nil
}
