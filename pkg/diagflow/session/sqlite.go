package session

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// timeLayout is RFC3339 with fixed-width nanoseconds so the TEXT columns
// order lexicographically in timestamp order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore persists sessions to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db          *sql.DB
	mu          sync.RWMutex
	maxSessions int
	closed      bool
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithMaxSessions overrides the retention cap.
func WithMaxSessions(n int) SQLiteOption {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// NewSQLiteStore creates a new SQLite session store.
// The path should be a file path (e.g., "./sessions.db") or ":memory:" for testing.
func NewSQLiteStore(path string, opts ...SQLiteOption) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent read performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			engine TEXT NOT NULL,
			data BLOB NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}

	if _, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_sessions_updated_at
		ON sessions(updated_at)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index: %w", err)
	}

	// Single-row table for the active session pointer.
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS active_session (
			k INTEGER PRIMARY KEY CHECK (k = 0),
			session_id TEXT NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create active_session table: %w", err)
	}

	s := &SQLiteStore{db: db, maxSessions: DefaultMaxSessions}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]Meta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, name, engine, created_at, updated_at
		FROM sessions
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	metas := make([]Meta, 0)
	for rows.Next() {
		var m Meta
		var eng, createdAt, updatedAt string
		if err := rows.Scan(&m.ID, &m.Name, &eng, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan session meta: %w", err)
		}
		m.Engine = engine.Engine(eng)
		m.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		m.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
		metas = append(metas, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return metas, nil
}

// Get implements Store.
func (s *SQLiteStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var data []byte
	err := s.db.QueryRow(`SELECT data FROM sessions WHERE id = ?`, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	if sess.ID == "" {
		return fmt.Errorf("save session: empty ID")
	}

	sess.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, name, engine, data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			engine = excluded.engine,
			data = excluded.data,
			updated_at = excluded.updated_at
	`, sess.ID, sess.Name, sess.Diagram.Engine.String(), data,
		sess.CreatedAt.UTC().Format(timeLayout),
		sess.UpdatedAt.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	// Evict the least recently updated sessions beyond the cap. The row
	// just written carries the newest updated_at so it always survives.
	_, err = s.db.Exec(`
		DELETE FROM sessions WHERE id IN (
			SELECT id FROM sessions
			ORDER BY updated_at DESC, id
			LIMIT -1 OFFSET ?
		)
	`, s.maxSessions)
	if err != nil {
		return fmt.Errorf("evict sessions: %w", err)
	}

	// Clear a dangling active pointer left by eviction.
	_, err = s.db.Exec(`
		DELETE FROM active_session
		WHERE session_id NOT IN (SELECT id FROM sessions)
	`)
	if err != nil {
		return fmt.Errorf("clear stale active session: %w", err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM active_session WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}
	return nil
}

// ActiveID implements Store.
func (s *SQLiteStore) ActiveID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var id string
	err := s.db.QueryRow(`SELECT session_id FROM active_session WHERE k = 0`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load active session: %w", err)
	}
	return id, nil
}

// SetActiveID implements Store.
func (s *SQLiteStore) SetActiveID(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if id == "" {
		if _, err := s.db.Exec(`DELETE FROM active_session`); err != nil {
			return fmt.Errorf("clear active session: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO active_session (k, session_id) VALUES (0, ?)
		ON CONFLICT(k) DO UPDATE SET session_id = excluded.session_id
	`, id)
	if err != nil {
		return fmt.Errorf("set active session: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
