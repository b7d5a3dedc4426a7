// Package session provides persistent storage for diagram editing sessions.
//
// A session bundles a diagram document with its chat transcript. Stores keep
// at most a configurable number of sessions, evicting the least recently
// updated ones, and track which session is active so an application restart
// can resume where the user left off.
package session

import (
	"errors"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/history"
	"github.com/google/uuid"
)

// DefaultMaxSessions bounds how many sessions a store retains.
const DefaultMaxSessions = 50

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a session's chat transcript.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is a complete editing session: the diagram document plus the chat
// transcript that produced it.
type Session struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Diagram   history.Document `json:"diagram"`
	Messages  []Message        `json:"messages"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// New creates a session for the given engine, pre-filled with the engine's
// starter template and an auto-generated name.
func New(eng engine.Engine) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:   uuid.NewString(),
		Name: engine.SessionName(eng, now),
		Diagram: history.Document{
			Engine:    eng,
			Source:    engine.Template(eng),
			Timestamp: now,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Meta is session metadata for listings, without the document or transcript.
type Meta struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Engine    engine.Engine `json:"engine"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Store persists sessions. Implementations must be safe for concurrent use
// and must cap retained sessions, evicting the least recently updated when
// the cap is exceeded.
type Store interface {
	// List returns metadata for all sessions, most recently updated first.
	// Returns an empty slice (not an error) when the store is empty.
	List() ([]Meta, error)

	// Get retrieves a session by ID.
	// Returns ErrNotFound if it doesn't exist.
	Get(id string) (*Session, error)

	// Save stores a session, overwriting any previous version, and stamps
	// its UpdatedAt. Saving may evict the least recently updated sessions
	// beyond the store's cap.
	Save(s *Session) error

	// Delete removes a session. Returns nil if it doesn't exist. If the
	// deleted session was active, the active pointer is cleared.
	Delete(id string) error

	// ActiveID returns the active session's ID, or "" when none is set.
	ActiveID() (string, error)

	// SetActiveID records which session is active. An empty ID clears it.
	SetActiveID(id string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for session operations.
var (
	// ErrNotFound indicates a session doesn't exist.
	ErrNotFound = errors.New("session not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("session store closed")
)
