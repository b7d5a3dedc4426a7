package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory session store for testing.
// Data is lost when the process exits.
type MemoryStore struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	activeID    string
	maxSessions int
	closed      bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithMemoryMaxSessions overrides the retention cap.
func WithMemoryMaxSessions(n int) MemoryOption {
	return func(m *MemoryStore) {
		if n > 0 {
			m.maxSessions = n
		}
	}
}

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		sessions:    make(map[string]*Session),
		maxSessions: DefaultMaxSessions,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List implements Store.
func (m *MemoryStore) List() ([]Meta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	metas := make([]Meta, 0, len(m.sessions))
	for _, s := range m.sessions {
		metas = append(metas, Meta{
			ID:        s.ID,
			Name:      s.Name,
			Engine:    s.Diagram.Engine,
			CreatedAt: s.CreatedAt,
			UpdatedAt: s.UpdatedAt,
		})
	}
	sort.Slice(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt)
	})
	return metas, nil
}

// Get implements Store.
func (m *MemoryStore) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSession(s)
}

// Save implements Store.
func (m *MemoryStore) Save(s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	if s.ID == "" {
		return fmt.Errorf("save session: empty ID")
	}

	s.UpdatedAt = time.Now().UTC()
	stored, err := cloneSession(s)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	m.sessions[s.ID] = stored

	m.evictLocked()
	return nil
}

// evictLocked drops the least recently updated sessions beyond the cap.
func (m *MemoryStore) evictLocked() {
	if len(m.sessions) <= m.maxSessions {
		return
	}
	all := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		all = append(all, s)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].UpdatedAt.After(all[j].UpdatedAt)
	})
	for _, s := range all[m.maxSessions:] {
		delete(m.sessions, s.ID)
		if m.activeID == s.ID {
			m.activeID = ""
		}
	}
}

// Delete implements Store.
func (m *MemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.sessions, id)
	if m.activeID == id {
		m.activeID = ""
	}
	return nil
}

// ActiveID implements Store.
func (m *MemoryStore) ActiveID() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return "", ErrStoreClosed
	}
	return m.activeID, nil
}

// SetActiveID implements Store.
func (m *MemoryStore) SetActiveID(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.activeID = id
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.sessions = nil
	return nil
}

// Len returns the number of stored sessions. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// cloneSession deep-copies a session through JSON so the store never shares
// mutable state (message slices, history documents) with callers.
func cloneSession(s *Session) (*Session, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	var out Session
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
