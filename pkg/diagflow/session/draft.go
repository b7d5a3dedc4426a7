package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Draft is a crash-recovery snapshot of unsaved work. It references the
// session it belongs to so recovery can tell whether the draft is newer
// than the stored session.
type Draft struct {
	SessionID string    `json:"session_id"`
	Session   Session   `json:"session"`
	SavedAt   time.Time `json:"saved_at"`
}

// DraftStore persists a single draft snapshot to a file. Writes are atomic
// (temp file plus rename) so a crash mid-write never corrupts an existing
// draft. DraftStore is safe for concurrent use.
type DraftStore struct {
	mu   sync.Mutex
	path string
}

// NewDraftStore creates a draft store at the given file path. Parent
// directories are created on first save.
func NewDraftStore(path string) *DraftStore {
	return &DraftStore{path: path}
}

// Save snapshots the session as the current draft, replacing any previous
// draft.
func (d *DraftStore) Save(s *Session) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	draft := Draft{
		SessionID: s.ID,
		Session:   *s,
		SavedAt:   time.Now().UTC(),
	}
	data, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return fmt.Errorf("create draft directory: %w", err)
	}

	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write draft: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("commit draft: %w", err)
	}
	return nil
}

// Load returns the current draft. Returns ErrNotFound when no draft exists.
func (d *DraftStore) Load() (*Draft, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	data, err := os.ReadFile(d.path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read draft: %w", err)
	}

	var draft Draft
	if err := json.Unmarshal(data, &draft); err != nil {
		return nil, fmt.Errorf("decode draft: %w", err)
	}
	return &draft, nil
}

// Clear removes the current draft. Returns nil if no draft exists.
func (d *DraftStore) Clear() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove draft: %w", err)
	}
	return nil
}
