// Package history provides bounded undo/redo over immutable diagram
// documents.
//
// The store is a pure reducer: operations never fail and never perform I/O,
// which keeps it trivially testable. All mutation flows through Set, Undo,
// Redo, Reset, and ClearHistory; documents are treated as values and never
// modified in place.
package history

import (
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
)

// DefaultMaxSteps is the default undo depth.
const DefaultMaxSteps = 50

// Document is one versioned state of the diagram source.
// A new value is produced on every accepted edit.
type Document struct {
	Engine    engine.Engine `json:"engine"`
	Source    string        `json:"source"`
	Timestamp time.Time     `json:"timestamp"`
}

// Update is a partial document change applied through Set.
// Nil fields leave the corresponding document field unchanged.
type Update struct {
	Engine *engine.Engine
	Source *string
}

// EngineUpdate returns an Update that changes only the engine.
func EngineUpdate(e engine.Engine) Update {
	return Update{Engine: &e}
}

// SourceUpdate returns an Update that changes only the source text.
func SourceUpdate(src string) Update {
	return Update{Source: &src}
}

// DocumentUpdate returns an Update that changes both engine and source.
func DocumentUpdate(e engine.Engine, src string) Update {
	return Update{Engine: &e, Source: &src}
}

// Store is an undo/redo state container over Document values.
// It is not safe for concurrent use; callers serialize access.
type Store struct {
	past     []Document // oldest -> newest
	present  Document
	future   []Document // nearest -> farthest
	maxSteps int
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithMaxSteps sets the undo depth cap.
// Default: DefaultMaxSteps. Values < 1 are ignored.
func WithMaxSteps(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxSteps = n
		}
	}
}

// WithClock overrides the timestamp source. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a Store with the given initial document.
func New(initial Document, opts ...Option) *Store {
	s := &Store{
		present:  initial,
		maxSteps: DefaultMaxSteps,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Present returns the current document.
func (s *Store) Present() Document { return s.present }

// CanUndo reports whether Undo would change the present document.
func (s *Store) CanUndo() bool { return len(s.past) > 0 }

// CanRedo reports whether Redo would change the present document.
func (s *Store) CanRedo() bool { return len(s.future) > 0 }

// UndoDepth returns the number of undoable steps.
func (s *Store) UndoDepth() int { return len(s.past) }

// RedoDepth returns the number of redoable steps.
func (s *Store) RedoDepth() int { return len(s.future) }

// Set merges u into the present document and stamps a new timestamp.
// If the merged engine and source both equal the present values the call is
// a no-op: no history entry is recorded and the present document (including
// its timestamp) is unchanged. Otherwise the old present is pushed onto the
// undo stack, evicting the oldest entry beyond the depth cap, and the redo
// stack is cleared.
//
// Returns true if the document changed.
func (s *Store) Set(u Update) bool {
	next := s.present
	if u.Engine != nil {
		next.Engine = *u.Engine
	}
	if u.Source != nil {
		next.Source = *u.Source
	}

	if next.Engine == s.present.Engine && next.Source == s.present.Source {
		return false
	}
	next.Timestamp = s.now()

	s.past = append(s.past, s.present)
	if len(s.past) > s.maxSteps {
		// FIFO eviction from the front.
		s.past = append(s.past[:0], s.past[len(s.past)-s.maxSteps:]...)
	}
	s.present = next
	s.future = nil
	return true
}

// Undo moves the present document back one step.
// No-op when the undo stack is empty. Returns true if the document changed.
func (s *Store) Undo() bool {
	if len(s.past) == 0 {
		return false
	}
	prev := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.future = append([]Document{s.present}, s.future...)
	s.present = prev
	return true
}

// Redo moves the present document forward one step.
// No-op when the redo stack is empty. Returns true if the document changed.
func (s *Store) Redo() bool {
	if len(s.future) == 0 {
		return false
	}
	next := s.future[0]
	s.future = s.future[1:]
	s.past = append(s.past, s.present)
	s.present = next
	return true
}

// Reset replaces the present document unconditionally and clears both
// stacks. Used when switching to an unrelated document where history
// continuity is meaningless.
func (s *Store) Reset(doc Document) {
	s.past = nil
	s.present = doc
	s.future = nil
}

// ClearHistory clears both stacks but keeps the present document.
func (s *Store) ClearHistory() {
	s.past = nil
	s.future = nil
}
