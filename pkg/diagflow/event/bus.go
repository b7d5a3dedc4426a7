// Package event provides in-process pub/sub notifications from the
// workspace to presentation layers.
//
// The bus decouples the editing core from whatever renders it (a TUI, an
// HTTP push layer, tests): the workspace publishes lifecycle events and
// subscribers consume them from buffered channels. Delivery is
// non-blocking; a subscriber that stops draining its channel loses events
// rather than stalling the editor.
package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event types published by the workspace.
const (
	TypeRenderCompleted = "render.completed"
	TypeRenderFailed    = "render.failed"
	TypeSessionSwitched = "session.switched"
	TypeSessionSaved    = "session.saved"
	TypeSessionDeleted  = "session.deleted"
)

// Event is one workspace notification.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

// New creates an event of the given type.
func New(eventType, sessionID string, data any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// DefaultBufferSize is the per-subscription channel buffer.
const DefaultBufferSize = 64

// Subscription is a live event feed. Events arrive on C until Unsubscribe
// is called or the bus is closed, after which C is closed.
type Subscription struct {
	C <-chan Event

	id    int64
	types map[string]bool
	ch    chan Event
	bus   *Bus

	// closed is guarded by the bus mutex.
	closed bool
}

// Unsubscribe removes the subscription and closes its channel.
// Safe to call more than once.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.closeLocked()
	delete(s.bus.subs, s.id)
}

// closeLocked closes the channel once. Caller holds the bus mutex.
func (s *Subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// matches reports whether the subscription wants the given event type.
func (s *Subscription) matches(eventType string) bool {
	return len(s.types) == 0 || s.types[eventType]
}

// Bus is an in-memory pub/sub bus. Safe for concurrent use.
//
// Sends, closes and subscription bookkeeping all happen under one mutex;
// sends are non-blocking so holding it is cheap.
type Bus struct {
	mu     sync.Mutex
	subs   map[int64]*Subscription
	nextID int64
	closed bool

	// OnDrop, if set, is called when a subscriber's buffer is full and an
	// event is discarded. Called with the bus mutex held; must not call
	// back into the bus.
	OnDrop func(evt Event, subscriberID int64)
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int64]*Subscription)}
}

// Subscribe creates a subscription for the given event types. With no
// types, the subscription receives every event. Subscribing on a closed
// bus yields an inert subscription whose channel is already closed.
func (b *Bus) Subscribe(types ...string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, DefaultBufferSize)
	sub := &Subscription{
		C:   ch,
		ch:  ch,
		bus: b,
	}
	if len(types) > 0 {
		sub.types = make(map[string]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	if b.closed {
		sub.closeLocked()
		return sub
	}

	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	return sub
}

// Publish delivers an event to all matching subscribers without blocking.
// Events to full subscriber buffers are dropped.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	for _, sub := range b.subs {
		if !sub.matches(evt.Type) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			if b.OnDrop != nil {
				b.OnDrop(evt, sub.id)
			}
		}
	}
}

// Close shuts down the bus and closes all subscription channels.
// Publish after Close is a no-op.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subs {
		sub.closeLocked()
	}
	b.subs = make(map[int64]*Subscription)
}
