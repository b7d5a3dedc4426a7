package diagflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/agent"
	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/event"
	"github.com/diagflow/diagflow/pkg/diagflow/history"
	"github.com/diagflow/diagflow/pkg/diagflow/observability"
	"github.com/diagflow/diagflow/pkg/diagflow/render"
	"github.com/diagflow/diagflow/pkg/diagflow/session"
)

// DefaultDebounce is the quiet period before a source edit renders.
const DefaultDebounce = 500 * time.Millisecond

// Sentinel errors for workspace operations.
var (
	// ErrNotStarted indicates an operation before Start.
	ErrNotStarted = errors.New("workspace not started")

	// ErrAlreadyStarted indicates a second Start call.
	ErrAlreadyStarted = errors.New("workspace already started")
)

// State is the workspace lifecycle state.
type State int

const (
	// StateIdle is the state before Start.
	StateIdle State = iota

	// StateInitialRender means the restored session's first render is
	// still pending.
	StateInitialRender

	// StateReady means the workspace is fully interactive.
	StateReady
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitialRender:
		return "initial_render"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// Workspace coordinates the document, rendering and session persistence for
// one active editing session. It is safe for concurrent use.
type Workspace struct {
	store    session.Store
	drafts   *session.DraftStore
	executor *render.Executor
	bus      *event.Bus
	logger   *slog.Logger
	metrics  observability.MetricsRecorder
	spans    observability.SpanManager
	deb      *debouncer

	maxUndoSteps  int
	defaultEngine engine.Engine

	mu            sync.Mutex
	state         State
	current       *session.Session
	history       *history.Store
	dirty         bool
	lastSessionID string
	lastEngine    engine.Engine
	closed        bool
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithDraftStore enables draft snapshots for crash recovery.
func WithDraftStore(d *session.DraftStore) Option {
	return func(w *Workspace) { w.drafts = d }
}

// WithEventBus replaces the internally created event bus.
func WithEventBus(b *event.Bus) Option {
	return func(w *Workspace) {
		if b != nil {
			w.bus = b
		}
	}
}

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(w *Workspace) {
		if m != nil {
			w.metrics = m
		}
	}
}

// WithSpanManager sets the trace span manager. Default: no-op.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(w *Workspace) {
		if sm != nil {
			w.spans = sm
		}
	}
}

// WithDebounce sets the source-edit render quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Workspace) {
		if d > 0 {
			w.deb = newDebouncer(d)
		}
	}
}

// WithMaxUndoSteps caps the undo history depth.
func WithMaxUndoSteps(n int) Option {
	return func(w *Workspace) {
		if n > 0 {
			w.maxUndoSteps = n
		}
	}
}

// WithDefaultEngine sets the engine used for fresh sessions.
func WithDefaultEngine(e engine.Engine) Option {
	return func(w *Workspace) {
		if e.Valid() {
			w.defaultEngine = e
		}
	}
}

// New creates a Workspace over the given session store and renderer.
// The store is caller-owned and is not closed by the workspace.
func New(store session.Store, renderer render.Renderer, opts ...Option) *Workspace {
	w := &Workspace{
		store:         store,
		bus:           event.NewBus(),
		metrics:       observability.NoopMetrics{},
		spans:         observability.NoopSpanManager{},
		deb:           newDebouncer(DefaultDebounce),
		maxUndoSteps:  history.DefaultMaxSteps,
		defaultEngine: engine.Default,
		state:         StateIdle,
	}
	for _, opt := range opts {
		opt(w)
	}

	w.executor = render.New(renderer,
		render.WithLogger(w.logger),
		render.WithMetrics(w.metrics),
		render.WithSpanManager(w.spans),
		render.WithPublishHook(w.onRenderPublished),
	)
	return w
}

// Events returns the workspace's event bus.
func (w *Workspace) Events() *event.Bus {
	return w.bus
}

// Start restores the previous session and kicks off the initial render.
// Restoration prefers a draft snapshot newer than the stored session;
// failing that, the stored active session; failing that, a fresh session
// on the default engine. Storage read failures degrade to a fresh session
// rather than failing startup.
func (w *Workspace) Start() error {
	w.mu.Lock()
	if w.state != StateIdle {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}

	sess, dirty := w.restoreLocked()
	w.current = sess
	w.history = history.New(sess.Diagram, history.WithMaxSteps(w.maxUndoSteps))
	w.dirty = dirty
	w.lastSessionID = sess.ID
	w.lastEngine = sess.Diagram.Engine
	w.state = StateInitialRender
	w.submitLocked(sess.Diagram)
	w.mu.Unlock()
	return nil
}

// restoreLocked picks the session to resume. Returns the session and
// whether it holds unsaved work (restored from a draft).
func (w *Workspace) restoreLocked() (*session.Session, bool) {
	if w.drafts != nil {
		draft, err := w.drafts.Load()
		switch {
		case err == nil:
			stored, gerr := w.store.Get(draft.SessionID)
			if gerr != nil || draft.SavedAt.After(stored.UpdatedAt) {
				sess := draft.Session
				return &sess, true
			}
		case !errors.Is(err, session.ErrNotFound):
			observability.LogSessionRestoreError(w.logger, err)
		}
	}

	id, err := w.store.ActiveID()
	if err != nil {
		observability.LogSessionRestoreError(w.logger, err)
	} else if id != "" {
		if sess, err := w.store.Get(id); err == nil {
			return sess, false
		} else {
			observability.LogSessionRestoreError(w.logger, err)
		}
	}

	sess := session.New(w.defaultEngine)
	if err := w.store.Save(sess); err != nil {
		observability.LogSessionSaveError(w.logger, sess.ID, err)
	}
	if err := w.store.SetActiveID(sess.ID); err != nil {
		observability.LogSessionSaveError(w.logger, sess.ID, err)
	}
	return sess, false
}

// State returns the lifecycle state.
func (w *Workspace) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Document returns the current document.
func (w *Workspace) Document() history.Document {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.history == nil {
		return history.Document{}
	}
	return w.history.Present()
}

// Session returns a snapshot of the active session with the current
// document folded in.
func (w *Workspace) Session() session.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return session.Session{}
	}
	snap := *w.current
	snap.Diagram = w.history.Present()
	snap.Messages = append([]session.Message(nil), w.current.Messages...)
	return snap
}

// Dirty reports whether the session holds unsaved changes.
func (w *Workspace) Dirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

// RenderState returns the current render snapshot.
func (w *Workspace) RenderState() render.Snapshot {
	return w.executor.Snapshot()
}

// CanUndo reports whether an undo step exists.
func (w *Workspace) CanUndo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history != nil && w.history.CanUndo()
}

// CanRedo reports whether a redo step exists.
func (w *Workspace) CanRedo() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.history != nil && w.history.CanRedo()
}

// SetSource replaces the document source. The render is debounced: a burst
// of edits produces one render after the quiet period. Returns false when
// the source is unchanged.
func (w *Workspace) SetSource(source string) bool {
	return w.applyUpdate(history.SourceUpdate(source))
}

// SetEngine switches the diagram engine, rendering immediately.
func (w *Workspace) SetEngine(eng engine.Engine) error {
	if !eng.Valid() {
		return fmt.Errorf("unknown engine %q", string(eng))
	}
	w.applyUpdate(history.EngineUpdate(eng))
	return nil
}

// SetDocument applies an arbitrary document update. Engine changes render
// immediately; source-only changes are debounced.
func (w *Workspace) SetDocument(u history.Update) bool {
	return w.applyUpdate(u)
}

func (w *Workspace) applyUpdate(u history.Update) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.history == nil || w.closed {
		return false
	}
	if !w.history.Set(u) {
		return false
	}
	w.dirty = true
	w.triggerLocked(false)
	return true
}

// Undo steps the document back. Returns false when there is nothing to
// undo.
func (w *Workspace) Undo() bool {
	return w.step(func() bool { return w.history.Undo() })
}

// Redo steps the document forward. Returns false when there is nothing to
// redo.
func (w *Workspace) Redo() bool {
	return w.step(func() bool { return w.history.Redo() })
}

func (w *Workspace) step(move func() bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.history == nil || w.closed {
		return false
	}
	if !move() {
		return false
	}
	w.dirty = true
	w.triggerLocked(false)
	return true
}

// ApplyAgentUpdate validates an assistant proposal and applies it to the
// document. Accepted updates render immediately.
func (w *Workspace) ApplyAgentUpdate(p agent.Proposal) error {
	u, err := agent.Validate(p)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.history == nil || w.closed {
		return ErrNotStarted
	}
	if w.history.Set(u) {
		w.dirty = true
		w.triggerLocked(true)
	}
	return nil
}

// AppendMessage adds a chat message to the session transcript.
func (w *Workspace) AppendMessage(msg session.Message) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	w.current.Messages = append(w.current.Messages, msg)
	w.dirty = true
}

// triggerLocked schedules a render for the present document. Changes to
// the (session, engine) pair render immediately and update the pair;
// source-only changes are debounced and leave the pair alone. forceNow
// renders immediately regardless. Caller holds w.mu.
func (w *Workspace) triggerLocked(forceNow bool) {
	doc := w.history.Present()
	if forceNow || w.current.ID != w.lastSessionID || doc.Engine != w.lastEngine {
		w.lastSessionID = w.current.ID
		w.lastEngine = doc.Engine
		w.deb.cancel()
		w.submitLocked(doc)
		return
	}
	w.deb.trigger(w.renderLatest)
}

// submitLocked claims the render version for doc while w.mu is held, so an
// edit applied later can never end up with an earlier version no matter how
// the renderer goroutines are scheduled. Only the renderer I/O runs in the
// background. Caller holds w.mu.
func (w *Workspace) submitLocked(doc history.Document) {
	t := w.executor.Submit(doc.Engine, doc.Source)
	go w.executor.Run(context.Background(), t)
}

// renderLatest submits whatever the present document is at call time and
// blocks on the renderer. Fired by the debouncer after the quiet period.
func (w *Workspace) renderLatest() {
	w.mu.Lock()
	if w.history == nil || w.closed {
		w.mu.Unlock()
		return
	}
	doc := w.history.Present()
	t := w.executor.Submit(doc.Engine, doc.Source)
	w.mu.Unlock()

	w.executor.Run(context.Background(), t)
}

// onRenderPublished forwards executor outcomes to the event bus and
// completes initialization on the first published outcome.
func (w *Workspace) onRenderPublished(snap render.Snapshot) {
	w.mu.Lock()
	var sessionID string
	if w.current != nil {
		sessionID = w.current.ID
	}
	if w.state == StateInitialRender {
		w.state = StateReady
	}
	w.mu.Unlock()

	if snap.Err != nil {
		w.bus.Publish(event.New(event.TypeRenderFailed, sessionID, snap.Err.Error()))
		return
	}
	w.bus.Publish(event.New(event.TypeRenderCompleted, sessionID, nil))
}

// Save persists the active session and clears the dirty flag and any
// draft. A failed save leaves the workspace state untouched so the caller
// can retry.
func (w *Workspace) Save() error {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	w.current.Diagram = w.history.Present()
	snap := *w.current
	snap.Messages = append([]session.Message(nil), w.current.Messages...)
	w.mu.Unlock()

	err := w.persist(&snap)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.current.UpdatedAt = snap.UpdatedAt
	w.dirty = false
	w.mu.Unlock()

	if w.drafts != nil {
		if cerr := w.drafts.Clear(); cerr != nil {
			observability.LogSessionSaveError(w.logger, snap.ID, cerr)
		}
	}
	w.bus.Publish(event.New(event.TypeSessionSaved, snap.ID, nil))
	return nil
}

// persist writes one session to the store with tracing and metrics.
func (w *Workspace) persist(sess *session.Session) error {
	ctx := context.Background()
	data, _ := json.Marshal(sess)

	_, span := w.spans.StartSaveSpan(ctx, sess.ID)
	err := w.store.Save(sess)
	w.spans.EndSpanWithError(span, err)
	w.metrics.RecordSessionSave(ctx, int64(len(data)), err)

	if err != nil {
		observability.LogSessionSaveError(w.logger, sess.ID, err)
		return fmt.Errorf("save session %s: %w", sess.ID, err)
	}
	observability.LogSessionSaved(w.logger, sess.ID, len(data))
	return nil
}

// SwitchResult reports the outcome of a session switch. Outgoing is the
// departing session as it was handed to the store; SaveErr is non-nil when
// persisting it failed, letting the caller offer recovery without losing
// the snapshot.
type SwitchResult struct {
	Outgoing *session.Session
	SaveErr  error
}

// SwitchSession saves the outgoing session (write-behind) and activates the
// target. A failed save of the outgoing session does not block the switch;
// it is reported in the result. A missing target is an error and leaves the
// current session in place.
func (w *Workspace) SwitchSession(id string) (*SwitchResult, error) {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return nil, ErrNotStarted
	}
	if id == w.current.ID {
		w.mu.Unlock()
		return &SwitchResult{}, nil
	}
	w.current.Diagram = w.history.Present()
	outgoing := *w.current
	outgoing.Messages = append([]session.Message(nil), w.current.Messages...)
	fromID := w.current.ID
	w.mu.Unlock()

	res := &SwitchResult{Outgoing: &outgoing}
	if err := w.persist(&outgoing); err != nil {
		res.SaveErr = err
	}

	target, err := w.store.Get(id)
	if err != nil {
		return res, fmt.Errorf("load session %s: %w", id, err)
	}

	w.activate(target, fromID)
	return res, nil
}

// CreateSession saves the outgoing session and starts a fresh one on the
// given engine. A zero engine value keeps the current document's engine.
// Returns the new session's snapshot.
func (w *Workspace) CreateSession(eng engine.Engine) (*session.Session, error) {
	if eng != "" && !eng.Valid() {
		return nil, fmt.Errorf("unknown engine %q", string(eng))
	}
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return nil, ErrNotStarted
	}
	if eng == "" {
		eng = w.history.Present().Engine
	}
	w.current.Diagram = w.history.Present()
	outgoing := *w.current
	outgoing.Messages = append([]session.Message(nil), w.current.Messages...)
	fromID := w.current.ID
	w.mu.Unlock()

	// Write-behind: a failed save of the outgoing session must not block
	// creating the new one. persist already logged it.
	_ = w.persist(&outgoing)

	sess := session.New(eng)
	if err := w.persist(sess); err != nil {
		return nil, err
	}

	w.activate(sess, fromID)
	snap := *sess
	return &snap, nil
}

// activate installs a session as current, resetting history and rendering
// immediately.
func (w *Workspace) activate(sess *session.Session, fromID string) {
	w.mu.Lock()
	w.deb.cancel()
	w.current = sess
	w.history.Reset(sess.Diagram)
	w.dirty = false
	w.triggerLocked(true)
	w.mu.Unlock()

	if err := w.store.SetActiveID(sess.ID); err != nil {
		observability.LogSessionSaveError(w.logger, sess.ID, err)
	}
	if w.drafts != nil {
		if err := w.drafts.Clear(); err != nil {
			observability.LogSessionSaveError(w.logger, sess.ID, err)
		}
	}
	observability.LogSessionSwitched(w.logger, fromID, sess.ID)
	w.bus.Publish(event.New(event.TypeSessionSwitched, sess.ID, fromID))
}

// DeleteSession removes a session. Deleting the active session falls back
// to the most recently updated remaining session, or a fresh one when none
// remain.
func (w *Workspace) DeleteSession(id string) error {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	isActive := id == w.current.ID
	fromID := w.current.ID
	w.mu.Unlock()

	if err := w.store.Delete(id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	w.bus.Publish(event.New(event.TypeSessionDeleted, id, nil))

	if !isActive {
		return nil
	}

	metas, err := w.store.List()
	if err == nil && len(metas) > 0 {
		next, gerr := w.store.Get(metas[0].ID)
		if gerr == nil {
			w.activate(next, fromID)
			return nil
		}
		observability.LogSessionRestoreError(w.logger, gerr)
	} else if err != nil {
		observability.LogSessionRestoreError(w.logger, err)
	}

	sess := session.New(w.defaultEngine)
	if perr := w.persist(sess); perr != nil {
		return perr
	}
	w.activate(sess, fromID)
	return nil
}

// RenameSession renames a session, active or not, writing the new name
// through to the store immediately. For the active session the rename goes
// through its stored copy, so unsaved document edits stay unsaved.
func (w *Workspace) RenameSession(id, name string) error {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	if name == "" {
		w.mu.Unlock()
		return fmt.Errorf("session name cannot be empty")
	}
	if id == w.current.ID {
		w.current.Name = name
	}
	w.mu.Unlock()

	sess, err := w.store.Get(id)
	if err != nil {
		return fmt.Errorf("load session %s: %w", id, err)
	}
	sess.Name = name
	return w.persist(sess)
}

// ListSessions returns stored session metadata, most recently updated
// first.
func (w *Workspace) ListSessions() ([]session.Meta, error) {
	return w.store.List()
}

// SnapshotDraft writes a crash-recovery draft of unsaved work. A clean
// session is a no-op. Callers typically invoke this on an interval.
func (w *Workspace) SnapshotDraft() error {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return ErrNotStarted
	}
	if !w.dirty || w.drafts == nil {
		w.mu.Unlock()
		return nil
	}
	w.current.Diagram = w.history.Present()
	snap := *w.current
	snap.Messages = append([]session.Message(nil), w.current.Messages...)
	w.mu.Unlock()

	if err := w.drafts.Save(&snap); err != nil {
		return fmt.Errorf("snapshot draft: %w", err)
	}
	observability.LogDraftSaved(w.logger, snap.ID)
	return nil
}

// Close shuts down the workspace: pending debounced renders are cancelled,
// outstanding render completions become no-ops and the event bus closes.
// The session store is left open for its owner.
func (w *Workspace) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	w.deb.cancel()
	w.executor.Close()
	w.bus.Close()
	return nil
}
