// Package render executes asynchronous diagram render requests with a
// latest-wins guarantee.
//
// Render triggers arrive from several sources within milliseconds of each
// other (typed edits, engine switches, session switches, agent updates),
// while the rendering service's latency is nondeterministic and the call is
// not cancelable. The Executor enforces that only the response to the most
// recently issued request is ever published: every request captures a
// monotonically increasing version, and completions carrying a superseded
// version are dropped without touching observable state.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/observability"
)

// Renderer is the render collaborator: it compiles diagram source text into
// a rendered artifact (SVG text). Implementations must be safe to call
// repeatedly with the same arguments and must not reorder concurrent calls
// themselves; ordering is the Executor's job.
type Renderer interface {
	Render(ctx context.Context, eng engine.Engine, source string) (string, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, eng engine.Engine, source string) (string, error)

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, eng engine.Engine, source string) (string, error) {
	return f(ctx, eng, source)
}

// Snapshot is the observable render state at a point in time.
type Snapshot struct {
	// Artifact is the most recently published rendered artifact, or "" if
	// none (cleared, failed, or nothing rendered yet).
	Artifact string

	// Err is the most recently published render failure, or nil.
	Err error

	// InFlight reports whether the latest issued request is still pending.
	InFlight bool
}

// closedVersion is the sentinel installed by Close. No live request can
// match it, so every outstanding completion becomes a no-op.
const closedVersion = math.MaxUint64

// Executor owns the single-flight/latest-wins invariant for render requests.
// It is safe for concurrent use.
type Executor struct {
	renderer  Renderer
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
	spans     observability.SpanManager
	onPublish func(Snapshot)

	mu           sync.Mutex
	version      uint64
	closed       bool
	inFlight     bool
	artifact     string
	err          error
	lastEngine   engine.Engine // engine of the last successfully published render
	lastRendered string        // source of the last successfully published render
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the structured logger. Default: no logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// WithMetrics sets the metrics recorder. Default: no-op.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Executor) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithSpanManager sets the trace span manager. Default: no-op.
func WithSpanManager(sm observability.SpanManager) Option {
	return func(e *Executor) {
		if sm != nil {
			e.spans = sm
		}
	}
}

// WithPublishHook registers a callback invoked after every observable state
// change (published result, published error, or clear). The callback runs
// outside the executor's lock and must not call back into the Executor
// synchronously from another goroutine while holding its own locks.
func WithPublishHook(fn func(Snapshot)) Option {
	return func(e *Executor) { e.onPublish = fn }
}

// New creates an Executor over the given renderer.
func New(renderer Renderer, opts ...Option) *Executor {
	e := &Executor{
		renderer: renderer,
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Snapshot returns the current observable state.
func (e *Executor) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot{Artifact: e.artifact, Err: e.err, InFlight: e.inFlight}
}

// Ticket is a claim on the version sequence, issued by Submit and executed
// by Run. The zero Ticket carries no work.
type Ticket struct {
	version uint64
	eng     engine.Engine
	source  string
	kind    ticketKind
}

type ticketKind int

const (
	ticketNone ticketKind = iota
	ticketClear
	ticketRender
)

// Pending reports whether the ticket carries work for Run.
func (t Ticket) Pending() bool { return t.kind != ticketNone }

// Submit claims the outcome slot for (eng, source) and returns a ticket for
// Run. The version is captured synchronously, so a caller that reads its
// document and submits under one lock gets tickets in document order even
// when the Run calls race each other. Submit never blocks on the renderer
// and never invokes the publish hook.
//
// Empty (all-whitespace) source yields a clear ticket: Run wipes the
// published result without invoking the renderer and without consuming a
// version. Engine and source identical to the last successfully published
// render yield a no-op ticket.
func (e *Executor) Submit(eng engine.Engine, source string) Ticket {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Ticket{}
	}
	if strings.TrimSpace(source) == "" {
		return Ticket{version: e.version, kind: ticketClear}
	}
	// De-duplication: re-rendering the exact engine and source that
	// produced the currently published artifact is pointless. Optimization
	// only; the version guard in Run is what provides correctness.
	if eng == e.lastEngine && source == e.lastRendered && e.artifact != "" {
		observability.LogRenderSkipped(e.logger, eng.String(), len(source))
		return Ticket{}
	}
	e.version++
	e.inFlight = true
	e.err = nil
	return Ticket{version: e.version, eng: eng, source: source, kind: ticketRender}
}

// Run executes a submitted ticket. The outcome is published only if the
// ticket's version is still the latest and the executor has not been
// closed; superseded outcomes are dropped with a debug log. Run blocks
// until the outcome is published or discarded; callers wanting
// fire-and-forget semantics run it in a goroutine.
func (e *Executor) Run(ctx context.Context, t Ticket) {
	switch t.kind {
	case ticketClear:
		e.runClear(t)
	case ticketRender:
		e.runRender(ctx, t)
	}
}

// Render issues and executes a render request for (eng, source). It is
// Submit followed by Run; callers that need the version claimed atomically
// with their own state use the two halves directly.
//
// Render never returns collaborator failures to the caller; they become
// the published error state.
func (e *Executor) Render(ctx context.Context, eng engine.Engine, source string) {
	e.Run(ctx, e.Submit(eng, source))
}

// runClear wipes the published result. A render submitted after the clear
// supersedes it, so the clear applies only while its version is current.
func (e *Executor) runClear(t Ticket) {
	e.mu.Lock()
	if e.closed || e.version != t.version {
		e.mu.Unlock()
		return
	}
	e.artifact = ""
	e.err = nil
	snap := Snapshot{InFlight: e.inFlight}
	e.mu.Unlock()
	e.notify(snap)
}

func (e *Executor) runRender(ctx context.Context, t Ticket) {
	observability.LogRenderStart(e.logger, t.eng.String(), t.version, len(t.source))

	spanCtx, span := e.spans.StartRenderSpan(ctx, t.eng.String(), t.version)
	start := time.Now()

	artifact, err := e.invoke(spanCtx, t.eng, t.source)

	duration := time.Since(start)
	durationMs := float64(duration.Milliseconds())
	e.metrics.RecordRender(ctx, t.eng.String(), duration, err)
	e.spans.EndSpanWithError(span, err)

	e.mu.Lock()
	if e.closed || e.version != t.version {
		latest := e.version
		e.mu.Unlock()
		e.metrics.RecordStaleDrop(ctx, t.eng.String())
		observability.LogRenderStale(e.logger, t.eng.String(), t.version, latest)
		return
	}

	if err != nil {
		e.err = err
		e.artifact = ""
	} else {
		e.artifact = artifact
		e.err = nil
		e.lastEngine = t.eng
		e.lastRendered = t.source
	}
	// Only the current version may reset the in-flight flag; an older
	// completion finishing later has already been dropped above.
	e.inFlight = false
	snap := Snapshot{Artifact: e.artifact, Err: e.err, InFlight: false}
	e.mu.Unlock()

	if err != nil {
		observability.LogRenderError(e.logger, t.eng.String(), t.version, err)
	} else {
		observability.LogRenderComplete(e.logger, t.eng.String(), t.version, durationMs, len(artifact))
	}
	e.notify(snap)
}

// invoke calls the renderer, converting panics into errors so that no
// failure mode can escape Render.
func (e *Executor) invoke(ctx context.Context, eng engine.Engine, source string) (artifact string, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = ""
			err = fmt.Errorf("renderer panic: %v", r)
		}
	}()
	return e.renderer.Render(ctx, eng, source)
}

// Clear discards the published result and the de-duplication cache.
// The next Render call with any source will invoke the renderer.
func (e *Executor) Clear() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.artifact = ""
	e.err = nil
	e.lastEngine = ""
	e.lastRendered = ""
	snap := Snapshot{InFlight: e.inFlight}
	e.mu.Unlock()
	e.notify(snap)
}

// Close tears down the executor. Every outstanding render completion is
// unconditionally treated as stale afterwards and produces no observable
// effect. Close is idempotent.
func (e *Executor) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.version = closedVersion
}

func (e *Executor) notify(snap Snapshot) {
	if e.onPublish != nil {
		e.onPublish(snap)
	}
}
