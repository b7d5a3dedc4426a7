package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()

	// All methods must be safe to call and do nothing.
	m.RecordRender(ctx, "mermaid", time.Second, nil)
	m.RecordRender(ctx, "mermaid", time.Second, errors.New("x"))
	m.RecordStaleDrop(ctx, "mermaid")
	m.RecordSessionSave(ctx, 1024, nil)
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartRenderSpan(ctx, "mermaid", 1)
	assert.Equal(t, ctx, newCtx, "noop span must not modify the context")
	assert.NotNil(t, span)
	assert.False(t, span.IsRecording())

	newCtx, span = sm.StartSaveSpan(ctx, "sess-1")
	assert.Equal(t, ctx, newCtx)
	assert.NotNil(t, span)

	sm.EndSpanWithError(span, errors.New("ignored"))
	sm.EndSpanWithError(nil, nil)
	sm.AddSpanEvent(ctx, "event", attribute.String("k", "v"))
}
