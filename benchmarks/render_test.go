package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/render"
)

var instantRenderer = render.RendererFunc(
	func(ctx context.Context, eng engine.Engine, source string) (string, error) {
		return "<svg/>", nil
	})

// BenchmarkRender measures executor overhead per distinct render.
func BenchmarkRender(b *testing.B) {
	e := render.New(instantRenderer)
	defer e.Close()
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		e.Render(ctx, engine.Mermaid, fmt.Sprintf("graph TD\n  n%d", i))
	}
}

// BenchmarkRender_DedupSkip measures the identical-source fast path.
func BenchmarkRender_DedupSkip(b *testing.B) {
	e := render.New(instantRenderer)
	defer e.Close()
	ctx := context.Background()
	e.Render(ctx, engine.Mermaid, "graph TD")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Render(ctx, engine.Mermaid, "graph TD")
	}
}

// BenchmarkRender_EmptyClear measures the empty-source short circuit.
func BenchmarkRender_EmptyClear(b *testing.B) {
	e := render.New(instantRenderer)
	defer e.Close()
	ctx := context.Background()
	for i := 0; i < b.N; i++ {
		e.Render(ctx, engine.Mermaid, "   ")
	}
}
