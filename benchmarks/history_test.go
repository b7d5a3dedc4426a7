package benchmarks

import (
	"fmt"
	"testing"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/history"
)

// BenchmarkSet measures the cost of one accepted edit.
func BenchmarkSet(b *testing.B) {
	s := history.New(history.Document{Engine: engine.Mermaid})
	for i := 0; i < b.N; i++ {
		s.Set(history.SourceUpdate(fmt.Sprintf("graph TD\n  n%d", i)))
	}
}

// BenchmarkSet_NoOp measures the rejected-edit fast path.
func BenchmarkSet_NoOp(b *testing.B) {
	s := history.New(history.Document{Engine: engine.Mermaid, Source: "graph TD"})
	update := history.SourceUpdate("graph TD")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set(update)
	}
}

// BenchmarkSet_AtCap measures edits once the undo stack evicts.
func BenchmarkSet_AtCap(b *testing.B) {
	s := history.New(history.Document{Engine: engine.Mermaid})
	for i := 0; i < history.DefaultMaxSteps+1; i++ {
		s.Set(history.SourceUpdate(fmt.Sprintf("fill %d", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Set(history.SourceUpdate(fmt.Sprintf("graph TD\n  n%d", i)))
	}
}

// BenchmarkUndoRedo measures one undo/redo round trip.
func BenchmarkUndoRedo(b *testing.B) {
	s := history.New(history.Document{Engine: engine.Mermaid})
	s.Set(history.SourceUpdate("graph TD\n  A --> B"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Undo()
		s.Redo()
	}
}
