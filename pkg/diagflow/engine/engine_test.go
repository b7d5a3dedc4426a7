package engine_test

import (
	"testing"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValid(t *testing.T) {
	for _, e := range engine.All() {
		assert.True(t, e.Valid(), "expected %q to be valid", e)
	}
	assert.False(t, engine.Engine("visio").Valid())
	assert.False(t, engine.Engine("").Valid())
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Mermaid", engine.Mermaid.DisplayName())
	assert.Equal(t, "C4", engine.C4PlantUML.DisplayName())

	// Unknown engines pass through unchanged.
	assert.Equal(t, "visio", engine.Engine("visio").DisplayName())
}

func TestSessionName(t *testing.T) {
	ts := time.Date(2026, 8, 27, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "Mermaid 0827-1430", engine.SessionName(engine.Mermaid, ts))
	assert.Equal(t, "PlantUML 0827-1430", engine.SessionName(engine.PlantUML, ts))
}

func TestTemplate(t *testing.T) {
	for _, e := range engine.All() {
		assert.NotEmpty(t, engine.Template(e), "engine %q has no template", e)
	}

	// Unknown engines fall back to the mermaid template.
	assert.Equal(t, engine.Template(engine.Mermaid), engine.Template("visio"))
}

func TestCapability(t *testing.T) {
	std := engine.Mermaid.Capability()
	require.True(t, std.Supports(engine.FormatSVG))
	require.True(t, std.Supports(engine.FormatPNG))
	require.True(t, std.Supports(engine.FormatPDF))
	assert.False(t, std.Supports(engine.FormatPNGOpaque))

	// Only the BlockDiag family supports opaque PNG.
	for _, e := range []engine.Engine{engine.BlockDiag, engine.SeqDiag, engine.NwDiag} {
		assert.True(t, e.Capability().Supports(engine.FormatPNGOpaque), "engine %q", e)
	}
}
