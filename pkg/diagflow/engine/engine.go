// Package engine describes the supported diagram source dialects.
//
// An engine determines how diagram source text is interpreted by the
// rendering service, which default template seeds a fresh document, and
// which export formats are available.
package engine

import (
	"fmt"
	"time"
)

// Engine identifies a diagram source dialect (e.g. "mermaid", "plantuml").
type Engine string

// Supported engines.
const (
	Mermaid    Engine = "mermaid"
	PlantUML   Engine = "plantuml"
	D2         Engine = "d2"
	DBML       Engine = "dbml"
	Graphviz   Engine = "graphviz"
	C4PlantUML Engine = "c4plantuml"
	Nomnoml    Engine = "nomnoml"
	Erd        Engine = "erd"
	Ditaa      Engine = "ditaa"
	Svgbob     Engine = "svgbob"
	WaveDrom   Engine = "wavedrom"
	BlockDiag  Engine = "blockdiag"
	SeqDiag    Engine = "seqdiag"
	NwDiag     Engine = "nwdiag"
)

// Default is the engine used when none has been chosen yet.
const Default = Mermaid

// displayNames maps engines to their human-readable names.
var displayNames = map[Engine]string{
	Mermaid:    "Mermaid",
	PlantUML:   "PlantUML",
	D2:         "D2",
	DBML:       "DBML",
	Graphviz:   "Graphviz",
	C4PlantUML: "C4",
	Nomnoml:    "Nomnoml",
	Erd:        "Erd",
	Ditaa:      "Ditaa",
	Svgbob:     "Svgbob",
	WaveDrom:   "WaveDrom",
	BlockDiag:  "BlockDiag",
	SeqDiag:    "SeqDiag",
	NwDiag:     "NwDiag",
}

// All returns every supported engine in stable order.
func All() []Engine {
	return []Engine{
		Mermaid, PlantUML, D2, DBML, Graphviz, C4PlantUML, Nomnoml,
		Erd, Ditaa, Svgbob, WaveDrom, BlockDiag, SeqDiag, NwDiag,
	}
}

// Valid reports whether e is a supported engine.
func (e Engine) Valid() bool {
	_, ok := displayNames[e]
	return ok
}

// DisplayName returns the human-readable name for e.
// Unknown engines are returned as-is.
func (e Engine) DisplayName() string {
	if name, ok := displayNames[e]; ok {
		return name
	}
	return string(e)
}

// String implements fmt.Stringer.
func (e Engine) String() string { return string(e) }

// SessionName generates a default session name for an engine at time t.
// Format: display name plus a compact MMDD-HHMM stamp, e.g. "Mermaid 0827-1430".
func SessionName(e Engine, t time.Time) string {
	return fmt.Sprintf("%s %s", e.DisplayName(), t.Format("0102-1504"))
}

// ExportFormat identifies an image export format.
type ExportFormat string

// Export formats offered by the rendering service.
const (
	FormatSVG       ExportFormat = "svg"
	FormatPNG       ExportFormat = "png"
	FormatPNGOpaque ExportFormat = "png-opaque"
	FormatJPEG      ExportFormat = "jpeg"
	FormatPDF       ExportFormat = "pdf"
)

// ExportCapability describes which formats an engine supports.
type ExportCapability struct {
	Formats []ExportFormat
}

// Supports reports whether the capability includes format.
func (c ExportCapability) Supports(format ExportFormat) bool {
	for _, f := range c.Formats {
		if f == format {
			return true
		}
	}
	return false
}

// Capability returns the export capability for e.
// Only the BlockDiag family supports the opaque-background PNG flag.
func (e Engine) Capability() ExportCapability {
	base := []ExportFormat{FormatSVG, FormatPNG, FormatJPEG, FormatPDF}
	switch e {
	case BlockDiag, SeqDiag, NwDiag:
		return ExportCapability{Formats: append(base, FormatPNGOpaque)}
	default:
		return ExportCapability{Formats: base}
	}
}
