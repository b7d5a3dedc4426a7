package kroki

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrorContext is a window of source lines around a reported error line,
// suitable for showing alongside the error message or feeding to an agent.
type ErrorContext struct {
	Before    []string `json:"before"`
	ErrorLine string   `json:"error_line"`
	After     []string `json:"after"`
}

// RenderError is a rendering failure reported by the Kroki service. Line and
// Column are zero when the service's message carried no position information.
type RenderError struct {
	StatusCode int
	Message    string
	Line       int
	Column     int
	Context    *ErrorContext
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("render failed (HTTP %d) at line %d: %s", e.StatusCode, e.Line, e.Message)
	}
	return fmt.Sprintf("render failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// linePattern pairs a regexp with the capture-group indexes for line and
// column. Patterns are tried in order; the first match wins. The ordering
// matters: the generic "line N" pattern must come last or it would shadow
// the more specific forms.
type linePattern struct {
	re        *regexp.Regexp
	lineGroup int
	colGroup  int
}

var linePatterns = []linePattern{
	{re: regexp.MustCompile(`-:(\d+):(\d+):`), lineGroup: 1, colGroup: 2},
	{re: regexp.MustCompile(`(?i)at line (\d+):(\d+)`), lineGroup: 1, colGroup: 2},
	{re: regexp.MustCompile(`(?i)on line (\d+)`), lineGroup: 1},
	{re: regexp.MustCompile(`(?i)in line (\d+)`), lineGroup: 1},
	{re: regexp.MustCompile(`(?i)line\s+(\d+)`), lineGroup: 1},
}

// ExtractPosition pulls a 1-based line number (and column when present) out
// of a Kroki error message. Different engines report positions in different
// shapes; the pattern list covers the formats seen from Mermaid, PlantUML,
// Graphviz and the BlockDiag family. Returns (0, 0) when no position is
// found.
func ExtractPosition(message string) (line, column int) {
	for _, p := range linePatterns {
		m := p.re.FindStringSubmatch(message)
		if m == nil {
			continue
		}
		line, _ = strconv.Atoi(m[p.lineGroup])
		if p.colGroup > 0 && p.colGroup < len(m) {
			column, _ = strconv.Atoi(m[p.colGroup])
		}
		return line, column
	}
	return 0, 0
}

// ExtractContext returns up to two lines of source before and after the
// given 1-based line number. Returns nil when the line number falls outside
// the source.
func ExtractContext(source string, line int) *ErrorContext {
	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return nil
	}
	idx := line - 1
	lo := idx - 2
	if lo < 0 {
		lo = 0
	}
	hi := idx + 3
	if hi > len(lines) {
		hi = len(lines)
	}
	return &ErrorContext{
		Before:    append([]string(nil), lines[lo:idx]...),
		ErrorLine: lines[idx],
		After:     append([]string(nil), lines[idx+1:hi]...),
	}
}

// ParseRenderError builds a RenderError from a service error message,
// attaching line/column and a source context window when the message
// carries position information.
func ParseRenderError(statusCode int, message, source string) *RenderError {
	line, column := ExtractPosition(message)
	re := &RenderError{
		StatusCode: statusCode,
		Message:    message,
		Line:       line,
		Column:     column,
	}
	if line > 0 && source != "" {
		re.Context = ExtractContext(source, line)
	}
	return re
}
