// Package agent is the boundary between the LLM assistant and the diagram
// document. Assistant-proposed changes pass through validation here before
// they can touch a document; the package also defines the chat client
// interface and an OpenAI-compatible implementation.
package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/history"
)

// ErrEmptyProposal indicates a proposal that changes nothing.
var ErrEmptyProposal = errors.New("agent proposal carries neither engine nor source")

// ValidationError reports a rejected proposal field.
type ValidationError struct {
	Field string
	Value string
	Cause string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid agent proposal: %s %q: %s", e.Field, e.Value, e.Cause)
}

// Proposal is an assistant-proposed document change as it comes off the
// wire. Both fields are optional; an engine-only proposal switches the
// diagram type, a source-only proposal rewrites the code.
type Proposal struct {
	Engine string `json:"engine,omitempty"`
	Source string `json:"source,omitempty"`
}

// Validate checks a proposal and converts it into a document update.
// Unknown engines and empty proposals are rejected; nothing reaches the
// document unvalidated.
func Validate(p Proposal) (history.Update, error) {
	engineStr := strings.TrimSpace(p.Engine)
	if engineStr == "" && p.Source == "" {
		return history.Update{}, ErrEmptyProposal
	}

	var u history.Update
	if engineStr != "" {
		eng := engine.Engine(strings.ToLower(engineStr))
		if !eng.Valid() {
			return history.Update{}, &ValidationError{
				Field: "engine",
				Value: p.Engine,
				Cause: "unknown engine",
			}
		}
		u.Engine = &eng
	}
	if p.Source != "" {
		src := p.Source
		u.Source = &src
	}
	return u, nil
}

// ParseProposal decodes and validates a JSON proposal payload.
func ParseProposal(data []byte) (history.Update, error) {
	var p Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return history.Update{}, fmt.Errorf("decode agent proposal: %w", err)
	}
	return Validate(p)
}
