package agent_test

import (
	"testing"

	"github.com/diagflow/diagflow/pkg/diagflow/agent"
	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Run("source only", func(t *testing.T) {
		u, err := agent.Validate(agent.Proposal{Source: "graph TD\n  A --> B"})
		require.NoError(t, err)
		assert.Nil(t, u.Engine)
		require.NotNil(t, u.Source)
		assert.Equal(t, "graph TD\n  A --> B", *u.Source)
	})

	t.Run("engine only", func(t *testing.T) {
		u, err := agent.Validate(agent.Proposal{Engine: "plantuml"})
		require.NoError(t, err)
		require.NotNil(t, u.Engine)
		assert.Equal(t, engine.PlantUML, *u.Engine)
		assert.Nil(t, u.Source)
	})

	t.Run("both", func(t *testing.T) {
		u, err := agent.Validate(agent.Proposal{Engine: "d2", Source: "x -> y"})
		require.NoError(t, err)
		require.NotNil(t, u.Engine)
		assert.Equal(t, engine.D2, *u.Engine)
		require.NotNil(t, u.Source)
	})

	t.Run("engine name is case-normalized", func(t *testing.T) {
		u, err := agent.Validate(agent.Proposal{Engine: "Mermaid"})
		require.NoError(t, err)
		assert.Equal(t, engine.Mermaid, *u.Engine)
	})

	t.Run("unknown engine rejected", func(t *testing.T) {
		_, err := agent.Validate(agent.Proposal{Engine: "visio", Source: "x"})
		require.Error(t, err)

		var verr *agent.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "engine", verr.Field)
		assert.Equal(t, "visio", verr.Value)
	})

	t.Run("empty proposal rejected", func(t *testing.T) {
		_, err := agent.Validate(agent.Proposal{})
		assert.ErrorIs(t, err, agent.ErrEmptyProposal)

		_, err = agent.Validate(agent.Proposal{Engine: "   "})
		assert.ErrorIs(t, err, agent.ErrEmptyProposal)
	})
}

func TestParseProposal(t *testing.T) {
	t.Run("valid payload", func(t *testing.T) {
		u, err := agent.ParseProposal([]byte(`{"engine":"graphviz","source":"digraph {}"}`))
		require.NoError(t, err)
		assert.Equal(t, engine.Graphviz, *u.Engine)
		assert.Equal(t, "digraph {}", *u.Source)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, err := agent.ParseProposal([]byte(`{not json`))
		assert.Error(t, err)
	})

	t.Run("unknown engine", func(t *testing.T) {
		_, err := agent.ParseProposal([]byte(`{"engine":"bogus","source":"x"}`))
		var verr *agent.ValidationError
		assert.ErrorAs(t, err, &verr)
	})

	t.Run("empty object", func(t *testing.T) {
		_, err := agent.ParseProposal([]byte(`{}`))
		assert.ErrorIs(t, err, agent.ErrEmptyProposal)
	})
}
