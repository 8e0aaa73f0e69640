package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/deepagent/pkg/planner"
)

func TestAskText(t *testing.T) {
	out, err := run(t, "ask", "--config", missingConfig(t), "What is quantum computing?")
	require.NoError(t, err)

	assert.Contains(t, out, "Plan:")
	assert.Contains(t, out, "1. Research and gather information about: What is quantum computing?")
	assert.Contains(t, out, "Answer:")
	assert.Contains(t, out, "Based on the query: 'What is quantum computing?'")
	assert.Contains(t, out, "Quality score: 0.75 | Iterations: 1 | Stop: quality_threshold")
	assert.NotContains(t, out, "Trace:")
}

func TestAskJoinsArguments(t *testing.T) {
	out, err := run(t, "ask", "--config", missingConfig(t), "Explain", "REST", "APIs")
	require.NoError(t, err)
	assert.Contains(t, out, "Based on the query: 'Explain REST APIs'")
}

func TestAskTextTrace(t *testing.T) {
	out, err := run(t, "ask", "--config", missingConfig(t), "--trace", "q")
	require.NoError(t, err)

	assert.Contains(t, out, "Trace:")
	assert.Contains(t, out, "next=plan")
	assert.Contains(t, out, "next=finish")
}

func TestAskJSON(t *testing.T) {
	t.Run("result only", func(t *testing.T) {
		out, err := run(t, "ask", "--config", missingConfig(t), "--format", "json", "q")
		require.NoError(t, err)

		var parsed askOutput
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		require.NotNil(t, parsed.Result)
		assert.Len(t, parsed.Result.ExecutionTrace, 3)
		assert.Len(t, parsed.Result.PlanSteps, 3)
		assert.Equal(t, 0.75, parsed.Result.QualityScore)
		assert.Empty(t, parsed.States)
	})

	t.Run("with trace", func(t *testing.T) {
		out, err := run(t, "ask", "--config", missingConfig(t), "-f", "json", "--trace", "q")
		require.NoError(t, err)

		var parsed askOutput
		require.NoError(t, json.Unmarshal([]byte(out), &parsed))
		require.Len(t, parsed.States, 6)
		assert.Equal(t, planner.ActionFinish, parsed.States[5].NextAction)
		assert.Equal(t, parsed.Result.SessionID, parsed.States[0].SessionID)
	})
}

func TestAskYAML(t *testing.T) {
	out, err := run(t, "ask", "--config", missingConfig(t), "--format", "yaml", "q")
	require.NoError(t, err)

	assert.Contains(t, out, "result:")
	assert.Contains(t, out, "finalAnswer:")
	assert.Contains(t, out, "qualityScore: 0.75")
	assert.Contains(t, out, "stopReason: quality_threshold")
}

func TestAskErrors(t *testing.T) {
	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "ask", "--config", missingConfig(t), "--format", "xml", "q")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown format")
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := run(t, "ask", "--config", missingConfig(t))
		assert.Error(t, err)
	})

	t.Run("blank query", func(t *testing.T) {
		_, err := run(t, "ask", "--config", missingConfig(t), "   ")
		assert.Error(t, err)
	})
}
