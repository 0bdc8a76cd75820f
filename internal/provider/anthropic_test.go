package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/types"
)

func TestAlternatingMessages_JoinsConsecutiveSameRole(t *testing.T) {
	merged := []types.ChatMessage{
		{Role: "user", Content: "first"},
		{Role: "user", Content: "second"},
		{Role: "assistant", Content: "reply"},
		{Role: "assistant", Content: "more reply"},
		{Role: "user", Content: "third"},
	}

	out := alternatingMessages(merged)

	require.Len(t, out, 3)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "first\n\nsecond", out[0].Content)
	assert.Equal(t, "assistant", out[1].Role)
	assert.Equal(t, "reply\n\nmore reply", out[1].Content)
	assert.Equal(t, "user", out[2].Role)
}

func TestAlternatingMessages_LeadingAssistantGetsUserOpener(t *testing.T) {
	out := alternatingMessages([]types.ChatMessage{
		{Role: "assistant", Content: "I started"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "user", out[0].Role)
	assert.Equal(t, "assistant", out[1].Role)
}

func TestAnthropic_SystemPromptIsSeparateField(t *testing.T) {
	var sent anthropicRequest
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &sent))
		return jsonResponse(`{"id":"r","model":"m","content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`), nil
	})

	adapter := NewAnthropicAdapter(Options{
		APIKey:     "k",
		Model:      testModel(),
		HTTPClient: &http.Client{Transport: rt},
	})

	_, err := adapter.SendMessage(context.Background(), types.AdapterRequest{
		SystemPrompt: "you are a synthesizer",
		Message:      "go",
	}, "test-model")
	require.NoError(t, err)

	assert.Equal(t, "you are a synthesizer", sent.System)
	for _, m := range sent.Messages {
		assert.NotEqual(t, "system", m.Role, "system prompt must not appear as a message")
	}
}

func TestAnthropic_StopReasonNormalization(t *testing.T) {
	cases := map[string]types.FinishReason{
		"end_turn":      types.FinishStop,
		"stop_sequence": types.FinishStop,
		"max_tokens":    types.FinishLength,
		"tool_use":      types.FinishToolCalls,
		"weird":         types.FinishUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, normalizeAnthropicStop(raw), "stop_reason %q", raw)
	}
}
