package budget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/types"
)

func modelWithWindow(window int) types.ModelConfig {
	return types.ModelConfig{
		Provider:            "dummy",
		APIIdentifier:       "dummy-model",
		ContextWindowTokens: window,
	}
}

func TestCountRequest_SumsAllParts(t *testing.T) {
	tc := NewTokenCounter()
	req := types.AdapterRequest{
		SystemPrompt: strings.Repeat("s", 40), // ~10 tokens
		History: []types.ChatMessage{
			{Role: "user", Content: strings.Repeat("h", 40)}, // ~10 + 4 overhead
		},
		Message: strings.Repeat("m", 40), // ~10 + 4 overhead
	}

	got := tc.CountRequest(req)
	assert.Equal(t, 38, got)
}

func TestCheckWindow_UnderBudget(t *testing.T) {
	tc := NewTokenCounter()
	req := types.AdapterRequest{Message: "short prompt"}

	assert.NoError(t, CheckWindow(tc, req, modelWithWindow(1000)))
}

func TestCheckWindow_OverBudgetFailsLoudly(t *testing.T) {
	tc := NewTokenCounter()
	req := types.AdapterRequest{Message: strings.Repeat("x", 4000)} // ~1000 tokens

	err := CheckWindow(tc, req, modelWithWindow(100))
	require.Error(t, err)
	assert.True(t, types.IsBudgetExceeded(err))
}

func TestCheckWindow_ProviderMaxInputTighterThanWindow(t *testing.T) {
	tc := NewTokenCounter()
	model := modelWithWindow(10000)
	model.ProviderMaxInputTokens = 50

	err := CheckWindow(tc, types.AdapterRequest{Message: strings.Repeat("x", 400)}, model)
	require.Error(t, err)

	var be *types.BudgetExceededError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, 50, be.BudgetTokens)
}

func TestCheckWindow_NoBudgetConfiguredIsInvariantViolation(t *testing.T) {
	tc := NewTokenCounter()

	err := CheckWindow(tc, types.AdapterRequest{Message: "x"}, types.ModelConfig{APIIdentifier: "m"})
	require.Error(t, err)
	assert.False(t, types.IsBudgetExceeded(err))
}

func TestCompressRequest_NoopWhenUnderBudget(t *testing.T) {
	tc := NewTokenCounter()
	req := types.AdapterRequest{
		History: []types.ChatMessage{{Role: "user", Content: "hello"}},
		Message: "next",
	}

	got, err := CompressRequest(tc, req, modelWithWindow(1000))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestCompressRequest_ElidesOldestTurnsFirst(t *testing.T) {
	tc := NewTokenCounter()
	turn := func(s string) types.ChatMessage {
		return types.ChatMessage{Role: "user", Content: s + strings.Repeat("x", 400)}
	}
	req := types.AdapterRequest{
		History: []types.ChatMessage{turn("oldest"), turn("middle"), turn("newest")},
		Message: "continue",
	}

	// Three ~104-token turns plus message: only roughly two turns fit.
	got, err := CompressRequest(tc, req, modelWithWindow(260))
	require.NoError(t, err)

	require.NotEmpty(t, got.History)
	assert.Contains(t, got.History[0].Content, "elided")
	last := got.History[len(got.History)-1]
	assert.True(t, strings.HasPrefix(last.Content, "newest"), "newest turn must survive compression")
	for _, m := range got.History[1:] {
		assert.False(t, strings.HasPrefix(m.Content, "oldest"), "oldest turn should be elided first")
	}
}

func TestCompressRequest_FailsWhenMessageAloneOverBudget(t *testing.T) {
	tc := NewTokenCounter()
	req := types.AdapterRequest{
		History: []types.ChatMessage{{Role: "user", Content: "small"}},
		Message: strings.Repeat("x", 4000),
	}

	_, err := CompressRequest(tc, req, modelWithWindow(100))
	require.Error(t, err)
	assert.True(t, types.IsBudgetExceeded(err))
}
