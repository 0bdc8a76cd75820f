// Package budget provides token estimation and pre-flight input
// window enforcement for provider calls. The counting heuristic is
// calibrated at ~4 characters per token, which tracks the major chat
// tokenizers closely enough for budget decisions.
package budget

import (
	"unicode/utf8"

	"dialectic/internal/types"
)

// TokenCounter provides token estimation.
type TokenCounter struct {
	charsPerToken float64
}

// NewTokenCounter creates a counter with default calibration.
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{charsPerToken: 4.0}
}

// CountString estimates tokens in a string.
func (tc *TokenCounter) CountString(s string) int {
	if s == "" {
		return 0
	}
	// Rune count for proper unicode handling
	runeCount := utf8.RuneCountInString(s)
	return int(float64(runeCount) / tc.charsPerToken)
}

// CountMessage estimates tokens for one conversation turn.
func (tc *TokenCounter) CountMessage(m types.ChatMessage) int {
	// Role tag and message framing overhead
	return 4 + tc.CountString(m.Content)
}

// CountRequest estimates the full assembled input: system prompt,
// every history turn, and the new message.
func (tc *TokenCounter) CountRequest(req types.AdapterRequest) int {
	total := tc.CountString(req.SystemPrompt)
	for _, m := range req.History {
		total += tc.CountMessage(m)
	}
	total += 4 + tc.CountString(req.Message)
	return total
}
