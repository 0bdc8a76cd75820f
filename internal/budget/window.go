package budget

import (
	"fmt"

	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// CheckWindow validates the fully assembled request against the
// model's input token budget. Returns a BudgetExceededError when the
// estimate is over; never truncates.
func CheckWindow(tc *TokenCounter, req types.AdapterRequest, model types.ModelConfig) error {
	budgetTokens := model.InputTokenBudget()
	if budgetTokens <= 0 {
		return &types.InvariantError{Invariant: fmt.Sprintf("model %s has no input token budget configured", model.APIIdentifier)}
	}

	estimate := tc.CountRequest(req)
	if estimate > budgetTokens {
		logging.Budget("window check failed for %s: ~%d tokens > budget %d", model.APIIdentifier, estimate, budgetTokens)
		return &types.BudgetExceededError{
			Model:        model.APIIdentifier,
			PromptTokens: estimate,
			BudgetTokens: budgetTokens,
		}
	}

	logging.BudgetDebug("window check ok for %s: ~%d/%d tokens", model.APIIdentifier, estimate, budgetTokens)
	return nil
}

// CompressRequest reduces an over-budget request by eliding oldest
// history turns until the estimate fits, recording how many turns were
// dropped in a single marker message. The newest turns and the system
// prompt are always preserved. If even the fully elided request does
// not fit, the original BudgetExceededError is returned - compression
// never silently truncates content within a turn.
func CompressRequest(tc *TokenCounter, req types.AdapterRequest, model types.ModelConfig) (types.AdapterRequest, error) {
	if err := CheckWindow(tc, req, model); err == nil {
		return req, nil
	} else if !types.IsBudgetExceeded(err) {
		return types.AdapterRequest{}, err
	}

	elided := 0
	compressed := req
	history := append([]types.ChatMessage(nil), req.History...)

	for len(history) > 0 {
		history = history[1:]
		elided++

		compressed.History = withElisionMarker(history, elided)
		if err := CheckWindow(tc, compressed, model); err == nil {
			logging.Budget("compressed request for %s: elided %d oldest turn(s)", model.APIIdentifier, elided)
			return compressed, nil
		}
	}

	// Nothing left to elide: the system prompt plus current message
	// alone exceed the window. Hard failure.
	compressed.History = withElisionMarker(nil, elided)
	err := CheckWindow(tc, compressed, model)
	if err == nil {
		return compressed, nil
	}
	return types.AdapterRequest{}, fmt.Errorf("compression exhausted for %s: %w", model.APIIdentifier, err)
}

func withElisionMarker(history []types.ChatMessage, elided int) []types.ChatMessage {
	if elided == 0 {
		return history
	}
	marker := types.ChatMessage{
		Role:    "user",
		Content: fmt.Sprintf("[%d earlier conversation turn(s) elided to fit the model's context window]", elided),
	}
	return append([]types.ChatMessage{marker}, history...)
}
