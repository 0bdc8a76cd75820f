package types

import (
	"errors"
	"fmt"
)

// The pipeline error taxonomy. Each class maps to a distinct handling
// policy: contract violations and invariant violations are terminal,
// provider errors surface to the job as failures, budget violations
// demand compression or rejection, and collisions signal a naming
// defect rather than a retryable race.

// ProviderError wraps an upstream provider failure (HTTP status,
// malformed or empty response). Retries, if any, live above the
// adapter - the adapter reports and returns.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider %s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// BudgetExceededError reports a pre-flight input token budget
// violation. Distinct from a "length" finish reason: the former must
// be compressed or rejected before sending, the latter is handled by
// the continuation loop.
type BudgetExceededError struct {
	Model        string
	PromptTokens int
	BudgetTokens int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("input budget exceeded for %s: prompt ~%d tokens, budget %d",
		e.Model, e.PromptTokens, e.BudgetTokens)
}

// CollisionError reports a storage write to an already-occupied path.
type CollisionError struct {
	Path string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("storage path collision at %q: duplicate or ambiguous naming", e.Path)
}

// InvariantError reports an internal programming invariant violation.
// Never retried, never user-recoverable.
type InvariantError struct {
	Invariant string
}

func (e *InvariantError) Error() string {
	return "invariant violated: " + e.Invariant
}

// IsCollision reports whether err is (or wraps) a CollisionError.
func IsCollision(err error) bool {
	var ce *CollisionError
	return errors.As(err, &ce)
}

// IsBudgetExceeded reports whether err is (or wraps) a
// BudgetExceededError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetExceededError
	return errors.As(err, &be)
}
