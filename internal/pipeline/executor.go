package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"dialectic/internal/budget"
	"dialectic/internal/logging"
	"dialectic/internal/naming"
	"dialectic/internal/types"
)

// MaxContinuations bounds the continuation calls made beyond the
// first provider call; at most MaxContinuations+1 calls total. A hard
// cap, not configurable per call - it bounds cost and latency.
const MaxContinuations = 4

const continuePrompt = "Continue exactly where you left off. Do not repeat any text you have already produced."

// Engine drives the provider continuation loop for one job and
// persists the combined contribution at its canonical path.
type Engine struct {
	adapter types.ModelAdapter
	store   types.ContributionStore
	model   types.ModelConfig
	counter *budget.TokenCounter
}

// NewEngine creates an execution engine bound to one adapter, model,
// and contribution store.
func NewEngine(adapter types.ModelAdapter, store types.ContributionStore, model types.ModelConfig) *Engine {
	return &Engine{
		adapter: adapter,
		store:   store,
		model:   model,
		counter: budget.NewTokenCounter(),
	}
}

// ExecutionResult reports one completed execution.
type ExecutionResult struct {
	Contribution types.Contribution
	StoragePath  string
	Calls        int
}

// ExecuteModelCallAndSave runs the bounded continuation loop against
// the adapter, accumulating content and token usage, then writes the
// combined contribution.
//
// The final finish reason is reported as "stop" whenever the loop
// terminates on its own terms - including when the continuation cap
// cut off a still-length-limited generation. Callers that must
// distinguish natural completion from cap truncation read the
// Truncated flag, not the finish reason.
func (e *Engine) ExecuteModelCallAndSave(ctx context.Context, task *PreparedTask, seed types.AdapterRequest) (*ExecutionResult, error) {
	// Derive the output path before calling anyone: a naming defect
	// should fail the job before tokens are spent.
	path, err := naming.ConstructStoragePath(task.PathContext)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", task.Job.ID, err)
	}

	var (
		content   strings.Builder
		usage     types.TokenUsage
		calls     int
		truncated bool
		req       = seed
	)

	for {
		// Pre-flight the fully assembled prompt against the model's
		// input window; compress with the defined strategy or fail -
		// never a silent truncation.
		compressed, err := budget.CompressRequest(e.counter, req, e.model)
		if err != nil {
			return nil, fmt.Errorf("job %s: %w", task.Job.ID, err)
		}

		resp, err := e.adapter.SendMessage(ctx, compressed, e.model.APIIdentifier)
		if err != nil {
			return nil, fmt.Errorf("job %s: provider call %d: %w", task.Job.ID, calls+1, err)
		}
		calls++

		content.WriteString(resp.Content)
		usage.Add(resp.Usage)

		if resp.FinishReason != types.FinishLength {
			break
		}
		if calls > MaxContinuations {
			truncated = true
			logging.Pipeline("job %s: continuation cap reached after %d calls", task.Job.ID, calls)
			break
		}

		req.History = append(req.History, types.ChatMessage{Role: "assistant", Content: resp.Content})
		req.Message = continuePrompt
		logging.PipelineDebug("job %s: continuing after length finish (call %d)", task.Job.ID, calls)
	}

	if calls == 0 {
		// The loop always executes at least once; reaching here is a
		// programming error, not a retryable condition.
		return nil, &types.InvariantError{Invariant: fmt.Sprintf("job %s produced zero provider responses", task.Job.ID)}
	}

	if err := e.store.Write(ctx, path, []byte(content.String())); err != nil {
		if types.IsCollision(err) {
			logging.PipelineError("job %s: path collision at %s - naming defect", task.Job.ID, path)
		}
		return nil, fmt.Errorf("job %s: persisting contribution: %w", task.Job.ID, err)
	}

	contributionID := task.Payload.TargetContributionID
	if contributionID == "" {
		contributionID = uuid.NewString()
	}

	result := &ExecutionResult{
		StoragePath: path,
		Calls:       calls,
		Contribution: types.Contribution{
			ID:                contributionID,
			SessionID:         task.Payload.SessionID,
			StageSlug:         task.Payload.StageSlug,
			ModelSlug:         task.Payload.ModelSlug,
			ContributionType:  task.Payload.OutputType,
			StoragePath:       path,
			Usage:             usage,
			FinishReason:      types.FinishStop,
			Truncated:         truncated,
			ContinuationCalls: calls - 1,
			CreatedAt:         time.Now().UTC(),
		},
	}

	logging.Pipeline("job %s: saved %s (%d call(s), %d tokens, truncated=%v)",
		task.Job.ID, path, calls, usage.TotalTokens, truncated)
	return result, nil
}
