package provider

import (
	"context"
	"sync"

	"dialectic/internal/budget"
	"dialectic/internal/types"
)

// DummyAdapter is the no-network provider. It honors the full adapter
// contract - budget preflight, finish-reason vocabulary, usage
// accounting - while serving scripted responses, which makes it the
// reference implementation for the shared contract suite and the
// engine tests.
type DummyAdapter struct {
	mu      sync.Mutex
	model   types.ModelConfig
	counter *budget.TokenCounter

	// Script is consumed one entry per SendMessage call; when it runs
	// out the adapter keeps returning the last entry.
	Script []types.AdapterResponse
	// Err, when set, is returned by every SendMessage call.
	Err error

	calls []types.AdapterRequest
}

// NewDummyAdapter creates an adapter that echoes scripted responses.
func NewDummyAdapter(opts Options) *DummyAdapter {
	return &DummyAdapter{
		model:   opts.Model,
		counter: budget.NewTokenCounter(),
	}
}

// SendMessage implements types.ModelAdapter.
func (a *DummyAdapter) SendMessage(ctx context.Context, req types.AdapterRequest, modelID string) (*types.AdapterResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := preflight(a.counter, req, a.model); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.calls = append(a.calls, req)
	if a.Err != nil {
		return nil, a.Err
	}

	var resp types.AdapterResponse
	switch {
	case len(a.Script) == 0:
		resp = types.AdapterResponse{
			Content:      "dummy response",
			FinishReason: types.FinishStop,
			Model:        modelID,
			Usage:        types.TokenUsage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
		}
	case len(a.calls) <= len(a.Script):
		resp = a.Script[len(a.calls)-1]
	default:
		resp = a.Script[len(a.Script)-1]
	}
	if resp.Model == "" {
		resp.Model = modelID
	}
	return &resp, nil
}

// ListModels implements types.ModelAdapter.
func (a *DummyAdapter) ListModels(ctx context.Context) ([]types.ProviderModelInfo, error) {
	return []types.ProviderModelInfo{{ID: "dummy-model", DisplayName: "Dummy", ContextWindowTokens: a.model.ContextWindowTokens}}, nil
}

// Calls returns a copy of every request seen so far.
func (a *DummyAdapter) Calls() []types.AdapterRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]types.AdapterRequest(nil), a.calls...)
}
