package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dialectic/internal/budget"
	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// AnthropicAdapter speaks the messages wire format. The provider
// requires strict user/assistant alternation starting with a user
// turn, and takes the system prompt as a separate top-level field;
// both constraints are enforced here, not pushed onto callers.
type AnthropicAdapter struct {
	apiKey     string
	baseURL    string
	model      types.ModelConfig
	httpClient *http.Client
	logger     *logging.Logger
	counter    *budget.TokenCounter
}

// NewAnthropicAdapter creates an adapter for an Anthropic-style endpoint.
func NewAnthropicAdapter(opts Options) *AnthropicAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com/v1"
	}
	return &AnthropicAdapter{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      opts.Model,
		httpClient: opts.httpClient(),
		logger:     opts.logger(),
		counter:    budget.NewTokenCounter(),
	}
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// alternatingMessages coerces the merged history into strict
// user/assistant alternation: consecutive same-role turns are joined
// with a blank line, and a leading assistant turn gets a synthetic
// user opener.
func alternatingMessages(merged []types.ChatMessage) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(merged))
	for _, m := range merged {
		role := m.Role
		if role != "assistant" {
			role = "user"
		}
		if n := len(out); n > 0 && out[n-1].Role == role {
			out[n-1].Content = out[n-1].Content + "\n\n" + m.Content
			continue
		}
		out = append(out, anthropicMessage{Role: role, Content: m.Content})
	}
	if len(out) > 0 && out[0].Role == "assistant" {
		out = append([]anthropicMessage{{Role: "user", Content: "(continue)"}}, out...)
	}
	return out
}

// SendMessage implements types.ModelAdapter.
func (a *AnthropicAdapter) SendMessage(ctx context.Context, req types.AdapterRequest, modelID string) (*types.AdapterResponse, error) {
	if a.apiKey == "" {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: "API key not configured"}
	}
	if err := preflight(a.counter, req, a.model); err != nil {
		return nil, err
	}

	maxTokens := maxOutputTokens(req, a.model)
	if maxTokens == 0 {
		maxTokens = 4096 // max_tokens is mandatory on this API
	}

	body := anthropicRequest{
		Model:     modelID,
		MaxTokens: maxTokens,
		System:    req.SystemPrompt,
		Messages:  alternatingMessages(mergeMessages(req)),
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: "failed to read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: "failed to parse response: " + err.Error()}
	}
	if parsed.Error != nil {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: parsed.Error.Message}
	}
	if len(parsed.Content) == 0 {
		return nil, &types.ProviderError{Provider: string(ProviderAnthropic), Message: "no completion returned"}
	}

	var text strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	a.logger.Debug("anthropic completion: model=%s stop=%s in=%d out=%d",
		parsed.Model, parsed.StopReason, parsed.Usage.InputTokens, parsed.Usage.OutputTokens)

	return &types.AdapterResponse{
		Content:      text.String(),
		FinishReason: normalizeAnthropicStop(parsed.StopReason),
		Model:        parsed.Model,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens:      parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		},
	}, nil
}

// ListModels implements types.ModelAdapter. The messages API has no
// model-listing endpoint usable with every key tier, so the adapter
// reports its configured model.
func (a *AnthropicAdapter) ListModels(ctx context.Context) ([]types.ProviderModelInfo, error) {
	return []types.ProviderModelInfo{{
		ID:                  a.model.APIIdentifier,
		ContextWindowTokens: a.model.ContextWindowTokens,
	}}, nil
}

func normalizeAnthropicStop(reason string) types.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return types.FinishStop
	case "max_tokens":
		return types.FinishLength
	case "tool_use":
		return types.FinishToolCalls
	default:
		return types.FinishUnknown
	}
}
