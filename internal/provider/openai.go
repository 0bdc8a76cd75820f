package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"dialectic/internal/budget"
	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// OpenAIAdapter speaks the chat-completions wire format.
type OpenAIAdapter struct {
	apiKey     string
	baseURL    string
	model      types.ModelConfig
	httpClient *http.Client
	logger     *logging.Logger
	counter    *budget.TokenCounter
}

// NewOpenAIAdapter creates an adapter for an OpenAI-style endpoint.
func NewOpenAIAdapter(opts Options) *OpenAIAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIAdapter{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      opts.Model,
		httpClient: opts.httpClient(),
		logger:     opts.logger(),
		counter:    budget.NewTokenCounter(),
	}
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// SendMessage implements types.ModelAdapter.
func (a *OpenAIAdapter) SendMessage(ctx context.Context, req types.AdapterRequest, modelID string) (*types.AdapterResponse, error) {
	if a.apiKey == "" {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: "API key not configured"}
	}
	if err := preflight(a.counter, req, a.model); err != nil {
		return nil, err
	}

	messages := make([]openAIMessage, 0, len(req.History)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range mergeMessages(req) {
		messages = append(messages, openAIMessage{Role: m.Role, Content: m.Content})
	}

	body := openAIRequest{
		Model:     modelID,
		Messages:  messages,
		MaxTokens: maxOutputTokens(req, a.model),
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: "failed to read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: "failed to parse response: " + err.Error()}
	}
	if parsed.Error != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: "no completion returned"}
	}

	choice := parsed.Choices[0]
	a.logger.Debug("openai completion: model=%s finish=%s tokens=%d",
		parsed.Model, choice.FinishReason, parsed.Usage.TotalTokens)

	return &types.AdapterResponse{
		Content:      choice.Message.Content,
		FinishReason: normalizeOpenAIFinish(choice.FinishReason),
		Model:        parsed.Model,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
	}, nil
}

// ListModels implements types.ModelAdapter.
func (a *OpenAIAdapter) ListModels(ctx context.Context) ([]types.ProviderModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed openAIModelsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderOpenAI), Message: "failed to parse response: " + err.Error()}
	}

	models := make([]types.ProviderModelInfo, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, types.ProviderModelInfo{ID: m.ID})
	}
	return models, nil
}

func normalizeOpenAIFinish(reason string) types.FinishReason {
	switch reason {
	case "stop":
		return types.FinishStop
	case "length":
		return types.FinishLength
	case "tool_calls", "function_call":
		return types.FinishToolCalls
	default:
		return types.FinishUnknown
	}
}

func maxOutputTokens(req types.AdapterRequest, model types.ModelConfig) int {
	if req.MaxOutputTokens > 0 {
		return req.MaxOutputTokens
	}
	return model.MaxOutputTokens
}
