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

// GoogleAdapter speaks the generateContent wire format. Roles are
// "user"/"model" rather than "user"/"assistant", and the system prompt
// travels as a systemInstruction block.
type GoogleAdapter struct {
	apiKey     string
	baseURL    string
	model      types.ModelConfig
	httpClient *http.Client
	logger     *logging.Logger
	counter    *budget.TokenCounter
}

// NewGoogleAdapter creates an adapter for a Google-style endpoint.
func NewGoogleAdapter(opts Options) *GoogleAdapter {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	return &GoogleAdapter{
		apiKey:     opts.APIKey,
		baseURL:    baseURL,
		model:      opts.Model,
		httpClient: opts.httpClient(),
		logger:     opts.logger(),
		counter:    budget.NewTokenCounter(),
	}
}

type googlePart struct {
	Text string `json:"text,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googleGenerationConfig struct {
	MaxOutputTokens int `json:"maxOutputTokens,omitempty"`
}

type googleRequest struct {
	Contents          []googleContent        `json:"contents"`
	SystemInstruction *googleContent         `json:"systemInstruction,omitempty"`
	GenerationConfig  googleGenerationConfig `json:"generationConfig,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content struct {
			Parts []googlePart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error,omitempty"`
}

type googleModelsResponse struct {
	Models []struct {
		Name            string `json:"name"`
		DisplayName     string `json:"displayName"`
		InputTokenLimit int    `json:"inputTokenLimit"`
	} `json:"models"`
}

// SendMessage implements types.ModelAdapter.
func (a *GoogleAdapter) SendMessage(ctx context.Context, req types.AdapterRequest, modelID string) (*types.AdapterResponse, error) {
	if a.apiKey == "" {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: "API key not configured"}
	}
	if err := preflight(a.counter, req, a.model); err != nil {
		return nil, err
	}

	contents := make([]googleContent, 0, len(req.History)+1)
	for _, m := range mergeMessages(req) {
		role := m.Role
		if role == "assistant" {
			role = "model"
		} else {
			role = "user"
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	body := googleRequest{
		Contents:         contents,
		GenerationConfig: googleGenerationConfig{MaxOutputTokens: maxOutputTokens(req, a.model)},
	}
	if req.SystemPrompt != "" {
		body.SystemInstruction = &googleContent{Parts: []googlePart{{Text: req.SystemPrompt}}}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.baseURL, modelID, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: "failed to read response: " + err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: "failed to parse response: " + err.Error()}
	}
	if parsed.Error != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: parsed.Error.Message}
	}
	if len(parsed.Candidates) == 0 {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: "no completion returned"}
	}

	candidate := parsed.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		text.WriteString(part.Text)
	}

	a.logger.Debug("google completion: model=%s finish=%s tokens=%d",
		modelID, candidate.FinishReason, parsed.UsageMetadata.TotalTokenCount)

	return &types.AdapterResponse{
		Content:      text.String(),
		FinishReason: normalizeGoogleFinish(candidate.FinishReason),
		Model:        modelID,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.UsageMetadata.PromptTokenCount,
			CompletionTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      parsed.UsageMetadata.TotalTokenCount,
		},
	}, nil
}

// ListModels implements types.ModelAdapter.
func (a *GoogleAdapter) ListModels(ctx context.Context) ([]types.ProviderModelInfo, error) {
	url := fmt.Sprintf("%s/models?key=%s", a.baseURL, a.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: err.Error()}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	var parsed googleModelsResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &types.ProviderError{Provider: string(ProviderGoogle), Message: "failed to parse response: " + err.Error()}
	}

	models := make([]types.ProviderModelInfo, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		id := strings.TrimPrefix(m.Name, "models/")
		models = append(models, types.ProviderModelInfo{
			ID:                  id,
			DisplayName:         m.DisplayName,
			ContextWindowTokens: m.InputTokenLimit,
		})
	}
	return models, nil
}

func normalizeGoogleFinish(reason string) types.FinishReason {
	switch reason {
	case "STOP":
		return types.FinishStop
	case "MAX_TOKENS":
		return types.FinishLength
	default:
		return types.FinishUnknown
	}
}
