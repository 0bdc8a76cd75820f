// Package provider implements the uniform model adapter contract:
// one constructor shape, one request/response shape, one normalized
// finish-reason vocabulary across OpenAI-style, Anthropic-style,
// Google-style, and the no-network dummy provider. Provider quirks
// (message alternation, system-prompt placement, stop-signal naming)
// stay inside the adapter boundary.
package provider

import (
	"net/http"
	"time"

	"dialectic/internal/budget"
	"dialectic/internal/logging"
	"dialectic/internal/types"
)

// Provider identifies a concrete adapter implementation.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGoogle    Provider = "google"
	ProviderDummy     Provider = "dummy"
)

const defaultTimeout = 120 * time.Second

// Options is the standard construction bundle every adapter accepts:
// API key, logger, and model configuration. BaseURL and HTTPClient
// exist for tests and self-hosted gateways.
type Options struct {
	APIKey     string
	Logger     *logging.Logger
	Model      types.ModelConfig
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	timeout := o.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

func (o Options) logger() *logging.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.Get(logging.CategoryProvider)
}

// mergeMessages combines history with the new message without
// duplicating turns: if the newest history entry already is the new
// user message, it is not appended again.
func mergeMessages(req types.AdapterRequest) []types.ChatMessage {
	merged := append([]types.ChatMessage(nil), req.History...)
	if req.Message == "" {
		return merged
	}
	if n := len(merged); n > 0 {
		last := merged[n-1]
		if last.Role == "user" && last.Content == req.Message {
			return merged
		}
	}
	return append(merged, types.ChatMessage{Role: "user", Content: req.Message})
}

// preflight enforces the input token budget before any network call.
// An over-budget prompt is a critical error here, never a truncation.
func preflight(tc *budget.TokenCounter, req types.AdapterRequest, model types.ModelConfig) error {
	return budget.CheckWindow(tc, req, model)
}
