package provider

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/types"
)

// The behavioral contract every adapter must honor, exercised
// identically against each one with a mock transport. Provider
// specific formatting lives in the per-adapter test files.

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func testModel() types.ModelConfig {
	return types.ModelConfig{
		Provider:            "test",
		APIIdentifier:       "test-model",
		ContextWindowTokens: 2000,
	}
}

// contractCase wires one adapter into the shared suite: how to build
// it, and a canned wire response meaning "generation hit the length
// cap, prompt=10 completion=5".
type contractCase struct {
	name       string
	usesHTTP   bool
	build      func(t *testing.T, rt http.RoundTripper, model types.ModelConfig) types.ModelAdapter
	lengthBody string
}

func contractCases() []contractCase {
	return []contractCase{
		{
			name:     "openai",
			usesHTTP: true,
			build: func(t *testing.T, rt http.RoundTripper, model types.ModelConfig) types.ModelAdapter {
				return NewOpenAIAdapter(Options{
					APIKey:     "test-key",
					Model:      model,
					HTTPClient: &http.Client{Transport: rt},
				})
			},
			lengthBody: `{"id":"r1","model":"test-model","choices":[{"index":0,"message":{"role":"assistant","content":"partial output"},"finish_reason":"length"}],"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`,
		},
		{
			name:     "anthropic",
			usesHTTP: true,
			build: func(t *testing.T, rt http.RoundTripper, model types.ModelConfig) types.ModelAdapter {
				return NewAnthropicAdapter(Options{
					APIKey:     "test-key",
					Model:      model,
					HTTPClient: &http.Client{Transport: rt},
				})
			},
			lengthBody: `{"id":"r1","model":"test-model","content":[{"type":"text","text":"partial output"}],"stop_reason":"max_tokens","usage":{"input_tokens":10,"output_tokens":5}}`,
		},
		{
			name:     "google",
			usesHTTP: true,
			build: func(t *testing.T, rt http.RoundTripper, model types.ModelConfig) types.ModelAdapter {
				return NewGoogleAdapter(Options{
					APIKey:     "test-key",
					Model:      model,
					HTTPClient: &http.Client{Transport: rt},
				})
			},
			lengthBody: `{"candidates":[{"content":{"parts":[{"text":"partial output"}],"role":"model"},"finishReason":"MAX_TOKENS"}],"usageMetadata":{"promptTokenCount":10,"candidatesTokenCount":5,"totalTokenCount":15}}`,
		},
		{
			name:     "dummy",
			usesHTTP: false,
			build: func(t *testing.T, rt http.RoundTripper, model types.ModelConfig) types.ModelAdapter {
				a := NewDummyAdapter(Options{Model: model})
				a.Script = []types.AdapterResponse{{
					Content:      "partial output",
					FinishReason: types.FinishLength,
					Usage:        types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
				}}
				return a
			},
		},
	}
}

func TestContract_OverBudgetFailsBeforeAnyRequest(t *testing.T) {
	for _, tc := range contractCases() {
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				t.Fatal("request must not be sent when the prompt exceeds the input budget")
				return nil, nil
			})

			model := testModel()
			model.ContextWindowTokens = 50
			adapter := tc.build(t, rt, model)

			_, err := adapter.SendMessage(context.Background(), types.AdapterRequest{
				Message: strings.Repeat("x", 4000),
			}, "test-model")
			require.Error(t, err)
			assert.True(t, types.IsBudgetExceeded(err), "want budget error, got %v", err)
		})
	}
}

func TestContract_NormalizesLengthFinishAndUsage(t *testing.T) {
	for _, tc := range contractCases() {
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return jsonResponse(tc.lengthBody), nil
			})

			adapter := tc.build(t, rt, testModel())
			resp, err := adapter.SendMessage(context.Background(), types.AdapterRequest{
				Message: "keep going",
			}, "test-model")
			require.NoError(t, err)

			assert.Equal(t, "partial output", resp.Content)
			assert.Equal(t, types.FinishLength, resp.FinishReason)
			assert.Equal(t, 10, resp.Usage.PromptTokens)
			assert.Equal(t, 5, resp.Usage.CompletionTokens)
			assert.Equal(t, 15, resp.Usage.TotalTokens)
		})
	}
}

func TestContract_NoDuplicatedFinalMessage(t *testing.T) {
	const marker = "UNIQUE-FINAL-MESSAGE"

	for _, tc := range contractCases() {
		if !tc.usesHTTP {
			continue
		}
		t.Run(tc.name, func(t *testing.T) {
			var sent []byte
			rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				var err error
				sent, err = io.ReadAll(r.Body)
				require.NoError(t, err)
				return jsonResponse(tc.lengthBody), nil
			})

			adapter := tc.build(t, rt, testModel())
			_, err := adapter.SendMessage(context.Background(), types.AdapterRequest{
				History: []types.ChatMessage{
					{Role: "assistant", Content: "previous answer"},
					{Role: "user", Content: marker},
				},
				Message: marker,
			}, "test-model")
			require.NoError(t, err)

			assert.Equal(t, 1, bytes.Count(sent, []byte(marker)),
				"final message must appear exactly once in the wire request")
		})
	}
}

func TestContract_ProviderHTTPErrorSurfacesAsProviderError(t *testing.T) {
	for _, tc := range contractCases() {
		if !tc.usesHTTP {
			continue
		}
		t.Run(tc.name, func(t *testing.T) {
			rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				return &http.Response{
					StatusCode: http.StatusInternalServerError,
					Body:       io.NopCloser(strings.NewReader(`{"error":"upstream broke"}`)),
				}, nil
			})

			adapter := tc.build(t, rt, testModel())
			_, err := adapter.SendMessage(context.Background(), types.AdapterRequest{Message: "hi"}, "test-model")
			require.Error(t, err)

			var pe *types.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, http.StatusInternalServerError, pe.StatusCode)
		})
	}
}

func TestFactory_RegistersEveryProvider(t *testing.T) {
	for _, p := range []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGoogle, ProviderDummy} {
		adapter, err := NewAdapter(p, Options{APIKey: "k", Model: testModel()})
		require.NoError(t, err, "provider %s", p)
		assert.NotNil(t, adapter)
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	_, err := NewAdapter("no-such-provider", Options{})
	assert.Error(t, err)
}
