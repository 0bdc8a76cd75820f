package provider

import (
	"fmt"

	"dialectic/internal/types"
)

// constructors maps a provider identifier to its adapter constructor.
// Adding a provider means one entry here plus an adapter implementing
// types.ModelAdapter; nothing else changes.
var constructors = map[Provider]func(Options) types.ModelAdapter{
	ProviderOpenAI:    func(o Options) types.ModelAdapter { return NewOpenAIAdapter(o) },
	ProviderAnthropic: func(o Options) types.ModelAdapter { return NewAnthropicAdapter(o) },
	ProviderGoogle:    func(o Options) types.ModelAdapter { return NewGoogleAdapter(o) },
	ProviderDummy:     func(o Options) types.ModelAdapter { return NewDummyAdapter(o) },
}

// NewAdapter constructs the adapter registered for the given provider
// with the standard options bundle.
func NewAdapter(p Provider, opts Options) (types.ModelAdapter, error) {
	construct, ok := constructors[p]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", p)
	}
	return construct(opts), nil
}

// Providers returns the registered provider identifiers.
func Providers() []Provider {
	out := make([]Provider, 0, len(constructors))
	for p := range constructors {
		out = append(out, p)
	}
	return out
}
