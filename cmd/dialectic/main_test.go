package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dialectic/internal/config"
	"dialectic/internal/types"
)

func TestRunInitWritesStarterConfig(t *testing.T) {
	configPath = filepath.Join(t.TempDir(), ".dialectic", "config.json")

	require.NoError(t, runInit(&cobra.Command{}, nil))

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "gpt-4o")

	// A second init must refuse to clobber the existing file.
	require.Error(t, runInit(&cobra.Command{}, nil))
}

func TestAdapterResolver(t *testing.T) {
	cfg = config.Default()
	cfg.Models["gpt-x"] = types.ModelConfig{
		Provider:            "openai",
		APIIdentifier:       "gpt-4o",
		ContextWindowTokens: 128000,
	}
	cfg.Providers["openai"] = config.ProviderConfig{APIKey: "sk-test"}

	resolve := adapterResolver()

	adapter, model, err := resolve("gpt-x")
	require.NoError(t, err)
	assert.NotNil(t, adapter)
	assert.Equal(t, "gpt-4o", model.APIIdentifier)

	_, _, err = resolve("unconfigured")
	require.Error(t, err)
}

func TestAdapterResolverDummyNeedsNoProviderConfig(t *testing.T) {
	cfg = config.Default()
	cfg.Models["test-model"] = types.ModelConfig{
		Provider:            "dummy",
		APIIdentifier:       "dummy-model",
		ContextWindowTokens: 1000,
	}

	adapter, _, err := adapterResolver()("test-model")
	require.NoError(t, err)
	assert.NotNil(t, adapter)
}
