package factory

import (
	"testing"

	"bonfire-agent/pkg/llm/asione"
	"bonfire-agent/pkg/llm/ollama"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLLMProvider(t *testing.T) {
	p, err := NewLLMProvider(ProviderConfig{Type: ProviderASIOne, APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &asione.Provider{}, p)

	p, err = NewLLMProvider(ProviderConfig{Type: ProviderOllama, Model: "llama3"})
	require.NoError(t, err)
	assert.IsType(t, &ollama.OllamaProvider{}, p)

	_, err = NewLLMProvider(ProviderConfig{Type: ProviderASIOne})
	assert.Error(t, err, "missing API key")

	_, err = NewLLMProvider(ProviderConfig{Type: "gpt-local"})
	assert.Error(t, err)
}
