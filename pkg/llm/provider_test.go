package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 模拟供应商实现，用于测试。
type mockProvider struct {
	name string
}

func (m *mockProvider) Name() string { return m.name }

func (m *mockProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{0.1, 0.2, 0.3}
	}
	return result, nil
}

func (m *mockProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "mock response", nil
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "mock generated text", nil
}

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("test-provider", func(config map[string]any) (Provider, error) {
		name := "test-provider"
		if n, ok := config["name"].(string); ok {
			name = n
		}
		return &mockProvider{name: name}, nil
	})

	p, err := NewProvider("test-provider", map[string]any{"name": "custom-name"})
	require.NoError(t, err)
	assert.Equal(t, "custom-name", p.Name())

	emb, err := NewEmbeddingProvider("test-provider", nil)
	require.NoError(t, err)
	vec, err := emb.EmbedSingle(context.Background(), "x")
	require.NoError(t, err)
	assert.Len(t, vec, 3)

	chat, err := NewChatProvider("test-provider", nil)
	require.NoError(t, err)
	out, err := chat.Generate(context.Background(), "prompt", "")
	require.NoError(t, err)
	assert.Equal(t, "mock generated text", out)

	assert.Contains(t, ListProviders(), "test-provider")
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("unknown-provider", nil)
	assert.Error(t, err)

	_, err = NewEmbeddingProvider("unknown-provider", nil)
	assert.ErrorContains(t, err, "embedding")

	_, err = NewChatProvider("unknown-provider", nil)
	assert.ErrorContains(t, err, "chat")
}
