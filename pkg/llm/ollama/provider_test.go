package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/utils/json"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRetries = 0
	return NewProviderWithConfig(cfg)
}

func TestGeneratePassesOptions(t *testing.T) {
	var req generateRequest
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &req))
		_, _ = w.Write([]byte(`{"response":"answer","done":true}`))
	})

	out, err := p.Generate(context.Background(), "prompt", "sys")
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, "sys", req.System)
	assert.InDelta(t, 0.1, req.Options.Temperature, 1e-9)
	assert.Equal(t, 2000, req.Options.NumPredict)
	assert.False(t, req.Stream)
}

func TestEmbedCountMismatch(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embeddings":[[1,2]]}`))
	})

	_, err := p.Embed(context.Background(), []string{"a", "b"})
	assert.Error(t, err)

	vec, err := p.EmbedSingle(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)
}

func TestPing(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	assert.NoError(t, p.Ping(context.Background()))
}
