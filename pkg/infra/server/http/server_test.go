package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	options "github.com/kart-io/docqa/pkg/options/http"
)

func newTestServer() *Server {
	opts := options.NewOptions()
	opts.Addr = "127.0.0.1:0"
	opts.Mode = gin.TestMode
	return NewServer(opts)
}

func TestNoRouteUsesEnvelope(t *testing.T) {
	s := newTestServer()
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestStartServeStop(t *testing.T) {
	s := newTestServer()
	s.Engine().GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	require.NoError(t, s.Start(context.Background()))
	defer func() { require.NoError(t, s.Stop(context.Background())) }()

	resp, err := http.Get("http://" + s.Addr() + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "pong", string(body))
}
