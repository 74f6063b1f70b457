package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"q":"hi"}`, string(body))
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"answer":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(time.Second, 2)
	c.backoff = time.Millisecond

	var out struct {
		Answer string `json:"answer"`
	}
	err := c.PostJSON(context.Background(), srv.URL, nil, map[string]string{"q": "hi"}, &out)
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Answer)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoJSONClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad input", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3)
	err := c.PostJSON(context.Background(), srv.URL, map[string]string{"Authorization": "Bearer x"}, struct{}{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 1)
	c.backoff = time.Millisecond
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
