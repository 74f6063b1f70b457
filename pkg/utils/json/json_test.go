package json

import (
	"bytes"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type exchange struct {
	SessionID string `json:"session_id"`
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	ExpiresAt int64  `json:"expires_at"`
}

func TestMarshalUnmarshal(t *testing.T) {
	in := exchange{SessionID: "s1", Question: "年假有几天？", Answer: "15 days", ExpiresAt: 1700000000}

	data, err := Marshal(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"session_id":"s1"`)

	var out exchange
	require.NoError(t, Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEncoderDecoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(&buf).Encode(map[string]int{"a": 1}))

	var out map[string]int
	require.NoError(t, NewDecoder(&buf).Decode(&out))
	assert.Equal(t, 1, out["a"])
}

func TestIsUsingSonic(t *testing.T) {
	want := runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64"
	assert.Equal(t, want, IsUsingSonic())
}
