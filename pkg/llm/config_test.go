package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigHelpers(t *testing.T) {
	m := map[string]any{
		"s":   "value",
		"f":   0.1,
		"i":   float64(2000),
		"d":   "45s",
		"dd":  2 * time.Second,
		"bad": struct{}{},
	}

	assert.Equal(t, "value", ConfigString(m, "s", "x"))
	assert.Equal(t, "x", ConfigString(m, "missing", "x"))
	assert.InDelta(t, 0.1, ConfigFloat(m, "f", 1), 1e-9)
	assert.Equal(t, 2000, ConfigInt(m, "i", 0))
	assert.Equal(t, 45*time.Second, ConfigDuration(m, "d", time.Second))
	assert.Equal(t, 2*time.Second, ConfigDuration(m, "dd", time.Second))
	assert.Equal(t, time.Second, ConfigDuration(m, "bad", time.Second))
}
