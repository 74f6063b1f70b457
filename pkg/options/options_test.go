package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "session.", Join("session"))
	assert.Equal(t, "a.b.", Join("a", "b"))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "", Redact(""))
	assert.Equal(t, "[REDACTED]", Redact("sk-123"))
}
