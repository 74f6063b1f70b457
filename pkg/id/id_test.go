package id

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionIDFormat(t *testing.T) {
	now := time.Date(2024, 1, 2, 15, 4, 5, 0, time.Local)
	sid := NewSessionID(now)

	assert.Regexp(t, regexp.MustCompile(`^api_session_20240102_150405_[0-9a-f]{8}$`), sid)
	assert.NotEqual(t, sid, NewSessionID(now))
}

func TestNewRequestIDMonotonic(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()
	assert.Len(t, a, 26)
	assert.Less(t, a, b)
}
