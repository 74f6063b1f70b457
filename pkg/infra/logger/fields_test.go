package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithFields(t *testing.T) {
	ctx := context.Background()
	assert.Nil(t, Fields(ctx))

	ctx = WithRequestID(ctx, "req-1")
	child := WithSessionID(ctx, "api_session_x")
	child = WithFields(child, "agent", "SQL Assistant", 42, "ignored", "dangling")

	assert.Equal(t, []interface{}{"request_id", "req-1"}, Fields(ctx), "parent context is not modified")
	assert.Equal(t, []interface{}{"agent", "SQL Assistant", "request_id", "req-1", "session_id", "api_session_x"}, Fields(child))
	assert.NotNil(t, L(child))
}

func TestEmptyValuesIgnored(t *testing.T) {
	ctx := WithSessionID(WithRequestID(context.Background(), ""), "")
	assert.Nil(t, Fields(ctx))
}
