package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatReq struct {
	Message   string `json:"message" validate:"required,notblank,max=20"`
	SessionID string `json:"session_id" validate:"session_id"`
}

func TestValidatePasses(t *testing.T) {
	assert.Nil(t, Struct(&chatReq{Message: "hi"}, LangEN))
	assert.Nil(t, Struct(&chatReq{Message: "hi", SessionID: "api_session_20240101_000000_abcd1234"}, LangEN))
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	errs := Struct(&chatReq{Message: "   "}, LangEN)
	require.NotNil(t, errs)
	assert.Equal(t, "message", errs.Errors[0].Field)
	assert.Equal(t, "notblank", errs.Errors[0].Tag)
	assert.Contains(t, errs.First(), "message")
}

func TestValidateMaxAndSessionID(t *testing.T) {
	errs := Struct(&chatReq{Message: strings.Repeat("a", 21), SessionID: "bad id!"}, LangEN)
	require.NotNil(t, errs)
	assert.Len(t, errs.Errors, 2)
	assert.Contains(t, errs.Error(), "validation failed")
}

func TestValidateChinese(t *testing.T) {
	errs := Struct(&chatReq{}, LangZH)
	require.NotNil(t, errs)
	assert.Contains(t, errs.First(), "message")
	assert.NotEqual(t, Struct(&chatReq{}, LangEN).First(), errs.First())
}
