package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
)

func TestMakeAndParseCode(t *testing.T) {
	code := MakeCode(ServiceDocQA, CategoryConflict, 1)
	assert.Equal(t, 2005001, code)

	s, c, q := ParseCode(code)
	assert.Equal(t, ServiceDocQA, s)
	assert.Equal(t, CategoryConflict, c)
	assert.Equal(t, 1, q)
	assert.True(t, IsClientError(code))
	assert.False(t, IsClientError(ErrDocQAGenerationFailed.Code))
}

func TestWithCauseKeepsIdentity(t *testing.T) {
	cause := stderrors.New("boom")
	err := ErrDocQAGenerationFailed.WithCause(cause)

	assert.ErrorIs(t, err, ErrDocQAGenerationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, http.StatusBadGateway, err.HTTPStatus())
	assert.Empty(t, ErrDocQAGenerationFailed.cause)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("outer: %w", ErrDocQANoAgents)
	assert.Equal(t, ErrDocQANoAgents.Code, FromError(wrapped).Code)
	assert.True(t, IsCode(wrapped, ErrDocQANoAgents.Code))

	plain := FromError(stderrors.New("x"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
}

func TestMessageLanguage(t *testing.T) {
	assert.Equal(t, "索引正在重建", ErrDocQARebuildInProgress.Message("zh-CN"))
	assert.Equal(t, "Index rebuild already in progress", ErrDocQARebuildInProgress.Message("en"))
	assert.Equal(t, "custom", ErrInvalidParam.WithMessage("custom").Message("en"))
}

func TestRegisterDuplicatePanics(t *testing.T) {
	assert.Panics(t, func() {
		Register(New(ErrInternal.Code, 500, codes.Internal, "dup", ""))
	})
	e, ok := Lookup(ErrDocQAInvariant.Code)
	assert.True(t, ok)
	assert.Equal(t, ErrDocQAInvariant, e)
}
