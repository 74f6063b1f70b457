package response

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc, header map[string]string) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	r := gin.New()
	r.GET("/", func(c *gin.Context) {
		c.Set(common.ContextKeyRequestID, "req-1")
		h(c)
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestOK(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { OK(c, map[string]int{"n": 1}) }, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, body.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotZero(t, body.Timestamp)
}

func TestFailErrno(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Fail(c, errors.ErrDocQARebuildInProgress) }, map[string]string{"Accept-Language": "zh-CN"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, errors.ErrDocQARebuildInProgress.Code, body.Code)
	assert.Equal(t, "索引正在重建", body.Message)
}

func TestFailPlainError(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Fail(c, stderrors.New("disk on fire")) }, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errors.ErrInternal.Code, body.Code)
	assert.NotContains(t, body.Message, "disk")
}
