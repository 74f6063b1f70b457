// Package response 定义统一的 API 响应结构以及 gin 写出辅助函数。
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	"github.com/kart-io/docqa/pkg/utils/errors"
)

// Response 统一响应结构，code 为 0 表示成功。
type Response struct {
	Code      int         `json:"code"`
	HTTPCode  int         `json:"http_code,omitempty"`
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"`
}

// Success 构造成功响应。
func Success(data interface{}) *Response {
	return &Response{Code: 0, HTTPCode: http.StatusOK, Message: "success", Data: data}
}

// Err 由 Errno 构造错误响应。
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{Code: e.Code, HTTPCode: e.HTTPStatus(), Message: e.MessageEN}
}

// ErrWithLang 按语言选择错误消息。
func ErrWithLang(e *errors.Errno, lang string) *Response {
	r := Err(e)
	if e != nil {
		r.Message = e.Message(lang)
	}
	return r
}

// IsSuccess 判断是否成功。
func (r *Response) IsSuccess() bool { return r.Code == 0 }

// OK 写出成功响应。
func OK(c *gin.Context, data interface{}) {
	write(c, Success(data))
}

// Fail 写出错误响应并中止后续处理。非 Errno 错误按内部错误处理。
func Fail(c *gin.Context, err error) {
	e := errors.FromError(err)
	if e.Code == errors.ErrInternal.Code || e.HTTPStatus() >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	r := ErrWithLang(e, lang(c))
	write(c, r)
	c.Abort()
}

func write(c *gin.Context, r *Response) {
	r.RequestID = common.RequestIDFromGin(c)
	r.Timestamp = time.Now().UnixMilli()
	c.JSON(r.HTTPCode, r)
}

func lang(c *gin.Context) string {
	if c.Request == nil {
		return ""
	}
	al := c.GetHeader("Accept-Language")
	if len(al) >= 2 && al[:2] == "zh" {
		return "zh"
	}
	return "en"
}
