package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sync"

	"google.golang.org/grpc/codes"
)

// Errno 带错误码、HTTP/gRPC 状态与中英文消息的结构化错误。
type Errno struct {
	Code      int        `json:"code"`
	HTTP      int        `json:"-"`
	GRPCCode  codes.Code `json:"-"`
	MessageEN string     `json:"message"`
	MessageZH string     `json:"message_zh,omitempty"`

	cause error
}

// New 创建 Errno。
func New(code, httpStatus int, grpcCode codes.Code, en, zh string) *Errno {
	return &Errno{Code: code, HTTP: httpStatus, GRPCCode: grpcCode, MessageEN: en, MessageZH: zh}
}

func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

func (e *Errno) Unwrap() error { return e.cause }

// Is 按错误码比较。
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	return ok && t.Code == e.Code
}

func (e *Errno) clone() *Errno {
	c := *e
	return &c
}

// WithCause 返回附带底层错误的副本。
func (e *Errno) WithCause(cause error) *Errno {
	c := e.clone()
	c.cause = cause
	return c
}

// WithMessage 返回替换英文消息的副本。
func (e *Errno) WithMessage(msg string) *Errno {
	c := e.clone()
	c.MessageEN = msg
	return c
}

// WithMessagef 同 WithMessage，支持格式化。
func (e *Errno) WithMessagef(format string, args ...interface{}) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message 按语言返回消息。
func (e *Errno) Message(lang string) string {
	switch lang {
	case "zh", "zh-CN", "zh_CN":
		if e.MessageZH != "" {
			return e.MessageZH
		}
	}
	return e.MessageEN
}

// HTTPStatus 返回 HTTP 状态码，未设置时为 500。
func (e *Errno) HTTPStatus() int {
	if e.HTTP != 0 {
		return e.HTTP
	}
	return http.StatusInternalServerError
}

// GRPCStatus 返回 gRPC 状态码，未设置时为 Internal。
func (e *Errno) GRPCStatus() codes.Code {
	if e.GRPCCode != codes.OK {
		return e.GRPCCode
	}
	return codes.Internal
}

var (
	registry   = make(map[int]*Errno)
	registryMu sync.RWMutex
)

// Register 注册错误码，重复注册会 panic。
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()
	if existing, ok := registry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	registry[e.Code] = e
	return e
}

// Lookup 按错误码查找已注册的 Errno。
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registry[code]
	return e, ok
}

// FromError 把任意错误转换为 Errno，未知错误视为 ErrInternal。
func FromError(err error) *Errno {
	if err == nil {
		return nil
	}
	var e *Errno
	if stderrors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode 判断错误链中是否包含指定错误码。
func IsCode(err error, code int) bool {
	var e *Errno
	return stderrors.As(err, &e) && e.Code == code
}
