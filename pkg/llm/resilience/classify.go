package resilience

import (
	"context"
	"errors"
	"net"
	"strings"
)

// IsRetryable 判断错误是否可重试：单次超时、网络错误、429 和 5xx 可重试；
// 熔断、取消以及其他 4xx 不重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrBreakerOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range []string{"status code 5", "status code 429", "status code 408", "rate limit", "connection reset", "eof"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
