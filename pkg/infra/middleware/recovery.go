package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/pkg/infra/middleware/common"
	"github.com/kart-io/docqa/pkg/utils/errors"
	"github.com/kart-io/docqa/pkg/utils/response"
)

// Recovery 捕获 panic，记录堆栈并返回 ErrPanic。
// panic 值本身是 *errors.Errno 时按该错误码返回。
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.Errorw("panic recovered",
				"panic", fmt.Sprint(r),
				"path", c.Request.URL.Path,
				"request_id", common.RequestIDFromGin(c),
				"stack", string(debug.Stack()),
			)

			if e, ok := r.(*errors.Errno); ok {
				response.Fail(c, e)
				return
			}
			response.Fail(c, errors.ErrPanic.WithCause(fmt.Errorf("%v", r)))
		}()
		c.Next()
	}
}
