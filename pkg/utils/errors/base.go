package errors

import "google.golang.org/grpc/codes"

// OK 表示成功，code 为 0。
var OK = &Errno{Code: 0, HTTP: 200, GRPCCode: codes.OK, MessageEN: "success", MessageZH: "成功"}

// 公共错误 (AA=00)
var (
	ErrBadRequest         = Register(New(MakeCode(ServiceCommon, CategoryRequest, 0), 400, codes.InvalidArgument, "Bad request", "请求错误"))
	ErrInvalidParam       = Register(New(MakeCode(ServiceCommon, CategoryRequest, 1), 400, codes.InvalidArgument, "Invalid parameter", "参数无效"))
	ErrValidationFailed   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 4), 400, codes.InvalidArgument, "Validation failed", "参数校验失败"))
	ErrNotFound           = Register(New(MakeCode(ServiceCommon, CategoryResource, 0), 404, codes.NotFound, "Resource not found", "资源不存在"))
	ErrRouteNotFound      = Register(New(MakeCode(ServiceCommon, CategoryResource, 1), 404, codes.NotFound, "Route not found", "路由不存在"))
	ErrMethodNotAllowed   = Register(New(MakeCode(ServiceCommon, CategoryRequest, 5), 405, codes.Unimplemented, "Method not allowed", "方法不允许"))
	ErrRequestTooLarge    = Register(New(MakeCode(ServiceCommon, CategoryRequest, 6), 413, codes.InvalidArgument, "Request entity too large", "请求体过大"))
	ErrTooManyRequests    = Register(New(MakeCode(ServiceCommon, CategoryRateLimit, 0), 429, codes.ResourceExhausted, "Too many requests", "请求过于频繁"))
	ErrInternal           = Register(New(MakeCode(ServiceCommon, CategoryInternal, 0), 500, codes.Internal, "Internal server error", "服务器内部错误"))
	ErrPanic              = Register(New(MakeCode(ServiceCommon, CategoryInternal, 1), 500, codes.Internal, "Internal server panic", "服务器内部异常"))
	ErrDatabase           = Register(New(MakeCode(ServiceCommon, CategoryDatabase, 0), 500, codes.Internal, "Database error", "数据库错误"))
	ErrCache              = Register(New(MakeCode(ServiceCommon, CategoryCache, 0), 500, codes.Internal, "Cache error", "缓存错误"))
	ErrServiceUnavailable = Register(New(MakeCode(ServiceCommon, CategoryNetwork, 0), 503, codes.Unavailable, "Service unavailable", "服务不可用"))
	ErrTimeout            = Register(New(MakeCode(ServiceCommon, CategoryTimeout, 0), 504, codes.DeadlineExceeded, "Request timeout", "请求超时"))
)
