// Package errors 提供统一的错误码体系。
//
// 错误码格式: AABBCCC
//
//   - AA:  服务代码，00 为公共错误，20 为 docqa 服务
//   - BB:  类别代码，决定 HTTP 状态码的大致范围
//   - CCC: 类别内序号
package errors

// 服务代码 (AA)
const (
	ServiceCommon = 0
	ServiceDocQA  = 20
)

// 类别代码 (BB)
const (
	CategorySuccess    = 0
	CategoryRequest    = 1
	CategoryResource   = 4
	CategoryConflict   = 5
	CategoryRateLimit  = 6
	CategoryInternal   = 7
	CategoryDatabase   = 8
	CategoryCache      = 9
	CategoryNetwork    = 10
	CategoryTimeout    = 11
	CategoryConfig     = 12
	CategoryUpstream   = 13
	CategoryDependency = 14
)

// MakeCode 由服务、类别、序号组合错误码。
func MakeCode(service, category, sequence int) int {
	return service*100000 + category*1000 + sequence
}

// ParseCode 拆分错误码。
func ParseCode(code int) (service, category, sequence int) {
	return code / 100000, (code % 100000) / 1000, code % 1000
}

// IsClientError 判断错误码是否属于客户端错误类别。
func IsClientError(code int) bool {
	_, c, _ := ParseCode(code)
	return c >= CategoryRequest && c <= CategoryRateLimit
}
