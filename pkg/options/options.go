// Package options 定义各配置分组的通用约定。
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join 用 "." 连接前缀，非空时追加结尾的 "."。
// 用于生成 "redis.addr" 或 "session.redis.addr" 这样的参数名。
func Join(prefixes ...string) string {
	joined := strings.Join(prefixes, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions 是配置分组需要实现的接口。
type IOptions interface {
	// Validate 校验配置，返回全部错误。
	Validate() []error

	// AddFlags 把参数注册到 fs。
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}

// Redact 返回脱敏后的密钥，空值保持为空。
func Redact(secret string) string {
	if secret == "" {
		return ""
	}
	return "[REDACTED]"
}
