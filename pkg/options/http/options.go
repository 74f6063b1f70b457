// Package http 提供 HTTP 服务的配置分组。
package http

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options HTTP 服务配置。
type Options struct {
	Addr            string        `json:"addr" mapstructure:"addr"`
	Mode            string        `json:"mode" mapstructure:"mode"`
	ReadTimeout     time.Duration `json:"read-timeout" mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `json:"write-timeout" mapstructure:"write-timeout"`
	IdleTimeout     time.Duration `json:"idle-timeout" mapstructure:"idle-timeout"`
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
	MaxBodyBytes    int64         `json:"max-body-bytes" mapstructure:"max-body-bytes"`
	AllowOrigins    []string      `json:"allow-origins" mapstructure:"allow-origins"`
	// RateLimit 对话接口每个客户端每秒请求数，0 表示不限流。
	RateLimit float64 `json:"rate-limit" mapstructure:"rate-limit"`
	RateBurst int     `json:"rate-burst" mapstructure:"rate-burst"`
}

// NewOptions 返回默认配置。
// 生成请求可能持续数分钟，写超时需大于单次生成的总耗时。
func NewOptions() *Options {
	return &Options{
		Addr:            ":8000",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    5 * time.Minute,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxBodyBytes:    1 << 20,
		AllowOrigins:    []string{"*"},
		RateLimit:       2,
		RateBurst:       10,
	}
}

// AddFlags 注册 http.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "http."
	fs.StringVar(&o.Addr, p+"addr", o.Addr, "HTTP server listen address.")
	fs.StringVar(&o.Mode, p+"mode", o.Mode, "Gin mode (debug|release|test).")
	fs.DurationVar(&o.ReadTimeout, p+"read-timeout", o.ReadTimeout, "HTTP server read timeout.")
	fs.DurationVar(&o.WriteTimeout, p+"write-timeout", o.WriteTimeout, "HTTP server write timeout.")
	fs.DurationVar(&o.IdleTimeout, p+"idle-timeout", o.IdleTimeout, "HTTP server idle timeout.")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Graceful shutdown timeout.")
	fs.Int64Var(&o.MaxBodyBytes, p+"max-body-bytes", o.MaxBodyBytes, "Maximum request body size in bytes.")
	fs.StringSliceVar(&o.AllowOrigins, p+"allow-origins", o.AllowOrigins, "CORS allowed origins.")
	fs.Float64Var(&o.RateLimit, p+"rate-limit", o.RateLimit, "Chat requests per second allowed per client IP, 0 disables.")
	fs.IntVar(&o.RateBurst, p+"rate-burst", o.RateBurst, "Chat request burst allowed per client IP.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Addr == "" {
		errs = append(errs, fmt.Errorf("http.addr cannot be empty"))
	}
	switch o.Mode {
	case gin.DebugMode, gin.ReleaseMode, gin.TestMode:
	default:
		errs = append(errs, fmt.Errorf("http.mode must be one of debug, release, test"))
	}
	if o.ReadTimeout <= 0 || o.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http read/write timeouts must be positive"))
	}
	if o.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("http.shutdown-timeout must be positive"))
	}
	if o.RateLimit < 0 || o.RateBurst < 0 {
		errs = append(errs, fmt.Errorf("http.rate-limit and http.rate-burst cannot be negative"))
	}
	if o.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("http.max-body-bytes must be positive"))
	}
	return errs
}
