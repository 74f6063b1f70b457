// Package logger 提供 kart-io/logger 的配置分组。
package logger

import (
	"fmt"
	"strings"

	"github.com/kart-io/logger"
	"github.com/kart-io/logger/core"
	"github.com/kart-io/logger/option"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options 包装 option.LogOption。
type Options struct {
	*option.LogOption `mapstructure:",squash"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{LogOption: option.DefaultLogOption()}
}

// AddFlags 注册 log.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.Engine, "log.engine", o.Engine, "Logging engine (zap|slog).")
	fs.StringVar(&o.Level, "log.level", o.Level, "Log level (DEBUG|INFO|WARN|ERROR|FATAL).")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log format (json|console).")
	fs.StringSliceVar(&o.OutputPaths, "log.output-paths", o.OutputPaths, "Output paths for logs.")
	fs.BoolVar(&o.Development, "log.development", o.Development, "Enable development mode.")
	fs.BoolVar(&o.DisableCaller, "log.disable-caller", o.DisableCaller, "Disable caller detection.")
	fs.BoolVar(&o.DisableStacktrace, "log.disable-stacktrace", o.DisableStacktrace, "Disable stacktrace capture.")

	if o.Rotation == nil {
		o.Rotation = &option.RotationOption{}
	}
	fs.IntVar(&o.Rotation.MaxSize, "log.rotation.max-size", o.Rotation.MaxSize, "Maximum size in MB of a log file before rotation.")
	fs.IntVar(&o.Rotation.MaxAge, "log.rotation.max-age", o.Rotation.MaxAge, "Maximum number of days to retain old log files.")
	fs.IntVar(&o.Rotation.MaxBackups, "log.rotation.max-backups", o.Rotation.MaxBackups, "Maximum number of old log files to retain.")
}

// Complete 规范化日志级别。
func (o *Options) Complete() error {
	o.Level = strings.ToUpper(o.Level)
	return nil
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil || o.LogOption == nil {
		return nil
	}
	if err := o.LogOption.Validate(); err != nil {
		return []error{err}
	}
	return nil
}

// AddInitialField 添加每条日志都携带的字段，如 service.name。
func (o *Options) AddInitialField(key string, value any) {
	o.WithInitialFields(map[string]interface{}{key: value})
}

// Init 创建全局 logger。
func (o *Options) Init() error {
	log, err := logger.New(o.LogOption)
	if err != nil {
		return err
	}
	logger.SetGlobal(log)
	return nil
}

// ReloadLevel 从变更后的配置读取 log.level 并应用到全局 logger。
// 作为 config.Watcher 的订阅者使用。
func (o *Options) ReloadLevel(v *viper.Viper) error {
	raw := v.GetString("log.level")
	if raw == "" || strings.EqualFold(raw, o.Level) {
		return nil
	}
	lvl, err := core.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("invalid log.level %q: %w", raw, err)
	}
	logger.Global().SetLevel(lvl)
	o.Level = strings.ToUpper(raw)
	logger.Infow("log level reloaded", "level", o.Level)
	return nil
}
