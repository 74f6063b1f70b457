// Package pool 提供 goroutine 池配置。
package pool

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options 协程池配置。
type Options struct {
	Capacity         int           `json:"capacity" mapstructure:"capacity"`
	ExpiryDuration   time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	Nonblocking      bool          `json:"nonblocking" mapstructure:"nonblocking"`
	MaxBlockingTasks int           `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Capacity:       64,
		ExpiryDuration: 10 * time.Second,
		Nonblocking:    true,
	}
}

// AddFlags 注册 pool.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.IntVar(&o.Capacity, p+"capacity", o.Capacity, "Maximum concurrently running agent tasks.")
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry.")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Reject submissions instead of blocking when full.")
	fs.IntVar(&o.MaxBlockingTasks, p+"max-blocking-tasks", o.MaxBlockingTasks, "Maximum blocked submitters, 0 for unlimited.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	if o.Capacity <= 0 {
		return []error{fmt.Errorf("pool.capacity must be positive")}
	}
	return nil
}

// ToConfig 转换为 pool.Config。
func (o *Options) ToConfig() *pool.Config {
	return &pool.Config{
		Capacity:         o.Capacity,
		ExpiryDuration:   o.ExpiryDuration,
		Nonblocking:      o.Nonblocking,
		MaxBlockingTasks: o.MaxBlockingTasks,
	}
}
