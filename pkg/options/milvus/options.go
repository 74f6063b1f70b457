// Package milvusopts 提供 Milvus 连接配置。
package milvusopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options Milvus 连接配置。
type Options struct {
	Address  string        `json:"address" mapstructure:"address"`
	Database string        `json:"database" mapstructure:"database"`
	Username string        `json:"username" mapstructure:"username"`
	Password string        `json:"-" mapstructure:"password"`
	Timeout  time.Duration `json:"timeout" mapstructure:"timeout"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Address:  "localhost:19530",
		Database: "default",
		Timeout:  30 * time.Second,
	}
}

// AddFlags 注册 milvus.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "milvus."
	fs.StringVar(&o.Address, p+"address", o.Address, "Milvus server address (host:port).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Milvus database name.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Milvus username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Milvus password.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Milvus connect and operation timeout.")
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Address == "" {
		errs = append(errs, fmt.Errorf("milvus.address is required"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("milvus.timeout must be positive"))
	}
	return errs
}
