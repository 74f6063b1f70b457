// Package mongodb 提供 MongoDB 连接配置。
package mongodb

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options MongoDB 连接配置，URI 非空时优先使用 URI。
type Options struct {
	URI                    string        `json:"uri" mapstructure:"uri"`
	Host                   string        `json:"host" mapstructure:"host"`
	Port                   int           `json:"port" mapstructure:"port"`
	Username               string        `json:"username" mapstructure:"username"`
	Password               string        `json:"-" mapstructure:"password"`
	Database               string        `json:"database" mapstructure:"database"`
	AuthSource             string        `json:"auth-source" mapstructure:"auth-source"`
	ReplicaSet             string        `json:"replica-set" mapstructure:"replica-set"`
	Direct                 bool          `json:"direct" mapstructure:"direct"`
	MaxPoolSize            uint64        `json:"max-pool-size" mapstructure:"max-pool-size"`
	ConnectTimeout         time.Duration `json:"connect-timeout" mapstructure:"connect-timeout"`
	ServerSelectionTimeout time.Duration `json:"server-selection-timeout" mapstructure:"server-selection-timeout"`
}

// NewOptions 返回默认配置。
func NewOptions() *Options {
	return &Options{
		Host:                   "127.0.0.1",
		Port:                   27017,
		Database:               "docqa",
		AuthSource:             "admin",
		MaxPoolSize:            50,
		ConnectTimeout:         10 * time.Second,
		ServerSelectionTimeout: 10 * time.Second,
	}
}

// String 返回脱敏后的描述。
func (o *Options) String() string {
	return fmt.Sprintf("MongoDB{host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Host, o.Port, o.Username, options.Redact(o.Password), o.Database)
}

// AddFlags 注册 mongodb.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "mongodb."
	fs.StringVar(&o.URI, p+"uri", o.URI, "MongoDB URI (mongodb://...), overrides host/port.")
	fs.StringVar(&o.Host, p+"host", o.Host, "MongoDB host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "MongoDB port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "MongoDB username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "MongoDB password (prefer the MONGODB_PASSWORD env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "MongoDB database name.")
	fs.StringVar(&o.AuthSource, p+"auth-source", o.AuthSource, "MongoDB authentication source.")
	fs.StringVar(&o.ReplicaSet, p+"replica-set", o.ReplicaSet, "MongoDB replica set name.")
	fs.BoolVar(&o.Direct, p+"direct", o.Direct, "Use a direct connection.")
	fs.Uint64Var(&o.MaxPoolSize, p+"max-pool-size", o.MaxPoolSize, "Maximum connections in the pool.")
	fs.DurationVar(&o.ConnectTimeout, p+"connect-timeout", o.ConnectTimeout, "Connect timeout.")
	fs.DurationVar(&o.ServerSelectionTimeout, p+"server-selection-timeout", o.ServerSelectionTimeout, "Server selection timeout.")
}

// Complete 从环境变量补全密码。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("MONGODB_PASSWORD")
	}
	return nil
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.URI == "" && o.Host == "" {
		errs = append(errs, fmt.Errorf("mongodb.uri or mongodb.host is required"))
	}
	if o.Database == "" {
		errs = append(errs, fmt.Errorf("mongodb.database is required"))
	}
	return errs
}

// BuildURI 组装连接串。
func (o *Options) BuildURI() string {
	if o.URI != "" {
		return o.URI
	}
	var b strings.Builder
	b.WriteString("mongodb://")
	if o.Username != "" {
		b.WriteString(url.QueryEscape(o.Username))
		if o.Password != "" {
			b.WriteString(":" + url.QueryEscape(o.Password))
		}
		b.WriteString("@")
	}
	b.WriteString(o.Host)
	if o.Port != 0 {
		b.WriteString(":" + strconv.Itoa(o.Port))
	}
	b.WriteString("/")

	params := url.Values{}
	if o.AuthSource != "" && o.AuthSource != "admin" {
		params.Add("authSource", o.AuthSource)
	}
	if o.ReplicaSet != "" {
		params.Add("replicaSet", o.ReplicaSet)
	}
	if o.Direct {
		params.Add("directConnection", "true")
	}
	if len(params) > 0 {
		b.WriteString("?" + params.Encode())
	}
	return b.String()
}
