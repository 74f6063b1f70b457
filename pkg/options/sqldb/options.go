// Package sqldb 提供关系型数据库（MySQL、PostgreSQL、SQLite）的连接配置。
package sqldb

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 支持的驱动。
const (
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options 数据库连接配置。
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	Host                  string        `json:"host" mapstructure:"host"`
	Port                  int           `json:"port" mapstructure:"port"`
	Username              string        `json:"username" mapstructure:"username"`
	Password              string        `json:"-" mapstructure:"password"`
	Database              string        `json:"database" mapstructure:"database"`
	Path                  string        `json:"path" mapstructure:"path"`
	SSLMode               string        `json:"ssl-mode" mapstructure:"ssl-mode"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	SlowThreshold         time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
}

// NewOptions 返回默认配置（MySQL）。
func NewOptions() *Options {
	return &Options{
		Driver:                DriverMySQL,
		Host:                  "127.0.0.1",
		Port:                  3306,
		Username:              "root",
		SSLMode:               "disable",
		Path:                  "docqa.db",
		MaxIdleConnections:    10,
		MaxOpenConnections:    50,
		MaxConnectionLifeTime: 10 * time.Minute,
		SlowThreshold:         200 * time.Millisecond,
	}
}

// AddFlags 注册 <prefix>.* 参数。
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver (mysql|postgres|sqlite).")
	fs.StringVar(&o.Host, p+"host", o.Host, "Database host.")
	fs.IntVar(&o.Port, p+"port", o.Port, "Database port.")
	fs.StringVar(&o.Username, p+"username", o.Username, "Database username.")
	fs.StringVar(&o.Password, p+"password", o.Password, "Database password (prefer the DB_PASSWORD env var).")
	fs.StringVar(&o.Database, p+"database", o.Database, "Database name.")
	fs.StringVar(&o.Path, p+"path", o.Path, "SQLite file path, ':memory:' for an in-memory database.")
	fs.StringVar(&o.SSLMode, p+"ssl-mode", o.SSLMode, "PostgreSQL sslmode.")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Maximum open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime.")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Statements slower than this are logged at WARN.")
}

// Complete 补全端口与密码。
func (o *Options) Complete() error {
	if o.Password == "" {
		o.Password = os.Getenv("DB_PASSWORD")
	}
	if o.Driver == DriverPostgres && o.Port == 3306 {
		o.Port = 5432
	}
	return nil
}

// Validate 校验配置。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Driver {
	case DriverMySQL, DriverPostgres:
		if o.Host == "" {
			errs = append(errs, fmt.Errorf("database host is required for %s", o.Driver))
		}
		if o.Database == "" {
			errs = append(errs, fmt.Errorf("database name is required for %s", o.Driver))
		}
	case DriverSQLite:
		if o.Path == "" {
			errs = append(errs, fmt.Errorf("database path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", o.Driver))
	}
	return errs
}

// DSN 返回对应驱动的连接串。
func (o *Options) DSN() string {
	switch o.Driver {
	case DriverPostgres:
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			o.Host, o.Port, o.Username, o.Password, o.Database, o.SSLMode)
	case DriverSQLite:
		return o.Path
	default:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=%s",
			o.Username, o.Password, o.Host, o.Port, o.Database, url.QueryEscape("UTC"))
	}
}

// String 返回脱敏后的描述。
func (o *Options) String() string {
	if o.Driver == DriverSQLite {
		return fmt.Sprintf("SQL{driver=sqlite, path=%s}", o.Path)
	}
	return fmt.Sprintf("SQL{driver=%s, host=%s, port=%d, user=%s, password=%s, database=%s}",
		o.Driver, o.Host, o.Port, o.Username, options.Redact(o.Password), o.Database)
}
