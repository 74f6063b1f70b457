// Package sqldb 通过 gorm 打开 MySQL、PostgreSQL 或 SQLite 连接。
package sqldb

import (
	"context"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/docqa/pkg/component"
	options "github.com/kart-io/docqa/pkg/options/sqldb"
)

// Client gorm 连接。
type Client struct {
	db     *gorm.DB
	driver string
}

var _ component.Client = (*Client)(nil)

// Dialector 返回驱动对应的 gorm Dialector。
func Dialector(opts *options.Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case options.DriverMySQL:
		return mysql.Open(opts.DSN()), nil
	case options.DriverPostgres:
		return postgres.Open(opts.DSN()), nil
	case options.DriverSQLite:
		return sqlite.Open(opts.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
}

// New 打开连接、设置连接池并 ping。
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("database options cannot be nil")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid database options: %w", err)
	}

	dialector, err := Dialector(opts)
	if err != nil {
		return nil, err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(gormlogger.Warn, opts.SlowThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(opts.MaxIdleConnections)
	sqlDB.SetMaxOpenConns(opts.MaxOpenConnections)
	sqlDB.SetConnMaxLifetime(opts.MaxConnectionLifeTime)
	// SQLite 内存库每个连接都是独立的数据库
	if opts.Driver == options.DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}
	return &Client{db: db, driver: opts.Driver}, nil
}

func (c *Client) Name() string { return c.driver }

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// DB 返回 gorm 连接。
func (c *Client) DB() *gorm.DB { return c.db }
