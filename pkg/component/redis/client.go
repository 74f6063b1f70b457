// Package redis 封装 go-redis 客户端。
package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/docqa/pkg/component"
	options "github.com/kart-io/docqa/pkg/options/redis"
)

// Client Redis 客户端。
type Client struct {
	client *goredis.Client
	opts   *options.Options
}

var _ component.Client = (*Client)(nil)

// New 创建客户端并通过 PING 验证连接。
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid redis options: %w", err)
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:         opts.Addr(),
		Password:     opts.Password,
		DB:           opts.Database,
		MaxRetries:   opts.MaxRetries,
		PoolSize:     opts.PoolSize,
		MinIdleConns: opts.MinIdleConns,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis %s: %w", opts.Addr(), err)
	}
	return &Client{client: rdb, opts: opts}, nil
}

// Wrap 包装已有的 go-redis 客户端，测试中使用。
func Wrap(rdb *goredis.Client) *Client {
	return &Client{client: rdb}
}

func (c *Client) Name() string { return "redis" }

func (c *Client) Ping(ctx context.Context) error { return c.client.Ping(ctx).Err() }

func (c *Client) Close() error { return c.client.Close() }

// Client 返回底层客户端。
func (c *Client) Client() *goredis.Client { return c.client }
