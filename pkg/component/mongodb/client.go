// Package mongodb 封装 MongoDB 客户端。
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	mongoopts "go.mongodb.org/mongo-driver/mongo/options"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	"github.com/kart-io/docqa/pkg/component"
	options "github.com/kart-io/docqa/pkg/options/mongodb"
)

// Client MongoDB 客户端，绑定一个数据库。
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

var _ component.Client = (*Client)(nil)

// New 连接并通过 ping 验证。
func New(ctx context.Context, opts *options.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("mongodb options cannot be nil")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid mongodb options: %w", err)
	}

	clientOpts := mongoopts.Client().ApplyURI(opts.BuildURI())
	if opts.MaxPoolSize > 0 {
		clientOpts.SetMaxPoolSize(opts.MaxPoolSize)
	}
	if opts.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(opts.ConnectTimeout)
	}
	if opts.ServerSelectionTimeout > 0 {
		clientOpts.SetServerSelectionTimeout(opts.ServerSelectionTimeout)
	}
	if opts.Direct {
		clientOpts.SetDirect(true)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &Client{client: client, database: client.Database(opts.Database)}, nil
}

func (c *Client) Name() string { return "mongodb" }

func (c *Client) Ping(ctx context.Context) error { return c.client.Ping(ctx, nil) }

func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return c.client.Disconnect(ctx)
}

// Database 返回绑定的数据库。
func (c *Client) Database() *mongo.Database { return c.database }
