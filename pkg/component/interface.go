// Package component 定义外部依赖客户端的公共接口。
package component

import "context"

// Client 外部依赖客户端（Redis、MongoDB、Milvus、SQL）。
type Client interface {
	// Name 返回组件类型，用于日志与健康检查。
	Name() string
	// Ping 检查连接是否可用。
	Ping(ctx context.Context) error
	// Close 释放连接。
	Close() error
}
