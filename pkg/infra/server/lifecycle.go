// Package server 管理一组可启动、可停止的服务的生命周期。
package server

import "context"

// Lifecycle 服务生命周期。
type Lifecycle interface {
	// Start 启动服务，返回时服务已可用。
	Start(ctx context.Context) error
	// Stop 优雅停止。
	Stop(ctx context.Context) error
}

// Runnable 带名称的服务。
type Runnable interface {
	Lifecycle
	Name() string
}
