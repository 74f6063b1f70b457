// Package app 提供文档问答服务的命令行应用。
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/kart-io/docqa/cmd/docqa/app/options"
	docqasvc "github.com/kart-io/docqa/internal/docqa"
	"github.com/kart-io/docqa/pkg/infra/app"
)

const commandDesc = `Document QA Service

A conversational question answering service grounded in a local document corpus.

This server provides:
  - POST /chat for multi-turn questions with per-session memory
  - GET /chathistory/{session_id} for persisted conversation history
  - Retrieval over a vector index built from the corpus directory
  - An optional SQL Assistant answering from a relational database`

// NewApp 创建应用。
func NewApp() *app.App {
	opts := options.NewServerOptions()
	return app.NewApp(
		app.WithName(docqasvc.Name),
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
}

func run(opts *options.ServerOptions) app.RunFunc {
	return func() error {
		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg.Viper = viper.GetViper()

		ctx := setupSignalContext()

		server, err := cfg.NewServer(ctx)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		return server.Run(ctx)
	}
}

// setupSignalContext 收到 SIGINT 或 SIGTERM 时取消 ctx，第二次收到时直接退出。
func setupSignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 2)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}
