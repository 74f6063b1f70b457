// Package main 离线重建文档问答服务的语料索引。
//
// 与服务共用 index、embedding、milvus 与 redis 配置，
// flat 后端写出的快照在服务下次启动或调用重建接口时生效。
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docqasvc "github.com/kart-io/docqa/internal/docqa"
	"github.com/kart-io/docqa/pkg/app/cliflag"
	"github.com/kart-io/docqa/pkg/infra/app"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
)

type indexOptions struct {
	LogOptions       *logopts.Options         `json:"log" mapstructure:"log"`
	EmbeddingOptions *llmopts.ProviderOptions `json:"embedding" mapstructure:"embedding"`
	IndexOptions     *docqaopts.IndexOptions  `json:"index" mapstructure:"index"`
	MilvusOptions    *milvusopts.Options      `json:"milvus" mapstructure:"milvus"`
	RedisOptions     *redisopts.Options       `json:"redis" mapstructure:"redis"`
}

func (o *indexOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	return fss
}

func (o *indexOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.IndexOptions.Complete(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	return o.RedisOptions.Complete()
}

func (o *indexOptions) Validate() error {
	var errs []error
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.IndexOptions.Validate()...)
	if o.IndexOptions.Backend == docqaopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.IndexOptions.EmbeddingCache {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

func main() {
	_ = godotenv.Load()

	opts := &indexOptions{
		LogOptions:       logopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		IndexOptions:     docqaopts.NewIndexOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
	}
	app.NewApp(
		// 与服务读取同一份配置文件
		app.WithName(docqasvc.Name),
		app.WithDescription("Rebuild the document QA corpus index without starting the server."),
		app.WithOptions(opts),
		app.WithRunFunc(func() error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := &docqasvc.Config{
				LogOptions:       opts.LogOptions,
				EmbeddingOptions: opts.EmbeddingOptions,
				IndexOptions:     opts.IndexOptions,
				MilvusOptions:    opts.MilvusOptions,
				RedisOptions:     opts.RedisOptions,
			}
			stats, err := cfg.RebuildIndex(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("indexed %d chunks from %d files (%d skipped) into %s\n",
				stats.Chunks, stats.Files, stats.Skipped, stats.Backend)
			return nil
		}),
	).Run()
}
