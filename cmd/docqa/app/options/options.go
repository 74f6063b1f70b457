// Package options 文档问答服务的命令行配置。
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	docqasvc "github.com/kart-io/docqa/internal/docqa"
	"github.com/kart-io/docqa/pkg/app/cliflag"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	httpopts "github.com/kart-io/docqa/pkg/options/http"
	llmopts "github.com/kart-io/docqa/pkg/options/llm"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	mongoopts "github.com/kart-io/docqa/pkg/options/mongodb"
	poolopts "github.com/kart-io/docqa/pkg/options/pool"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
)

// ServerOptions 服务的全部配置分组。
type ServerOptions struct {
	HTTPOptions      *httpopts.Options           `json:"http" mapstructure:"http"`
	LogOptions       *logopts.Options            `json:"log" mapstructure:"log"`
	TracingOptions   *tracingopts.Options        `json:"tracing" mapstructure:"tracing"`
	EmbeddingOptions *llmopts.ProviderOptions    `json:"embedding" mapstructure:"embedding"`
	ChatOptions      *llmopts.ProviderOptions    `json:"chat" mapstructure:"chat"`
	IndexOptions     *docqaopts.IndexOptions     `json:"index" mapstructure:"index"`
	AssistantOptions *docqaopts.AssistantOptions `json:"assistant" mapstructure:"assistant"`
	SessionOptions   *docqaopts.SessionOptions   `json:"session" mapstructure:"session"`
	SQLAgentOptions  *docqaopts.SQLAgentOptions  `json:"sql-agent" mapstructure:"sql-agent"`
	MilvusOptions    *milvusopts.Options         `json:"milvus" mapstructure:"milvus"`
	RedisOptions     *redisopts.Options          `json:"redis" mapstructure:"redis"`
	MongoDBOptions   *mongoopts.Options          `json:"mongodb" mapstructure:"mongodb"`
	PoolOptions      *poolopts.Options           `json:"pool" mapstructure:"pool"`
}

// NewServerOptions 返回默认配置。
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:      httpopts.NewOptions(),
		LogOptions:       logopts.NewOptions(),
		TracingOptions:   tracingopts.NewOptions(),
		EmbeddingOptions: llmopts.NewEmbeddingOptions(),
		ChatOptions:      llmopts.NewChatOptions(),
		IndexOptions:     docqaopts.NewIndexOptions(),
		AssistantOptions: docqaopts.NewAssistantOptions(),
		SessionOptions:   docqaopts.NewSessionOptions(),
		SQLAgentOptions:  docqaopts.NewSQLAgentOptions(),
		MilvusOptions:    milvusopts.NewOptions(),
		RedisOptions:     redisopts.NewOptions(),
		MongoDBOptions:   mongoopts.NewOptions(),
		PoolOptions:      poolopts.NewOptions(),
	}
}

// Flags 按分组返回参数。
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.EmbeddingOptions.AddFlags(fss.FlagSet("embedding"), "embedding")
	o.ChatOptions.AddFlags(fss.FlagSet("chat"), "chat")
	o.IndexOptions.AddFlags(fss.FlagSet("index"))
	o.AssistantOptions.AddFlags(fss.FlagSet("assistant"))
	o.SessionOptions.AddFlags(fss.FlagSet("session"))
	o.SQLAgentOptions.AddFlags(fss.FlagSet("sql-agent"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.RedisOptions.AddFlags(fss.FlagSet("redis"))
	o.MongoDBOptions.AddFlags(fss.FlagSet("mongodb"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	return fss
}

// Complete 补全默认值。
func (o *ServerOptions) Complete() error {
	if err := o.LogOptions.Complete(); err != nil {
		return err
	}
	if err := o.EmbeddingOptions.Complete(); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	if err := o.ChatOptions.Complete(); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	if err := o.IndexOptions.Complete(); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	if err := o.SessionOptions.Complete(); err != nil {
		return fmt.Errorf("session: %w", err)
	}
	if err := o.SQLAgentOptions.Complete(); err != nil {
		return fmt.Errorf("sql-agent: %w", err)
	}
	if err := o.RedisOptions.Complete(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	if err := o.MongoDBOptions.Complete(); err != nil {
		return fmt.Errorf("mongodb: %w", err)
	}
	return nil
}

// Validate 校验配置。外部连接只在被使用时校验。
func (o *ServerOptions) Validate() error {
	var errs []error
	errs = append(errs, o.HTTPOptions.Validate()...)
	errs = append(errs, o.LogOptions.Validate()...)
	errs = append(errs, o.TracingOptions.Validate()...)
	errs = append(errs, o.EmbeddingOptions.Validate()...)
	errs = append(errs, o.ChatOptions.Validate()...)
	errs = append(errs, o.IndexOptions.Validate()...)
	errs = append(errs, o.AssistantOptions.Validate()...)
	errs = append(errs, o.SessionOptions.Validate()...)
	errs = append(errs, o.SQLAgentOptions.Validate()...)
	errs = append(errs, o.PoolOptions.Validate()...)

	if o.IndexOptions.Backend == docqaopts.BackendMilvus {
		errs = append(errs, o.MilvusOptions.Validate()...)
	}
	if o.SessionOptions.Backend == docqaopts.SessionBackendRedis || o.IndexOptions.EmbeddingCache {
		errs = append(errs, o.RedisOptions.Validate()...)
	}
	if o.SessionOptions.Backend == docqaopts.SessionBackendMongoDB {
		errs = append(errs, o.MongoDBOptions.Validate()...)
	}
	return utilerrors.NewAggregate(errs)
}

// Config 构建服务配置。
func (o *ServerOptions) Config() (*docqasvc.Config, error) {
	return &docqasvc.Config{
		HTTPOptions:      o.HTTPOptions,
		LogOptions:       o.LogOptions,
		TracingOptions:   o.TracingOptions,
		EmbeddingOptions: o.EmbeddingOptions,
		ChatOptions:      o.ChatOptions,
		IndexOptions:     o.IndexOptions,
		AssistantOptions: o.AssistantOptions,
		SessionOptions:   o.SessionOptions,
		SQLAgentOptions:  o.SQLAgentOptions,
		MilvusOptions:    o.MilvusOptions,
		RedisOptions:     o.RedisOptions,
		MongoDBOptions:   o.MongoDBOptions,
		PoolOptions:      o.PoolOptions,
	}, nil
}
