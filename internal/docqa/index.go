package docqasvc

import (
	"context"
	"fmt"

	"github.com/kart-io/logger"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/pkg/infra/app"
)

// RebuildIndex 离线重建语料索引，不启动 HTTP 服务。
// 只使用 embedding、索引与 redis/milvus 相关配置。
func (cfg *Config) RebuildIndex(ctx context.Context) (*biz.IndexStats, error) {
	cfg.LogOptions.AddInitialField("service.name", Name+"-index")
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var closers []func()
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}()

	deps := &components{cfg: cfg, closers: &closers}
	indexer, err := deps.indexer(ctx)
	if err != nil {
		return nil, err
	}
	stats, err := indexer.Rebuild(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild index: %w", err)
	}
	logger.Infow("Index rebuilt",
		"backend", stats.Backend,
		"files", stats.Files,
		"skipped", stats.Skipped,
		"chunks", stats.Chunks,
	)
	return stats, nil
}
