// Package docqa 提供文档问答服务的业务配置分组。
package docqa

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

// 索引后端。
const (
	BackendFlat   = "flat"
	BackendMilvus = "milvus"
)

var _ options.IOptions = (*IndexOptions)(nil)

// IndexOptions 语料与向量索引配置。
type IndexOptions struct {
	// DocsDir 语料目录，递归扫描。
	DocsDir string `json:"docs-dir" mapstructure:"docs-dir"`
	// IndexPath flat 后端快照所在目录。
	IndexPath string `json:"index-path" mapstructure:"index-path"`
	// Extensions 参与索引的扩展名。
	Extensions []string `json:"extensions" mapstructure:"extensions"`
	ChunkSize  int      `json:"chunk-size" mapstructure:"chunk-size"`
	Overlap    int      `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	Separator  string   `json:"separator" mapstructure:"separator"`
	TopK       int      `json:"top-k" mapstructure:"top-k"`
	// Backend flat 或 milvus。
	Backend string `json:"backend" mapstructure:"backend"`
	// Collection milvus 集合名前缀，每次重建生成新的一代。
	Collection     string `json:"collection" mapstructure:"collection"`
	EmbedBatchSize int    `json:"embed-batch-size" mapstructure:"embed-batch-size"`
	// Watch 语料变化时自动重建。
	Watch         bool          `json:"watch" mapstructure:"watch"`
	WatchDebounce time.Duration `json:"watch-debounce" mapstructure:"watch-debounce"`
	// EmbeddingCache 在 redis 中缓存分块向量，重建时未变化的分块不再重新计算。
	EmbeddingCache    bool          `json:"embedding-cache" mapstructure:"embedding-cache"`
	EmbeddingCacheTTL time.Duration `json:"embedding-cache-ttl" mapstructure:"embedding-cache-ttl"`
}

// NewIndexOptions 返回默认配置。
func NewIndexOptions() *IndexOptions {
	return &IndexOptions{
		DocsDir:           "docs",
		IndexPath:         "faiss_index",
		Extensions:        []string{".txt", ".md"},
		ChunkSize:         1500,
		Overlap:           200,
		Separator:         "\n\n",
		TopK:              5,
		Backend:           BackendFlat,
		Collection:        "docqa_chunks",
		EmbedBatchSize:    16,
		WatchDebounce:     2 * time.Second,
		EmbeddingCacheTTL: 7 * 24 * time.Hour,
	}
}

// AddFlags 注册 index.* 参数。
func (o *IndexOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "index."
	fs.StringVar(&o.DocsDir, p+"docs-dir", o.DocsDir, "Directory holding the document corpus.")
	fs.StringVar(&o.IndexPath, p+"index-path", o.IndexPath, "Directory of the persisted flat index.")
	fs.StringSliceVar(&o.Extensions, p+"extensions", o.Extensions, "File extensions to index.")
	fs.IntVar(&o.ChunkSize, p+"chunk-size", o.ChunkSize, "Maximum characters per chunk.")
	fs.IntVar(&o.Overlap, p+"chunk-overlap", o.Overlap, "Characters shared by adjacent chunks.")
	fs.StringVar(&o.Separator, p+"separator", o.Separator, "Preferred split separator.")
	fs.IntVar(&o.TopK, p+"top-k", o.TopK, "Chunks retrieved per question.")
	fs.StringVar(&o.Backend, p+"backend", o.Backend, "Vector index backend (flat|milvus).")
	fs.StringVar(&o.Collection, p+"collection", o.Collection, "Milvus collection name prefix.")
	fs.IntVar(&o.EmbedBatchSize, p+"embed-batch-size", o.EmbedBatchSize, "Chunks embedded per request.")
	fs.BoolVar(&o.Watch, p+"watch", o.Watch, "Rebuild the index when the corpus changes.")
	fs.DurationVar(&o.WatchDebounce, p+"watch-debounce", o.WatchDebounce, "Quiet period before a watched change triggers a rebuild.")
	fs.BoolVar(&o.EmbeddingCache, p+"embedding-cache", o.EmbeddingCache, "Cache chunk embeddings in redis.")
	fs.DurationVar(&o.EmbeddingCacheTTL, p+"embedding-cache-ttl", o.EmbeddingCacheTTL, "TTL of cached embeddings.")
}

// Complete 规范化扩展名与后端名。
func (o *IndexOptions) Complete() error {
	o.Backend = strings.ToLower(o.Backend)
	for i, ext := range o.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		o.Extensions[i] = ext
	}
	return nil
}

// Validate 校验配置。
func (o *IndexOptions) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.DocsDir == "" {
		errs = append(errs, fmt.Errorf("index.docs-dir is required"))
	}
	if o.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("index.chunk-size must be positive"))
	}
	if o.Overlap < 0 || o.Overlap >= o.ChunkSize {
		errs = append(errs, fmt.Errorf("index.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.TopK <= 0 {
		errs = append(errs, fmt.Errorf("index.top-k must be positive"))
	}
	if o.EmbedBatchSize <= 0 {
		errs = append(errs, fmt.Errorf("index.embed-batch-size must be positive"))
	}
	if len(o.Extensions) == 0 {
		errs = append(errs, fmt.Errorf("index.extensions must not be empty"))
	}
	switch o.Backend {
	case BackendFlat:
		if o.IndexPath == "" {
			errs = append(errs, fmt.Errorf("index.index-path is required for the flat backend"))
		}
	case BackendMilvus:
		if o.Collection == "" {
			errs = append(errs, fmt.Errorf("index.collection is required for the milvus backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported index.backend %q", o.Backend))
	}
	if o.EmbeddingCache && o.EmbeddingCacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("index.embedding-cache-ttl must be positive"))
	}
	if o.Watch && o.WatchDebounce <= 0 {
		errs = append(errs, fmt.Errorf("index.watch-debounce must be positive"))
	}
	return errs
}
