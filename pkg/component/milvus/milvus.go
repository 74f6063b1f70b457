// Package milvus 封装 Milvus 客户端，提供向量集合的建表、写入与检索。
package milvus

import (
	"context"
	"fmt"
	"strconv"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
)

// 集合中的固定字段名。
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
)

// Client Milvus 客户端。
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New 连接 Milvus。
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}
	if err := utilerrors.NewAggregate(opts.Validate()); err != nil {
		return nil, fmt.Errorf("invalid milvus options: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return &Client{client: c, opts: opts}, nil
}

func (c *Client) Name() string { return "milvus" }

// Ping 通过列出集合检查连接。
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
	return err
}

func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.Timeout)
	defer cancel()
	return c.client.Close(ctx)
}

// CollectionSchema 向量集合定义，主键自增。
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField 标量字段。
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int
}

// CreateCollection 创建集合、建立 COSINE 索引并加载；集合已存在时直接返回。
func (c *Client) CreateCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("check collection %s: %w", schema.Name, err)
	}
	if exists {
		return nil
	}

	s := entity.NewSchema().
		WithName(schema.Name).
		WithDescription(schema.Description).
		WithAutoID(true).
		WithField(entity.NewField().
			WithName(FieldID).
			WithDataType(entity.FieldTypeInt64).
			WithIsPrimaryKey(true).
			WithIsAutoID(true)).
		WithField(entity.NewField().
			WithName(FieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(schema.Dimension)))

	for _, f := range schema.MetaFields {
		field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
		if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
			field.WithMaxLength(int64(f.MaxLen))
		}
		s.WithField(field)
	}

	if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, s)); err != nil {
		return fmt.Errorf("create collection %s: %w", schema.Name, err)
	}

	idxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, FieldEmbedding, index.NewFlatIndex(entity.COSINE)))
	if err != nil {
		return fmt.Errorf("create index on %s: %w", schema.Name, err)
	}
	if err := idxTask.Await(ctx); err != nil {
		return fmt.Errorf("wait index on %s: %w", schema.Name, err)
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("load collection %s: %w", schema.Name, err)
	}
	return loadTask.Await(ctx)
}

// InsertData 待写入数据，每个标量列的长度与 Embeddings 一致。
type InsertData struct {
	Embeddings [][]float32
	Strings    map[string][]string
	Int64s     map[string][]int64
}

// Insert 写入并 flush，保证随后的检索可见。
func (c *Client) Insert(ctx context.Context, collection string, data *InsertData) error {
	if len(data.Embeddings) == 0 {
		return nil
	}
	cols := []column.Column{column.NewColumnFloatVector(FieldEmbedding, len(data.Embeddings[0]), data.Embeddings)}
	for name, vals := range data.Strings {
		cols = append(cols, column.NewColumnVarChar(name, vals))
	}
	for name, vals := range data.Int64s {
		cols = append(cols, column.NewColumnInt64(name, vals))
	}

	if _, err := c.client.Insert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...)); err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	flushTask, err := c.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("flush %s: %w", collection, err)
	}
	return flushTask.Await(ctx)
}

// SearchResult 单条检索结果。
type SearchResult struct {
	Score   float32
	Strings map[string]string
	Int64s  map[string]int64
}

// Search 余弦相似度检索。
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, outputFields []string) ([]SearchResult, error) {
	results, err := c.client.Search(ctx, milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(FieldEmbedding).
		WithOutputFields(outputFields...))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", collection, err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		r := SearchResult{Score: rs.Scores[i], Strings: map[string]string{}, Int64s: map[string]int64{}}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				r.Strings[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				r.Int64s[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, r)
	}
	return out, nil
}

// ListCollections 返回数据库中的全部集合名。
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	return c.client.ListCollections(ctx, milvusclient.NewListCollectionOption())
}

// DropCollection 删除集合。
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("drop collection %s: %w", collection, err)
	}
	return nil
}

// RowCount 返回集合行数。
func (c *Client) RowCount(ctx context.Context, collection string) (int64, error) {
	stats, err := c.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(collection))
	if err != nil {
		return 0, fmt.Errorf("collection stats %s: %w", collection, err)
	}
	if v, ok := stats["row_count"]; ok {
		return strconv.ParseInt(v, 10, 64)
	}
	return 0, nil
}
