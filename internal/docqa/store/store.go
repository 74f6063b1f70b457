// Package store 定义 docqa 的向量索引与会话存储。
package store

import (
	"context"
	"errors"
)

// ErrInvalidIndex 索引快照缺失或损坏。
var ErrInvalidIndex = errors.New("invalid or missing index")

// Chunk 表示语料中的一个文本块。
type Chunk struct {
	// ID 形如 <相对路径>#<序号>。
	ID string
	// Source 源文件相对路径。
	Source string
	// Ordinal 块在源文件中的序号。
	Ordinal int
	// Offset 块在源文件中的 rune 偏移。
	Offset int
	// Text 块内容。
	Text string
	// Embedding 嵌入向量。
	Embedding []float32
}

// ScoredChunk 检索结果。
type ScoredChunk struct {
	Chunk
	Score float64
}

// VectorIndex 只读的相似度索引，一次构建后不再修改。
type VectorIndex interface {
	// Search 返回与 vector 最相似的至多 k 个块，按分数降序，同分保持插入顺序。
	// k <= 0 或索引为空时返回空切片。
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)
	// Len 返回块数量。
	Len() int
	// Dimension 返回向量维度，空索引为 0。
	Dimension() int
}

// IndexBackend 负责构建与加载某种后端的索引。
type IndexBackend interface {
	// Name 后端名称。
	Name() string
	// Build 用 chunks 构建新索引并持久化。失败时之前的索引不受影响。
	Build(ctx context.Context, chunks []Chunk) (VectorIndex, error)
	// Load 加载已持久化的索引，不存在或损坏时返回 ErrInvalidIndex。
	Load(ctx context.Context) (VectorIndex, error)
}
