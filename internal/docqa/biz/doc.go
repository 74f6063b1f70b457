// Package biz 提供 docqa 的业务逻辑层。
//
// 组件自底向上：
//   - Indexer: 语料切分、向量化、构建并持久化索引
//   - Memory: 单个会话的有界对话缓冲
//   - Chain: 检索增强的回答生成
//   - Agent / Router: 多能力体并行调度与结果聚合
//   - Service: 组合以上组件，执行一轮完整对话
package biz

import "go.opentelemetry.io/otel"

var tracer = otel.Tracer("github.com/kart-io/docqa/internal/docqa/biz")
