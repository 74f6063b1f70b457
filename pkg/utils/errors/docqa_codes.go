package errors

import "google.golang.org/grpc/codes"

// docqa 服务错误 (AA=20)
var (
	ErrDocQAInvalidRequest = Register(New(MakeCode(ServiceDocQA, CategoryRequest, 1), 400, codes.InvalidArgument,
		"Invalid chat request", "对话请求无效"))
	ErrDocQASessionNotFound = Register(New(MakeCode(ServiceDocQA, CategoryResource, 1), 404, codes.NotFound,
		"Session not found", "会话不存在"))
	ErrDocQARebuildInProgress = Register(New(MakeCode(ServiceDocQA, CategoryConflict, 1), 409, codes.Aborted,
		"Index rebuild already in progress", "索引正在重建"))
	ErrDocQANoAgents = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 1), 500, codes.FailedPrecondition,
		"No agents available", "没有可用的智能体"))
	ErrDocQAInvariant = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 2), 500, codes.Internal,
		"Internal invariant violated", "内部状态异常"))
	ErrDocQAIndexFailed = Register(New(MakeCode(ServiceDocQA, CategoryInternal, 3), 500, codes.Internal,
		"Index rebuild failed", "索引重建失败"))
	ErrDocQAGenerationFailed = Register(New(MakeCode(ServiceDocQA, CategoryUpstream, 1), 502, codes.Unavailable,
		"Answer generation failed", "答案生成失败"))
	ErrDocQAIndexUnavailable = Register(New(MakeCode(ServiceDocQA, CategoryDependency, 1), 503, codes.Unavailable,
		"Knowledge base index unavailable", "知识库索引不可用"))
	ErrDocQAHistoryUnavailable = Register(New(MakeCode(ServiceDocQA, CategoryDatabase, 1), 500, codes.Internal,
		"Conversation history unavailable", "对话历史不可用"))
)
