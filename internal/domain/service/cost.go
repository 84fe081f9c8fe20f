package service

import (
	"context"

	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/domain/entity"
)

// CostInput 一次 AI 调用的计费归属。
// 该结构位于 domain/service，作为跨层契约（port），基础设施层不依赖应用层实现。
type CostInput struct {
	UserID        string
	StoryID       string
	Kind          entity.AIKind
	RequestDigest string
	Cost          decimal.Decimal

	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// CostRecorder 追加成本流水。
// 约定：实现为 best-effort，失败只记录日志，不影响用户请求结果。
type CostRecorder interface {
	Record(ctx context.Context, in CostInput) error
}
