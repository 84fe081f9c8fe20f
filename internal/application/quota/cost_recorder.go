package quota

import (
	"context"
	"fmt"
	"strings"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/repository"
	"storyloom-ai-api/internal/domain/service"
	"storyloom-ai-api/pkg/metrics"
)

// LedgerRecorder 直接写入数据库的成本流水记录器
type LedgerRecorder struct {
	repo repository.CostLedgerRepository
}

func NewLedgerRecorder(repo repository.CostLedgerRepository) *LedgerRecorder {
	return &LedgerRecorder{repo: repo}
}

func (r *LedgerRecorder) Record(ctx context.Context, in service.CostInput) error {
	if r == nil || r.repo == nil {
		return nil
	}

	entry, err := NewLedgerEntry(in)
	if err != nil {
		return err
	}
	if err := r.repo.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to create cost ledger entry: %w", err)
	}
	return nil
}

// CostEntryPublisher 将流水投递到异步通道（Redis Stream）
type CostEntryPublisher interface {
	PublishCostEntry(ctx context.Context, entry *entity.CostLedgerEntry) (string, error)
}

// StreamRecorder 经消息流异步落库的成本流水记录器
type StreamRecorder struct {
	publisher CostEntryPublisher
}

func NewStreamRecorder(publisher CostEntryPublisher) *StreamRecorder {
	return &StreamRecorder{publisher: publisher}
}

func (r *StreamRecorder) Record(ctx context.Context, in service.CostInput) error {
	entry, err := NewLedgerEntry(in)
	if err != nil {
		return err
	}
	if _, err := r.publisher.PublishCostEntry(ctx, entry); err != nil {
		return fmt.Errorf("failed to publish cost ledger entry: %w", err)
	}
	return nil
}

// NewLedgerEntry 校验并构造流水记录
func NewLedgerEntry(in service.CostInput) (*entity.CostLedgerEntry, error) {
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return nil, fmt.Errorf("invalid token usage")
	}
	if in.Cost.IsNegative() {
		return nil, fmt.Errorf("invalid cost %s", in.Cost.String())
	}

	entry := entity.NewCostLedgerEntry(strings.TrimSpace(in.UserID), strings.TrimSpace(in.StoryID), in.Kind, in.Cost)
	entry.RequestDigest = in.RequestDigest
	entry.Provider = strings.TrimSpace(in.Provider)
	entry.Model = strings.TrimSpace(in.Model)
	entry.PromptTokens = in.PromptTokens
	entry.CompletionTokens = in.CompletionTokens

	cost, _ := in.Cost.Float64()
	metrics.AICostTotal.WithLabelValues(string(in.Kind)).Add(cost)
	return entry, nil
}
