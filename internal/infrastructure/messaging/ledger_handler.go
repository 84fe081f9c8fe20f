package messaging

import (
	"context"
	"fmt"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/pkg/logger"
)

// CostEntryWriter 成本流水落库
type CostEntryWriter interface {
	Create(ctx context.Context, entry *entity.CostLedgerEntry) error
}

// NewCostEntryHandler 将流水消息写入数据库，重复投递由仓储按 ID 去重
func NewCostEntryHandler(w CostEntryWriter) MessageHandler {
	return func(ctx context.Context, msg *Message) error {
		var entry entity.CostLedgerEntry
		if err := msg.UnmarshalPayload(&entry); err != nil {
			return fmt.Errorf("invalid cost entry payload: %w", err)
		}
		if entry.ID == "" {
			entry.ID = msg.ID
		}

		if err := w.Create(ctx, &entry); err != nil {
			return err
		}
		logger.Debug(ctx, "cost entry persisted", "entry_id", entry.ID, "kind", entry.Kind)
		return nil
	}
}
