package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/domain/entity"
)

// CostLedgerRepository 成本流水
type CostLedgerRepository interface {
	Create(ctx context.Context, entry *entity.CostLedgerEntry) error
	SumByUser(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (decimal.Decimal, error)
}
