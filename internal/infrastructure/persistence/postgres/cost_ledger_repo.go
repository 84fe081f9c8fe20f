package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"

	"storyloom-ai-api/internal/domain/entity"
)

// CostLedgerRepository 成本流水仓储
type CostLedgerRepository struct {
	client *Client
}

func NewCostLedgerRepository(client *Client) *CostLedgerRepository {
	return &CostLedgerRepository{client: client}
}

// Create 追加流水，重复投递的同一 ID 被忽略
func (r *CostLedgerRepository) Create(ctx context.Context, entry *entity.CostLedgerEntry) error {
	ctx, span := tracer.Start(ctx, "postgres.CostLedgerRepository.Create")
	defer span.End()

	db := conn(ctx, r.client.db)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create cost ledger entry: %w", err)
	}
	return nil
}

func (r *CostLedgerRepository) SumByUser(ctx context.Context, userID string, startInclusive, endExclusive time.Time) (decimal.Decimal, error) {
	ctx, span := tracer.Start(ctx, "postgres.CostLedgerRepository.SumByUser")
	defer span.End()

	db := conn(ctx, r.client.db)

	var total decimal.NullDecimal
	row := db.Model(&entity.CostLedgerEntry{}).
		Select("SUM(cost)").
		Where("user_id = ? AND created_at >= ? AND created_at < ?", userID, startInclusive.UTC(), endExclusive.UTC()).
		Row()
	if err := row.Scan(&total); err != nil {
		span.RecordError(err)
		return decimal.Zero, fmt.Errorf("failed to sum cost ledger: %w", err)
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}
