package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"storyloom-ai-api/internal/domain/entity"
)

// UsageRepository 每日调用计数（Postgres 后端）
type UsageRepository struct {
	client *Client
	tx     *Transactor
}

func NewUsageRepository(client *Client, tx *Transactor) *UsageRepository {
	return &UsageRepository{client: client, tx: tx}
}

// incrementIfBelowSQL 条件 upsert：计数达到上限时冲突分支不更新任何行
const incrementIfBelowSQL = `INSERT INTO ai_usage_records (user_id, usage_date, call_count, updated_at)
VALUES (?, ?, 1, ?)
ON CONFLICT (user_id, usage_date) DO UPDATE
SET call_count = ai_usage_records.call_count + 1, updated_at = excluded.updated_at
WHERE ai_usage_records.call_count < ?`

// IncrementIfBelow 原子地在 count < limit 时加一
func (r *UsageRepository) IncrementIfBelow(ctx context.Context, userID, day string, limit int64) (int64, bool, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRepository.IncrementIfBelow")
	defer span.End()

	if limit <= 0 {
		count, err := r.Get(ctx, userID, day)
		return count, false, err
	}

	var (
		count   int64
		allowed bool
	)
	err := r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		db := conn(ctx, r.client.db)

		res := db.Exec(incrementIfBelowSQL, userID, day, time.Now().UTC(), limit)
		if res.Error != nil {
			return res.Error
		}
		allowed = res.RowsAffected == 1

		return db.Model(&entity.UsageRecord{}).
			Select("call_count").
			Where("user_id = ? AND usage_date = ?", userID, day).
			Scan(&count).Error
	})
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("failed to increment usage: %w", err)
	}
	return count, allowed, nil
}

// Get 获取当日计数
func (r *UsageRepository) Get(ctx context.Context, userID, day string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.UsageRepository.Get")
	defer span.End()

	db := conn(ctx, r.client.db)
	var rec entity.UsageRecord
	if err := db.First(&rec, "user_id = ? AND usage_date = ?", userID, day).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get usage: %w", err)
	}
	return rec.CallCount, nil
}
