package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storyloom-ai-api/internal/domain/entity"
)

// ConsistencyReportRepository 一致性报告快照仓储
type ConsistencyReportRepository struct {
	client *Client
}

// NewConsistencyReportRepository 创建报告仓储
func NewConsistencyReportRepository(client *Client) *ConsistencyReportRepository {
	return &ConsistencyReportRepository{client: client}
}

// Upsert 覆盖 (story_id, chapter_id) 的最新快照
func (r *ConsistencyReportRepository) Upsert(ctx context.Context, record *entity.ConsistencyReportRecord) error {
	ctx, span := tracer.Start(ctx, "postgres.ConsistencyReportRepository.Upsert")
	defer span.End()

	record.UpdatedAt = time.Now().UTC()

	db := conn(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "story_id"}, {Name: "chapter_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"score", "report", "generated_at", "updated_at"}),
	}).Create(record).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert consistency report: %w", err)
	}
	return nil
}

// GetLatest 获取最新快照
func (r *ConsistencyReportRepository) GetLatest(ctx context.Context, storyID, chapterID string) (*entity.ConsistencyReportRecord, error) {
	ctx, span := tracer.Start(ctx, "postgres.ConsistencyReportRepository.GetLatest")
	defer span.End()

	db := conn(ctx, r.client.db)
	var record entity.ConsistencyReportRecord
	if err := db.Where("story_id = ? AND chapter_id = ?", storyID, chapterID).
		First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get consistency report: %w", err)
	}
	return &record, nil
}
