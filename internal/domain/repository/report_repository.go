package repository

import (
	"context"

	"storyloom-ai-api/internal/domain/entity"
)

// ConsistencyReportRepository 一致性报告快照
type ConsistencyReportRepository interface {
	// Upsert 按 (story_id, chapter_id) 覆盖最新快照
	Upsert(ctx context.Context, record *entity.ConsistencyReportRecord) error

	// GetLatest 获取最新快照，不存在返回 nil, nil
	GetLatest(ctx context.Context, storyID, chapterID string) (*entity.ConsistencyReportRecord, error)
}
