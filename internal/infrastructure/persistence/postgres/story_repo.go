package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"storyloom-ai-api/internal/domain/entity"
)

// StoryRepository 故事只读仓储
type StoryRepository struct {
	client *Client
}

// NewStoryRepository 创建故事仓储
func NewStoryRepository(client *Client) *StoryRepository {
	return &StoryRepository{client: client}
}

// GetStory 根据 ID 获取故事
func (r *StoryRepository) GetStory(ctx context.Context, storyID string) (*entity.Story, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.GetStory")
	defer span.End()

	db := conn(ctx, r.client.db)
	var story entity.Story
	if err := db.First(&story, "id = ?", storyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get story: %w", err)
	}
	return &story, nil
}

// ListChapters 获取故事的章节（按序号升序）
func (r *StoryRepository) ListChapters(ctx context.Context, storyID string) ([]entity.ChapterRef, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.ListChapters")
	defer span.End()

	db := conn(ctx, r.client.db)
	var chapters []*entity.Chapter
	if err := db.Where("story_id = ?", storyID).
		Order("seq_num ASC").Order("id ASC").
		Find(&chapters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}

	refs := make([]entity.ChapterRef, 0, len(chapters))
	for _, ch := range chapters {
		refs = append(refs, ch.Ref())
	}
	return refs, nil
}

// ListCharacters 获取故事的角色
func (r *StoryRepository) ListCharacters(ctx context.Context, storyID string) ([]*entity.Character, error) {
	ctx, span := tracer.Start(ctx, "postgres.StoryRepository.ListCharacters")
	defer span.End()

	db := conn(ctx, r.client.db)
	var characters []*entity.Character
	if err := db.Where("story_id = ?", storyID).
		Order("created_at ASC").Order("id ASC").
		Find(&characters).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return characters, nil
}
