package repository

import (
	"context"

	"storyloom-ai-api/internal/domain/entity"
)

// StoryRepository 故事存储只读接口
type StoryRepository interface {
	// GetStory 获取故事，不存在返回 nil, nil
	GetStory(ctx context.Context, storyID string) (*entity.Story, error)

	// ListChapters 按 sequence_number 升序返回章节投影
	ListChapters(ctx context.Context, storyID string) ([]entity.ChapterRef, error)

	// ListCharacters 返回故事下的全部角色
	ListCharacters(ctx context.Context, storyID string) ([]*entity.Character, error)
}
