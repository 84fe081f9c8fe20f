package repository

import (
	"context"

	"storyloom-ai-api/internal/domain/entity"
)

// CacheRepository 内容缓存存储
type CacheRepository interface {
	// Get 读取条目，未命中返回 nil, nil
	Get(ctx context.Context, key string) (*entity.CacheEntry, error)

	// Put 整体写入条目（后写覆盖）
	Put(ctx context.Context, entry *entity.CacheEntry) error
}
