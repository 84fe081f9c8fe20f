package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/internal/domain/entity"
)

var cacheTracer = otel.Tracer("redis.cache")

// ttlGrace Redis 物理过期比逻辑 TTL 稍长，新鲜度以 created_at 判断
const ttlGrace = time.Minute

// CacheStore 内容缓存存储，实现 repository.CacheRepository
type CacheStore struct {
	client *Client
}

// NewCacheStore 创建内容缓存存储
func NewCacheStore(client *Client) *CacheStore {
	return &CacheStore{client: client}
}

// Get 获取缓存条目
func (s *CacheStore) Get(ctx context.Context, key string) (*entity.CacheEntry, error) {
	ctx, span := cacheTracer.Start(ctx, "cache.Get",
		trace.WithAttributes(attribute.String("cache.key", key)))
	defer span.End()

	val, err := s.client.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if IsNil(err) {
			span.SetAttributes(attribute.Bool("cache.hit", false))
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}

	var entry entity.CacheEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to unmarshal cache entry: %w", err)
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	return &entry, nil
}

// Put 写入缓存条目，同 key 直接覆盖
func (s *CacheStore) Put(ctx context.Context, entry *entity.CacheEntry) error {
	ctx, span := cacheTracer.Start(ctx, "cache.Put",
		trace.WithAttributes(
			attribute.String("cache.key", entry.Key),
			attribute.Int64("cache.ttl_ms", entry.TTL.Milliseconds()),
		))
	defer span.End()

	bytes, err := json.Marshal(entry)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to marshal cache entry: %w", err)
	}

	if err := s.client.rdb.Set(ctx, entry.Key, bytes, entry.TTL+ttlGrace).Err(); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}
