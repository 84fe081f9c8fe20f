package aicache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/repository"
	"storyloom-ai-api/internal/domain/service"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("aicache")

// TTLFunc 返回 kind 的缓存有效期
type TTLFunc func(kind entity.AIKind) time.Duration

// Attribution 写入缓存时的计费归属
type Attribution struct {
	UserID           string
	StoryID          string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Cache 内容缓存。
// 不保证同一 key 只计算一次：并发未命中会各自计算，最后写入者生效。
type Cache struct {
	store  repository.CacheRepository
	ledger service.CostRecorder
	ttl    TTLFunc
	now    func() time.Time
}

// NewCache 创建内容缓存
func NewCache(store repository.CacheRepository, ledger service.CostRecorder, ttl TTLFunc) *Cache {
	if ttl == nil {
		ttl = func(entity.AIKind) time.Duration { return 24 * time.Hour }
	}
	return &Cache{
		store:  store,
		ledger: ledger,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Get 查找有效条目，未命中或已过期返回 nil, nil
func (c *Cache) Get(ctx context.Context, kind entity.AIKind, payload any) (*entity.CacheEntry, error) {
	ctx, span := tracer.Start(ctx, "aicache.Get",
		trace.WithAttributes(attribute.String("ai.kind", string(kind))))
	defer span.End()

	key, _, err := Key(kind, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	entry, err := c.store.Get(ctx, key)
	if err != nil {
		span.RecordError(err)
		metrics.CacheLookups.WithLabelValues(string(kind), "error").Inc()
		return nil, fmt.Errorf("failed to read cache entry: %w", err)
	}
	if entry == nil || !entry.Fresh(c.now()) {
		span.SetAttributes(attribute.Bool("cache.hit", false))
		metrics.CacheLookups.WithLabelValues(string(kind), "miss").Inc()
		return nil, nil
	}

	span.SetAttributes(attribute.Bool("cache.hit", true))
	metrics.CacheLookups.WithLabelValues(string(kind), "hit").Inc()
	return entry, nil
}

// Put 写入条目并追加成本流水
// 流水在缓存写入失败时仍会追加：调用已经发生，成本需要记账
func (c *Cache) Put(ctx context.Context, kind entity.AIKind, payload any, response any, cost decimal.Decimal, attr Attribution) (*entity.CacheEntry, error) {
	ctx, span := tracer.Start(ctx, "aicache.Put",
		trace.WithAttributes(attribute.String("ai.kind", string(kind))))
	defer span.End()

	key, digest, err := Key(kind, payload)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	body, err := json.Marshal(response)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to marshal cache response: %w", err)
	}

	entry := &entity.CacheEntry{
		Key:           key,
		RequestDigest: digest,
		Response:      body,
		Kind:          kind,
		Cost:          cost,
		CreatedAt:     c.now().UTC(),
		TTL:           c.ttl(kind),
	}

	storeErr := c.store.Put(ctx, entry)
	if storeErr != nil {
		span.RecordError(storeErr)
	}

	c.appendLedger(ctx, entry, attr)

	if storeErr != nil {
		return nil, fmt.Errorf("failed to write cache entry: %w", storeErr)
	}
	return entry, nil
}

func (c *Cache) appendLedger(ctx context.Context, entry *entity.CacheEntry, attr Attribution) {
	if c.ledger == nil {
		return
	}
	err := c.ledger.Record(ctx, service.CostInput{
		UserID:           attr.UserID,
		StoryID:          attr.StoryID,
		Kind:             entry.Kind,
		RequestDigest:    entry.RequestDigest,
		Cost:             entry.Cost,
		Provider:         attr.Provider,
		Model:            attr.Model,
		PromptTokens:     attr.PromptTokens,
		CompletionTokens: attr.CompletionTokens,
	})
	if err != nil {
		logger.Warn(ctx, "failed to append cost ledger", "kind", entry.Kind, "digest", entry.RequestDigest, "error", err)
	}
}
