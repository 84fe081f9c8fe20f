package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// usageKeyTTL 计数键保留两天，跨天后自然过期
const usageKeyTTL = 48 * time.Hour

// incrementIfBelowScript 计数小于上限时 INCR，否则不写入
// 返回 {allowed, count}
var incrementIfBelowScript = redis.NewScript(`
local c = tonumber(redis.call('GET', KEYS[1]) or '0')
if c >= tonumber(ARGV[1]) then
  return {0, c}
end
c = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], ARGV[2])
return {1, c}
`)

// UsageStore 每日调用计数，实现 repository.UsageRepository
type UsageStore struct {
	client *Client
}

// NewUsageStore 创建计数存储
func NewUsageStore(client *Client) *UsageStore {
	return &UsageStore{client: client}
}

// BuildUsageKey 构建计数键
func BuildUsageKey(userID, day string) string {
	return fmt.Sprintf("usage:%s:%s", userID, day)
}

// IncrementIfBelow 原子地检查并加一
func (s *UsageStore) IncrementIfBelow(ctx context.Context, userID, day string, limit int64) (int64, bool, error) {
	key := BuildUsageKey(userID, day)
	ctx, span := tracer.Start(ctx, "usage.IncrementIfBelow",
		trace.WithAttributes(
			attribute.String("usage.key", key),
			attribute.Int64("usage.limit", limit),
		))
	defer span.End()

	res, err := incrementIfBelowScript.Run(ctx, s.client.rdb, []string{key}, limit, int64(usageKeyTTL.Seconds())).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return 0, false, fmt.Errorf("failed to increment usage: %w", err)
	}
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected usage script result: %v", res)
	}

	allowed := res[0] == 1
	span.SetAttributes(attribute.Bool("usage.allowed", allowed), attribute.Int64("usage.count", res[1]))
	return res[1], allowed, nil
}

// Get 获取当日计数
func (s *UsageStore) Get(ctx context.Context, userID, day string) (int64, error) {
	ctx, span := tracer.Start(ctx, "usage.Get")
	defer span.End()

	n, err := s.client.rdb.Get(ctx, BuildUsageKey(userID, day)).Int64()
	if err != nil {
		if IsNil(err) {
			return 0, nil
		}
		span.RecordError(err)
		return 0, err
	}
	return n, nil
}
