package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// slidingWindowScript 清理窗口外记录后判断是否还有余量，有则记录本次请求
// KEYS[1] 有序集合；ARGV: now_ms, window_ms, limit, member
// 返回 {allowed, count}
var slidingWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])
if count >= tonumber(ARGV[3]) then
  return {0, count}
end
redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window * 2)
return {1, count + 1}
`)

// RateLimiter 按请求频率节流（与每日配额无关），实现 middleware.RateLimiter
type RateLimiter struct {
	client *Client
	now    func() time.Time
}

func NewRateLimiter(client *Client) *RateLimiter {
	return &RateLimiter{client: client, now: time.Now}
}

// Allow 在 window 内最多放行 limit 次
func (l *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	ctx, span := tracer.Start(ctx, "ratelimit.Allow",
		trace.WithAttributes(
			attribute.String("ratelimit.key", key),
			attribute.Int("ratelimit.limit", limit),
		))
	defer span.End()

	// member 带随机后缀，同一毫秒内的请求不会互相覆盖
	member := fmt.Sprintf("%d-%s", l.now().UnixMilli(), uuid.NewString())
	res, err := slidingWindowScript.Run(ctx, l.client.rdb, []string{key},
		l.now().UnixMilli(), window.Milliseconds(), limit, member).Int64Slice()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("rate limit %s: %w", key, err)
	}
	if len(res) != 2 {
		return false, fmt.Errorf("unexpected rate limit script result: %v", res)
	}

	allowed := res[0] == 1
	span.SetAttributes(attribute.Bool("ratelimit.allowed", allowed), attribute.Int64("ratelimit.count", res[1]))
	return allowed, nil
}
