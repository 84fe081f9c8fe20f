// Package quota 提供用户每日调用配额与成本记账能力
package quota

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/repository"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/metrics"
)

// RateLimitExceededError 表示用户当日配额已耗尽
type RateLimitExceededError struct {
	UserID     string
	Limit      int64
	Used       int64
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	return fmt.Sprintf("daily quota exceeded: user=%s used=%d max=%d", e.UserID, e.Used, e.Limit)
}

// Decision 一次配额判定结果
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	Day        string
	RetryAfter time.Duration
}

// Remaining 剩余可用次数
func (d *Decision) Remaining() int64 {
	if d == nil || d.Count >= d.Limit {
		return 0
	}
	return d.Limit - d.Count
}

// DailyLimiter 按 UTC 自然日计数的用户调用配额
type DailyLimiter struct {
	repo repository.UsageRepository
	now  func() time.Time
}

func NewDailyLimiter(repo repository.UsageRepository) *DailyLimiter {
	return &DailyLimiter{
		repo: repo,
		now:  time.Now,
	}
}

// CheckAndIncrement 检查并占用一次配额。
// 被拒绝时不修改计数，返回 *RateLimitExceededError；存储异常时返回其他错误。
func (l *DailyLimiter) CheckAndIncrement(ctx context.Context, userID string, limit int) (*Decision, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("user id is required")
	}

	now := l.now().UTC()
	decision := &Decision{
		Limit:      int64(limit),
		Day:        entity.UsageDay(now),
		RetryAfter: untilNextDay(now),
	}

	if limit <= 0 {
		metrics.QuotaDecisions.WithLabelValues("denied").Inc()
		return decision, &RateLimitExceededError{UserID: userID, Limit: 0, RetryAfter: decision.RetryAfter}
	}

	count, allowed, err := l.repo.IncrementIfBelow(ctx, userID, decision.Day, int64(limit))
	if err != nil {
		metrics.QuotaDecisions.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to check daily quota: %w", err)
	}
	decision.Count = count
	decision.Allowed = allowed

	if !allowed {
		metrics.QuotaDecisions.WithLabelValues("denied").Inc()
		return decision, &RateLimitExceededError{
			UserID:     userID,
			Limit:      int64(limit),
			Used:       count,
			RetryAfter: decision.RetryAfter,
		}
	}

	metrics.QuotaDecisions.WithLabelValues("allowed").Inc()
	return decision, nil
}

// Usage 返回用户当日已用次数
func (l *DailyLimiter) Usage(ctx context.Context, userID string) (day string, count int64, err error) {
	day = entity.UsageDay(l.now())
	count, err = l.repo.Get(ctx, userID, day)
	return day, count, err
}

// DayBounds 返回 t 所在 UTC 日的 [start, end)
func DayBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

func untilNextDay(now time.Time) time.Duration {
	_, end := DayBounds(now)
	return end.Sub(now)
}
