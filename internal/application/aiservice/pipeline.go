package aiservice

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"storyloom-ai-api/internal/application/aicache"
	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/service"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
	"storyloom-ai-api/pkg/metrics"
)

var tracer = otel.Tracer("aiservice")

// usage 计算阶段产生的计费信息
type usage struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// job 一次请求的执行描述
type job[T any] struct {
	kind    entity.AIKind
	userID  string
	storyID string

	// payload 缓存键输入，kind 不可缓存时忽略
	payload       any
	skipCacheRead bool

	// safetyText 非空时执行安全检查
	safetyText string

	compute func(ctx context.Context) (T, *usage, error)

	// persist 缓存写入后执行的额外持久化（失败只记日志）
	persist func(ctx context.Context, value T) error
}

// execute 按状态机执行：CACHE_CHECK → RATE_CHECK → SAFETY_CHECK → COMPUTE → CACHE_WRITE → USAGE_LOG
func execute[T any](ctx context.Context, s *Service, j *job[T]) (T, bool, error) {
	var zero T

	ctx = logger.WithContext(ctx, logger.AIKindKey, string(j.kind))
	ctx, span := tracer.Start(ctx, "aiservice."+string(j.kind),
		trace.WithAttributes(attribute.String("ai.kind", string(j.kind))))
	defer span.End()

	cacheable := j.kind.Cacheable() && s.cache != nil

	if cacheable && !j.skipCacheRead {
		if value, ok := lookup[T](ctx, s, j.kind, j.payload); ok {
			span.SetAttributes(attribute.Bool("ai.cached", true))
			metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "hit").Inc()
			return value, true, nil
		}
	}

	if err := s.checkQuota(ctx, j.userID, j.kind); err != nil {
		span.SetStatus(codes.Error, "quota")
		return zero, false, err
	}

	if j.safetyText != "" && s.safety != nil {
		if err := s.safety.Check(ctx, j.safetyText); err != nil {
			if errors.Is(err, apperrors.ErrSafetyRejected) {
				metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "unsafe").Inc()
			} else {
				metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "failed").Inc()
			}
			span.SetStatus(codes.Error, "safety")
			return zero, false, err
		}
	}

	start := time.Now()
	value, u, err := j.compute(ctx)
	metrics.AIComputeDuration.WithLabelValues(string(j.kind)).Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "compute")
		metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "failed").Inc()
		if u != nil {
			// 上游已计费但结果不可用：只记流水，不写缓存
			bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeouts.Bookkeeping)
			s.recordCost(bctx, j.kind, j.userID, j.storyID, u)
			cancel()
		}
		return zero, false, computeError(ctx, err)
	}

	// 调用方已取消：不写缓存也不记流水
	if ctxErr := ctx.Err(); ctxErr != nil {
		logger.Warn(ctx, "request cancelled after compute, skipping bookkeeping")
		metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "cancelled").Inc()
		return zero, false, ctxErr
	}

	bookkeep(ctx, s, j, value, u, cacheable)

	metrics.AIRequestsTotal.WithLabelValues(string(j.kind), "computed").Inc()
	return value, false, nil
}

// lookup 读缓存；读失败或反序列化失败均按未命中处理
func lookup[T any](ctx context.Context, s *Service, kind entity.AIKind, payload any) (T, bool) {
	var out T
	entry, err := s.cache.Get(ctx, kind, payload)
	if err != nil {
		logger.Warn(ctx, "cache read failed, treating as miss", "error", err)
		return out, false
	}
	if entry == nil {
		return out, false
	}
	if err := json.Unmarshal(entry.Response, &out); err != nil {
		logger.Warn(ctx, "cache entry undecodable, treating as miss", "key", entry.Key, "error", err)
		var zero T
		return zero, false
	}
	return out, true
}

func (s *Service) checkQuota(ctx context.Context, userID string, kind entity.AIKind) error {
	_, err := s.limiter.CheckAndIncrement(ctx, userID, s.dailyLimit(kind))
	if err == nil {
		return nil
	}

	var rle *quota.RateLimitExceededError
	if errors.As(err, &rle) {
		metrics.AIRequestsTotal.WithLabelValues(string(kind), "rate_limited").Inc()
		return apperrors.ErrTooManyRequests.WithError(rle)
	}
	metrics.AIRequestsTotal.WithLabelValues(string(kind), "failed").Inc()
	if apperrors.IsAppError(err) {
		return err
	}
	logger.Error(ctx, "quota store failed", err)
	return apperrors.ErrQuotaStore.WithError(err)
}

// bookkeep 在脱离调用方取消信号的上下文中完成缓存写入与用量记录
func bookkeep[T any](ctx context.Context, s *Service, j *job[T], value T, u *usage, cacheable bool) {
	bctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeouts.Bookkeeping)
	defer cancel()

	if u == nil {
		u = &usage{}
	}

	if cacheable {
		attr := aicache.Attribution{
			UserID:           j.userID,
			StoryID:          j.storyID,
			Provider:         u.Provider,
			Model:            u.Model,
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
		}
		// 缓存写入会同时追加成本流水
		if _, err := s.cache.Put(bctx, j.kind, j.payload, value, s.cost(j.kind, u), attr); err != nil {
			logger.Warn(bctx, "cache write failed", "error", err)
		}
	} else {
		s.recordCost(bctx, j.kind, j.userID, j.storyID, u)
	}

	if j.persist != nil {
		if err := j.persist(bctx, value); err != nil {
			logger.Warn(bctx, "result persistence failed", "error", err)
		}
	}
}

// recordCost 直接追加一条成本流水，失败只记日志
func (s *Service) recordCost(ctx context.Context, kind entity.AIKind, userID, storyID string, u *usage) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Record(ctx, service.CostInput{
		UserID:           userID,
		StoryID:          storyID,
		Kind:             kind,
		Cost:             s.cost(kind, u),
		Provider:         u.Provider,
		Model:            u.Model,
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
	})
	if err != nil {
		logger.Warn(ctx, "usage log failed", "error", err)
	}
}

func (s *Service) cost(kind entity.AIKind, u *usage) decimal.Decimal {
	if s.pricing == nil {
		return decimal.Zero
	}
	return s.pricing.Cost(kind, u.PromptTokens, u.CompletionTokens)
}

// computeError 将计算阶段错误映射为对外错误
func computeError(ctx context.Context, err error) error {
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return apperrors.ErrUpstreamFailure.WithDetail("upstream call timed out").WithError(err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	logger.Error(ctx, "ai compute failed", err)
	return apperrors.ErrUpstreamFailure.WithError(err)
}
