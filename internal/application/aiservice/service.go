// Package aiservice AI 能力门面：缓存检查 → 配额 → 安全 → 计算 → 缓存写入 → 用量记录
package aiservice

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/application/aicache"
	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/repository"
	"storyloom-ai-api/internal/domain/service"
)

// ContentCache 内容缓存
type ContentCache interface {
	Get(ctx context.Context, kind entity.AIKind, payload any) (*entity.CacheEntry, error)
	Put(ctx context.Context, kind entity.AIKind, payload any, response any, cost decimal.Decimal, attr aicache.Attribution) (*entity.CacheEntry, error)
}

// QuotaLimiter 每日调用配额
type QuotaLimiter interface {
	CheckAndIncrement(ctx context.Context, userID string, limit int) (*quota.Decision, error)
	Usage(ctx context.Context, userID string) (day string, count int64, err error)
}

// SafetyChecker 付费生成前的安全检查
type SafetyChecker interface {
	Check(ctx context.Context, text string) error
}

// CostCalculator 成本计算
type CostCalculator interface {
	Cost(kind entity.AIKind, promptTokens, completionTokens int) decimal.Decimal
	EstimateTokens(text string) int
}

// Dependencies 门面依赖
type Dependencies struct {
	Cache   ContentCache
	Limiter QuotaLimiter
	Safety  SafetyChecker
	Pricing CostCalculator

	Stories repository.StoryRepository
	Reports repository.ConsistencyReportRepository
	Ledger  repository.CostLedgerRepository

	Recorder service.CostRecorder
	Text     service.TextGenerator
	Images   service.ImageGenerator
	// ImageStore 可选，为空时直接返回 Provider 的图片地址
	ImageStore service.ImageStore
}

// Service AI 服务门面
type Service struct {
	cache    ContentCache
	limiter  QuotaLimiter
	safety   SafetyChecker
	pricing  CostCalculator
	stories  repository.StoryRepository
	reports  repository.ConsistencyReportRepository
	ledger   repository.CostLedgerRepository
	recorder service.CostRecorder
	text     service.TextGenerator
	images   service.ImageGenerator
	store    service.ImageStore

	quotaCfg config.AIQuotaConfig
	timeouts config.AITimeoutsConfig
	now      func() time.Time
}

const defaultBookkeepingTimeout = 5 * time.Second

// NewService 创建 AI 服务门面
func NewService(deps Dependencies, cfg *config.Config) *Service {
	timeouts := cfg.AI.Timeouts
	if timeouts.Bookkeeping <= 0 {
		timeouts.Bookkeeping = defaultBookkeepingTimeout
	}
	return &Service{
		cache:    deps.Cache,
		limiter:  deps.Limiter,
		safety:   deps.Safety,
		pricing:  deps.Pricing,
		stories:  deps.Stories,
		reports:  deps.Reports,
		ledger:   deps.Ledger,
		recorder: deps.Recorder,
		text:     deps.Text,
		images:   deps.Images,
		store:    deps.ImageStore,
		quotaCfg: cfg.AI.Quota,
		timeouts: timeouts,
		now:      time.Now,
	}
}

func (s *Service) dailyLimit(kind entity.AIKind) int {
	return s.quotaCfg.DailyLimit(string(kind))
}

// withTimeout 外部调用超时，d <= 0 时不设置
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
