// Package wire 提供依赖注入配置
package wire

import (
	"time"

	"github.com/google/wire"

	"storyloom-ai-api/internal/application/aicache"
	"storyloom-ai-api/internal/application/aiservice"
	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/application/safety"
	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/repository"
	"storyloom-ai-api/internal/domain/service"
	"storyloom-ai-api/internal/infrastructure/imagegen"
	"storyloom-ai-api/internal/infrastructure/llm"
	"storyloom-ai-api/internal/infrastructure/messaging"
	"storyloom-ai-api/internal/infrastructure/objectstore"
	"storyloom-ai-api/internal/infrastructure/persistence/postgres"
	"storyloom-ai-api/internal/infrastructure/persistence/redis"
	"storyloom-ai-api/internal/interfaces/http/handler"
	"storyloom-ai-api/internal/interfaces/http/middleware"
	"storyloom-ai-api/internal/interfaces/http/router"
)

// BootstrapLayer bootstrap 使用的数据层
type BootstrapLayer struct {
	PgClient *postgres.Client
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTransactor,
	postgres.NewStoryRepository,
	postgres.NewConsistencyReportRepository,
	postgres.NewCostLedgerRepository,
	postgres.NewUsageRepository,
	wire.Bind(new(repository.StoryRepository), new(*postgres.StoryRepository)),
	wire.Bind(new(repository.ConsistencyReportRepository), new(*postgres.ConsistencyReportRepository)),
	wire.Bind(new(repository.CostLedgerRepository), new(*postgres.CostLedgerRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCacheStore,
	redis.NewUsageStore,
	redis.NewRateLimiter,
	wire.Bind(new(repository.CacheRepository), new(*redis.CacheStore)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// ProviderSet 外部模型 Provider
var ProviderSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideTextGenerator,
	ProvideModerationClassifier,
	ProvideImageGenerator,
	ProvideImageStore,
	wire.Bind(new(service.TextGenerator), new(*llm.TextGenerator)),
	wire.Bind(new(service.Classifier), new(*llm.ModerationClassifier)),
	wire.Bind(new(service.ImageGenerator), new(*imagegen.OpenAIGenerator)),
)

// AISet AI 门面及其依赖
var AISet = wire.NewSet(
	ProvideUsageRepository,
	ProvideCostRecorder,
	ProvideCacheTTL,
	ProvidePricing,
	ProvideSafetyGate,
	quota.NewDailyLimiter,
	aicache.NewCache,
	wire.Bind(new(aiservice.ContentCache), new(*aicache.Cache)),
	wire.Bind(new(aiservice.QuotaLimiter), new(*quota.DailyLimiter)),
	wire.Bind(new(aiservice.SafetyChecker), new(*safety.Gate)),
	wire.Bind(new(aiservice.CostCalculator), new(*quota.Pricing)),
	wire.Struct(new(aiservice.Dependencies), "*"),
	aiservice.NewService,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	ProvideHealthHandler,
	handler.NewAIHandler,
	wire.Bind(new(handler.AIService), new(*aiservice.Service)),
	router.New,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideUsageRepository 按 ai.quota.backend 选择每日计数存储
func ProvideUsageRepository(cfg *config.Config, redisStore *redis.UsageStore, pgRepo *postgres.UsageRepository) repository.UsageRepository {
	if cfg.AI.Quota.Backend == config.QuotaBackendPostgres {
		return pgRepo
	}
	return redisStore
}

// ProvideCostRecorder 按 ai.ledger.mode 选择成本流水写入方式
func ProvideCostRecorder(cfg *config.Config, ledger *postgres.CostLedgerRepository, producer *messaging.Producer) service.CostRecorder {
	if cfg.AI.Ledger.Mode == config.LedgerModeStream {
		return quota.NewStreamRecorder(producer)
	}
	return quota.NewLedgerRecorder(ledger)
}

// ProvideCacheTTL 提供按 kind 的缓存有效期
func ProvideCacheTTL(cfg *config.Config) aicache.TTLFunc {
	cacheCfg := cfg.AI.Cache
	return func(kind entity.AIKind) time.Duration {
		return cacheCfg.CacheTTL(string(kind))
	}
}

// ProvidePricing 提供计费器
func ProvidePricing(cfg *config.Config) *quota.Pricing {
	return quota.NewPricing(cfg.AI.Pricing)
}

// ProvideTextGenerator 文本生成使用默认 Provider
func ProvideTextGenerator(cfg *config.Config, factory *llm.EinoFactory) *llm.TextGenerator {
	return llm.NewTextGenerator(factory, cfg.LLM.DefaultProvider, llm.NewProviderLimiter(cfg.AI.Throttle))
}

// ProvideModerationClassifier 安全分类使用 moderation_provider，未配置时回退默认 Provider
func ProvideModerationClassifier(cfg *config.Config, factory *llm.EinoFactory) *llm.ModerationClassifier {
	provider := cfg.LLM.ModerationProvider
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}
	return llm.NewModerationClassifier(factory, provider)
}

// ProvideSafetyGate 提供安全闸门
func ProvideSafetyGate(cfg *config.Config, classifier service.Classifier) *safety.Gate {
	return safety.NewGate(classifier, cfg.AI.Timeouts.Safety)
}

// ProvideImageGenerator 图像生成与文本生成各自节流
func ProvideImageGenerator(cfg *config.Config) *imagegen.OpenAIGenerator {
	return imagegen.NewOpenAIGenerator(&cfg.Image, llm.NewProviderLimiter(cfg.AI.Throttle))
}

// ProvideImageStore 未配置 R2 时返回 nil，图片直接使用 Provider 地址
func ProvideImageStore(cfg *config.Config) (service.ImageStore, error) {
	store, err := objectstore.NewR2Store(&cfg.Storage.R2)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, nil
	}
	return store, nil
}

// ProvideHealthHandler 提供健康检查处理器
func ProvideHealthHandler(cfg *config.Config, pg *postgres.Client, redisClient *redis.Client) *handler.HealthHandler {
	return handler.NewHealthHandler(cfg.App.Version, pg, redisClient)
}
