package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom-ai-api/internal/application/quota"
	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/infrastructure/messaging"
	"storyloom-ai-api/internal/infrastructure/persistence/postgres"
	"storyloom-ai-api/internal/infrastructure/persistence/redis"
)

func TestProvideUsageRepository(t *testing.T) {
	redisStore := &redis.UsageStore{}
	pgRepo := &postgres.UsageRepository{}

	cfg := &config.Config{}
	cfg.AI.Quota.Backend = config.QuotaBackendRedis
	assert.Same(t, redisStore, ProvideUsageRepository(cfg, redisStore, pgRepo))

	cfg.AI.Quota.Backend = config.QuotaBackendPostgres
	assert.Same(t, pgRepo, ProvideUsageRepository(cfg, redisStore, pgRepo))
}

func TestProvideCostRecorder(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Ledger.Mode = config.LedgerModeDirect
	assert.IsType(t, &quota.LedgerRecorder{}, ProvideCostRecorder(cfg, &postgres.CostLedgerRepository{}, &messaging.Producer{}))

	cfg.AI.Ledger.Mode = config.LedgerModeStream
	assert.IsType(t, &quota.StreamRecorder{}, ProvideCostRecorder(cfg, &postgres.CostLedgerRepository{}, &messaging.Producer{}))
}

func TestProvideImageStore_Disabled(t *testing.T) {
	store, err := ProvideImageStore(&config.Config{})
	require.NoError(t, err)
	assert.True(t, store == nil, "disabled storage must yield a nil interface")
}

func TestProvideCacheTTL(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.Cache.DefaultTTL = time.Hour
	cfg.AI.Cache.TTL = map[string]time.Duration{"avatar": 168 * time.Hour}

	ttl := ProvideCacheTTL(cfg)
	assert.Equal(t, 168*time.Hour, ttl(entity.AIKindAvatar))
	assert.Equal(t, time.Hour, ttl(entity.AIKindEnhance))
}
