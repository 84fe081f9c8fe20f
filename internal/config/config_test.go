package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const baseYAML = `
app:
  name: storyloom-ai-api
ai:
  cache:
    default_ttl: 2h
    ttl:
      avatar: 168h
  quota:
    backend: ${TEST_QUOTA_BACKEND:redis}
    default_limit: 40
    limits:
      cover-art: 5
  pricing:
    per_call:
      avatar: "0.04"
    per_1k_tokens: "0.002"
  ledger:
    mode: direct
security:
  jwt:
    enabled: true
    secret: ${TEST_JWT_SECRET:dev-secret}
`

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestLoadFrom(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "config.yaml", baseYAML)
	writeConfig(t, dir, "config.test.yaml", "ai:\n  ledger:\n    mode: stream\n")
	t.Setenv("APP_ENV", "test")
	t.Setenv("TEST_QUOTA_BACKEND", "postgres")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, QuotaBackendPostgres, cfg.AI.Quota.Backend)
	assert.Equal(t, LedgerModeStream, cfg.AI.Ledger.Mode)
	assert.Equal(t, "dev-secret", cfg.Security.JWT.Secret)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)

	assert.Equal(t, 168*time.Hour, cfg.AI.Cache.CacheTTL("avatar"))
	assert.Equal(t, 2*time.Hour, cfg.AI.Cache.CacheTTL("summary"))
	assert.Equal(t, 5, cfg.AI.Quota.DailyLimit("COVER-ART"))
	assert.Equal(t, 40, cfg.AI.Quota.DailyLimit("enhance"))
	assert.True(t, decimal.RequireFromString("0.04").Equal(cfg.AI.Pricing.CallPrice("avatar")))
	assert.True(t, cfg.AI.Pricing.CallPrice("enhance").IsZero())
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("STORYLOOM_SET", "value")

	assert.Equal(t, "value", expandEnv("${STORYLOOM_SET:other}"))
	assert.Equal(t, "fallback", expandEnv("${STORYLOOM_UNSET_VAR:fallback}"))
	assert.Equal(t, "", expandEnv("${STORYLOOM_UNSET_VAR:}"))
	assert.Equal(t, "${STORYLOOM_UNSET_VAR}", expandEnv("${STORYLOOM_UNSET_VAR}"))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.AI.Quota.Backend = QuotaBackendRedis
		cfg.AI.Ledger.Mode = LedgerModeDirect
		cfg.AI.Pricing.PerCall = map[string]string{"avatar": "0.04"}
		return cfg
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.AI.Quota.Backend = "memcached"
	assert.ErrorContains(t, cfg.Validate(), "ai.quota.backend")

	cfg = valid()
	cfg.AI.Ledger.Mode = "kafka"
	assert.ErrorContains(t, cfg.Validate(), "ai.ledger.mode")

	cfg = valid()
	cfg.AI.Pricing.PerCall["avatar"] = "four cents"
	assert.ErrorContains(t, cfg.Validate(), "per_call.avatar")

	cfg = valid()
	cfg.Security.JWT.Enabled = true
	assert.ErrorContains(t, cfg.Validate(), "jwt.secret")

	cfg = valid()
	cfg.Image.ResponseFormat = "b64_json"
	assert.ErrorContains(t, cfg.Validate(), "requires storage.r2")

	cfg.Storage.R2 = R2Config{Bucket: "images", AccessKeyID: "ak", SecretAccessKey: "sk", AccountID: "acct"}
	assert.NoError(t, cfg.Validate())

	cfg = valid()
	cfg.Image.ResponseFormat = "url"
	assert.NoError(t, cfg.Validate())
}
