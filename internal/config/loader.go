// Package config 提供配置加载功能
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

const defaultConfigDir = "configs"

// Load 从 configs/ 加载配置
func Load() (*Config, error) {
	return LoadFrom(defaultConfigDir)
}

// LoadFrom 依次合并 config.yaml、config.<APP_ENV>.yaml 与环境变量，后者覆盖前者
// 文件内容中的 ${VAR:default} 会先按环境变量展开
func LoadFrom(dir string) (*Config, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	layers := []struct {
		path     string
		optional bool
	}{
		{filepath.Join(dir, "config.yaml"), false},
		{filepath.Join(dir, "config."+env+".yaml"), true},
	}
	for _, l := range layers {
		if err := mergeFile(v, l.path, l.optional); err != nil {
			return nil, err
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func mergeFile(v *viper.Viper, path string, optional bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.MergeConfig(strings.NewReader(expandEnv(string(raw)))); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// envPattern 匹配 ${VAR} 与 ${VAR:default}
var envPattern = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// expandEnv 未设置且无默认值的变量保留原文，便于排查
func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := envPattern.FindStringSubmatch(match)
		if val, ok := os.LookupEnv(m[1]); ok {
			return val
		}
		if strings.Contains(match, ":") {
			return m[2]
		}
		return match
	})
}

// MustLoad 加载配置，失败时 panic
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 应用默认值
	v.SetDefault("app.name", "storyloom-ai-api")
	v.SetDefault("app.version", "v0.0.0")
	v.SetDefault("app.env", "development")

	// HTTP 服务器默认值
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("server.http.read_timeout", "30s")
	v.SetDefault("server.http.write_timeout", "120s")
	v.SetDefault("server.http.idle_timeout", "120s")

	// 数据库默认值
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.database", "storyloom")
	v.SetDefault("database.postgres.ssl_mode", "disable")
	v.SetDefault("database.postgres.max_open_conns", 50)
	v.SetDefault("database.postgres.max_idle_conns", 10)
	v.SetDefault("database.postgres.conn_max_lifetime", "30m")
	v.SetDefault("database.postgres.conn_max_idle_time", "5m")
	v.SetDefault("database.postgres.log_level", "warn")

	// Redis 默认值
	v.SetDefault("cache.redis.host", "localhost")
	v.SetDefault("cache.redis.port", 6379)
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.pool_size", 100)
	v.SetDefault("cache.redis.min_idle_conns", 10)
	v.SetDefault("cache.redis.dial_timeout", "5s")
	v.SetDefault("cache.redis.read_timeout", "3s")
	v.SetDefault("cache.redis.write_timeout", "3s")

	// LLM / 图像默认值
	v.SetDefault("llm.default_provider", "openai")
	v.SetDefault("image.model", "dall-e-3")
	v.SetDefault("image.timeout", "90s")
	v.SetDefault("image.response_format", "url")

	// AI 服务层默认值
	v.SetDefault("ai.cache.default_ttl", "24h")
	v.SetDefault("ai.quota.backend", "redis")
	v.SetDefault("ai.quota.default_limit", 50)
	v.SetDefault("ai.timeouts.safety", "10s")
	v.SetDefault("ai.timeouts.generation", "60s")
	v.SetDefault("ai.timeouts.image", "90s")
	v.SetDefault("ai.timeouts.bookkeeping", "5s")
	v.SetDefault("ai.pricing.per_1k_tokens", "0.002")
	v.SetDefault("ai.pricing.tokenizer_model", "gpt-4o-mini")
	v.SetDefault("ai.ledger.mode", "direct")
	v.SetDefault("ai.throttle.requests_per_second", 5)
	v.SetDefault("ai.throttle.burst", 10)

	// 消息队列默认值
	v.SetDefault("messaging.redis_stream.max_len", 100000)
	v.SetDefault("messaging.redis_stream.block_timeout", "5s")
	v.SetDefault("messaging.redis_stream.claim_interval", "30s")
	v.SetDefault("messaging.redis_stream.retry_limit", 5)
	v.SetDefault("messaging.redis_stream.retry_backoff.initial", "1s")
	v.SetDefault("messaging.redis_stream.retry_backoff.max", "1m")
	v.SetDefault("messaging.redis_stream.retry_backoff.multiplier", 2.0)

	// 可观测性默认值
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.tracing.enabled", false)
	v.SetDefault("observability.tracing.endpoint", "localhost:4317")
	v.SetDefault("observability.tracing.insecure", true)
	v.SetDefault("observability.tracing.sample_rate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")

	// 安全默认值
	v.SetDefault("security.jwt.enabled", true)
	v.SetDefault("security.jwt.issuer", "storyloom")
	v.SetDefault("security.rate_limit.enabled", true)
	v.SetDefault("security.rate_limit.requests_per_second", 20)
}
