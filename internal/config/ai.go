package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// 配额存储后端
const (
	QuotaBackendRedis    = "redis"
	QuotaBackendPostgres = "postgres"
)

// 成本流水写入方式
const (
	LedgerModeDirect = "direct"
	LedgerModeStream = "stream"
)

// ImageResponseB64JSON 图片以 base64 数据返回
const ImageResponseB64JSON = "b64_json"

const defaultCacheTTL = 24 * time.Hour

// CacheTTL 返回 kind 的缓存有效期，未覆盖时使用默认值
func (c AICacheConfig) CacheTTL(kind string) time.Duration {
	if ttl, ok := c.TTL[strings.ToLower(kind)]; ok && ttl > 0 {
		return ttl
	}
	if c.DefaultTTL > 0 {
		return c.DefaultTTL
	}
	return defaultCacheTTL
}

// DailyLimit 返回 kind 对应的每日调用上限
func (c AIQuotaConfig) DailyLimit(kind string) int {
	if limit, ok := c.Limits[strings.ToLower(kind)]; ok {
		return limit
	}
	return c.DefaultLimit
}

// CallPrice 返回 kind 的单次调用固定成本
func (c AIPricingConfig) CallPrice(kind string) decimal.Decimal {
	raw, ok := c.PerCall[strings.ToLower(kind)]
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// TokenPrice 返回每 1K token 的成本
func (c AIPricingConfig) TokenPrice() decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(c.Per1KTokens))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// Validate 校验配置的一致性
func (c *Config) Validate() error {
	switch c.AI.Quota.Backend {
	case QuotaBackendRedis, QuotaBackendPostgres:
	default:
		return fmt.Errorf("invalid ai.quota.backend %q", c.AI.Quota.Backend)
	}

	switch c.AI.Ledger.Mode {
	case LedgerModeDirect, LedgerModeStream:
	default:
		return fmt.Errorf("invalid ai.ledger.mode %q", c.AI.Ledger.Mode)
	}

	for kind, raw := range c.AI.Pricing.PerCall {
		if _, err := decimal.NewFromString(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("invalid ai.pricing.per_call.%s: %w", kind, err)
		}
	}
	if c.AI.Pricing.Per1KTokens != "" {
		if _, err := decimal.NewFromString(strings.TrimSpace(c.AI.Pricing.Per1KTokens)); err != nil {
			return fmt.Errorf("invalid ai.pricing.per_1k_tokens: %w", err)
		}
	}

	// b64_json 只返回图片数据，没有对象存储时无法给出地址
	if strings.EqualFold(strings.TrimSpace(c.Image.ResponseFormat), ImageResponseB64JSON) && !c.Storage.R2.Enabled() {
		return fmt.Errorf("image.response_format %q requires storage.r2 to be configured", ImageResponseB64JSON)
	}

	if c.Security.JWT.Enabled && strings.TrimSpace(c.Security.JWT.Secret) == "" {
		return fmt.Errorf("security.jwt.secret is required when jwt is enabled")
	}
	return nil
}
