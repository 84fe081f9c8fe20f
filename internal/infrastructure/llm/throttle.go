package llm

import (
	"golang.org/x/time/rate"

	"storyloom-ai-api/internal/config"
)

// NewProviderLimiter 创建 Provider 调用节流器，未配置时不限速
func NewProviderLimiter(cfg config.AIThrottleConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
}
