package messaging

import (
	"math"
	"time"

	"storyloom-ai-api/internal/config"
)

// BackoffConfig 失败消息的重试间隔：Initial * Multiplier^n，上限 Max
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{Initial: time.Second, Max: time.Minute, Multiplier: 2}
}

// BackoffFromConfig 未配置 Initial 时使用默认值，其余字段修正到合法范围
func BackoffFromConfig(cfg config.BackoffConfig) BackoffConfig {
	if cfg.Initial <= 0 {
		return DefaultBackoffConfig()
	}
	return BackoffConfig{
		Initial:    cfg.Initial,
		Max:        max(cfg.Max, cfg.Initial),
		Multiplier: math.Max(cfg.Multiplier, 1),
	}
}

// CalculateBackoff 第 retryCount 次重试前需要等待的空闲时长
func (b BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	if retryCount <= 0 {
		return b.Initial
	}
	d := float64(b.Initial) * math.Pow(b.Multiplier, float64(retryCount))
	if d >= float64(b.Max) || math.IsInf(d, 1) {
		return b.Max
	}
	return time.Duration(d)
}
