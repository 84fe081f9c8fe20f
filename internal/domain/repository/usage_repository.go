package repository

import "context"

// UsageRepository 每日调用计数存储
type UsageRepository interface {
	// IncrementIfBelow 原子地在 count < limit 时加一
	// allowed=false 时不产生任何写入，count 为当前值
	IncrementIfBelow(ctx context.Context, userID, day string, limit int64) (count int64, allowed bool, err error)

	// Get 返回当日计数，无记录返回 0
	Get(ctx context.Context, userID, day string) (int64, error)
}
