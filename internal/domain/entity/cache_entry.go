package entity

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// CacheEntry 内容缓存条目，写入后不可变，只能被整体覆盖
type CacheEntry struct {
	Key           string          `json:"key"`
	RequestDigest string          `json:"request_digest"`
	Response      json.RawMessage `json:"response"`
	Kind          AIKind          `json:"kind"`
	Cost          decimal.Decimal `json:"cost"`
	CreatedAt     time.Time       `json:"created_at"`
	TTL           time.Duration   `json:"ttl"`
}

// Fresh 条目在 now 时刻是否仍有效（now - created_at < ttl）
func (e *CacheEntry) Fresh(now time.Time) bool {
	if e == nil || e.TTL <= 0 {
		return false
	}
	return now.Sub(e.CreatedAt) < e.TTL
}

// ExpiresAt 过期时间
func (e *CacheEntry) ExpiresAt() time.Time {
	return e.CreatedAt.Add(e.TTL)
}
