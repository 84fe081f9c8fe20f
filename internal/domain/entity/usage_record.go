package entity

import "time"

// UsageDateLayout 每日配额的日期格式（UTC）
const UsageDateLayout = "2006-01-02"

// UsageRecord 用户每日 AI 调用计数，(user_id, usage_date) 唯一
// 当天没有记录即视为 0，跨天不需要重置任务
type UsageRecord struct {
	UserID    string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	UsageDate string    `json:"usage_date" gorm:"type:varchar(10);primaryKey"`
	CallCount int64     `json:"call_count" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名
func (UsageRecord) TableName() string {
	return "ai_usage_records"
}

// UsageDay 返回 t 所在的 UTC 日期字符串
func UsageDay(t time.Time) string {
	return t.UTC().Format(UsageDateLayout)
}
