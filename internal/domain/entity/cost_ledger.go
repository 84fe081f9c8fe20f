package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CostLedgerEntry AI 成本流水，每次缓存写入或非缓存生成都会追加一条
type CostLedgerEntry struct {
	ID               string          `json:"id" gorm:"type:uuid;primaryKey"`
	UserID           string          `json:"user_id" gorm:"type:varchar(64);index;not null"`
	StoryID          string          `json:"story_id,omitempty" gorm:"type:varchar(64);index"`
	Kind             AIKind          `json:"kind" gorm:"type:varchar(32);index;not null"`
	RequestDigest    string          `json:"request_digest,omitempty" gorm:"type:varchar(64)"`
	Cost             decimal.Decimal `json:"cost" gorm:"type:numeric(12,6);not null;default:0"`
	Provider         string          `json:"provider,omitempty" gorm:"type:varchar(32)"`
	Model            string          `json:"model,omitempty" gorm:"type:varchar(64)"`
	PromptTokens     int             `json:"prompt_tokens" gorm:"not null;default:0"`
	CompletionTokens int             `json:"completion_tokens" gorm:"not null;default:0"`
	CreatedAt        time.Time       `json:"created_at" gorm:"index"`
}

// TableName 指定表名
func (CostLedgerEntry) TableName() string {
	return "ai_cost_ledger"
}

// NewCostLedgerEntry 创建流水记录
func NewCostLedgerEntry(userID, storyID string, kind AIKind, cost decimal.Decimal) *CostLedgerEntry {
	return &CostLedgerEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		StoryID:   storyID,
		Kind:      kind,
		Cost:      cost,
		CreatedAt: time.Now().UTC(),
	}
}
