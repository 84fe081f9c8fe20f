package aiservice

import (
	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/domain/entity"
)

// 一致性分析动作
const (
	ActionAnalyze = "analyze"
	ActionCheck   = "check"
	ActionUpdate  = "update"
)

// pendingChapterID 待检查内容作为临时章节时使用的 ID
const pendingChapterID = "pending"

type ConsistencyInput struct {
	UserID          string
	StoryID         string
	ChapterID       string
	CheckNewContent string
	Action          string
}

type ConsistencyResult struct {
	Report *entity.ConsistencyReport
	Cached bool
}

type EnhanceInput struct {
	UserID  string
	Content string
	Context string
}

type EnhanceResult struct {
	EnhancedContent string `json:"enhancedContent"`
}

type AvatarInput struct {
	UserID      string
	StoryID     string
	Name        string
	Description string
	Style       string
	Width       int
	Height      int
}

type CoverArtInput struct {
	UserID      string
	StoryID     string
	Title       string
	Genre       string
	Description string
	Style       string
	Width       int
	Height      int
}

type ImageResult struct {
	URL    string `json:"url"`
	Cached bool   `json:"-"`
}

type SummaryInput struct {
	UserID    string
	StoryID   string
	ChapterID string
}

type SummaryResult struct {
	Summary string `json:"summary"`
	Cached  bool   `json:"-"`
}

type StyleTransferInput struct {
	UserID  string
	StoryID string
	Content string
	Style   string
}

type StyleTransferResult struct {
	Content string `json:"content"`
	Cached  bool   `json:"-"`
}

// UsageResult 当日用量
// 计数按用户共享，Limit 为各类型上限中最小的一个，即最先触发限流的阈值
type UsageResult struct {
	Date   string          `json:"date"`
	Count  int64           `json:"count"`
	Limit  int             `json:"limit"`
	Limits map[string]int  `json:"limits"`
	Cost   decimal.Decimal `json:"cost"`
}
