package entity

import (
	"time"

	"github.com/google/uuid"
)

// Severity 问题严重程度
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// TraitKind 特征类别
type TraitKind string

const (
	TraitKindTrait      TraitKind = "trait"
	TraitKindPossession TraitKind = "possession"
	TraitKindEmotion    TraitKind = "emotion"
)

// Issue 一致性问题
type Issue struct {
	Character   string   `json:"character,omitempty"`
	Description string   `json:"description"`
	Severity    Severity `json:"severity"`
	Suggestion  string   `json:"suggestion"`
}

// Appearance 角色在某章节的出现次数
type Appearance struct {
	ChapterID string `json:"chapter_id"`
	Mentions  int    `json:"mentions"`
}

// TraitObservation 单次分析中提取的特征（不单独持久化）
type TraitObservation struct {
	CharacterID string    `json:"character_id"`
	Token       string    `json:"trait_token"`
	Kind        TraitKind `json:"trait_kind"`
	Chapters    []string  `json:"chapters"`
}

// RelationshipObservation 两个角色的同章出现情况，按排序后的名称对去重
type RelationshipObservation struct {
	CharacterA          string   `json:"character_a"`
	CharacterB          string   `json:"character_b"`
	CoOccurringChapters []string `json:"co_occurring_chapters"`
}

// CharacterSummary 报告中的角色画像
type CharacterSummary struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Appearances     []Appearance       `json:"appearances"`
	TotalMentions   int                `json:"total_mentions"`
	FirstAppearance string             `json:"first_appearance,omitempty"`
	LastAppearance  string             `json:"last_appearance,omitempty"`
	Traits          []TraitObservation `json:"traits"`
	EmotionalStates []string           `json:"emotional_states"`
	Relationships   []string           `json:"relationships"`
}

// ConsistencyReport 一致性分析报告
type ConsistencyReport struct {
	StoryID        string                    `json:"story_id"`
	ChapterID      string                    `json:"chapter_id,omitempty"`
	Characters     []CharacterSummary        `json:"characters"`
	Relationships  []RelationshipObservation `json:"relationships"`
	Issues         []Issue                   `json:"issues"`
	Suggestions    []string                  `json:"suggestions"`
	Score          int                       `json:"score"`
	RuleSetVersion string                    `json:"rule_set_version"`
	GeneratedAt    time.Time                 `json:"generated_at"`
}

// ConsistencyReportRecord 按 (story_id, chapter_id) 保存的最新报告快照
// chapter_id 为空表示整本故事
type ConsistencyReportRecord struct {
	ID          string             `json:"id" gorm:"type:uuid;primaryKey"`
	StoryID     string             `json:"story_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_consistency_report_scope"`
	ChapterID   string             `json:"chapter_id" gorm:"type:varchar(64);not null;default:'';uniqueIndex:uk_consistency_report_scope"`
	Score       int                `json:"score" gorm:"not null"`
	Report      *ConsistencyReport `json:"report" gorm:"type:jsonb;serializer:json"`
	GeneratedAt time.Time          `json:"generated_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName 指定表名
func (ConsistencyReportRecord) TableName() string {
	return "consistency_reports"
}

// NewConsistencyReportRecord 由报告创建快照记录
func NewConsistencyReportRecord(report *ConsistencyReport) *ConsistencyReportRecord {
	return &ConsistencyReportRecord{
		ID:          uuid.NewString(),
		StoryID:     report.StoryID,
		ChapterID:   report.ChapterID,
		Score:       report.Score,
		Report:      report,
		GeneratedAt: report.GeneratedAt,
	}
}
