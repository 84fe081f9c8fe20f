// Package entity 定义领域实体
package entity

import (
	"time"
)

// Chapter 章节（故事服务的表结构，本服务只读）
type Chapter struct {
	ID          string    `json:"id" gorm:"type:uuid;primaryKey"`
	StoryID     string    `json:"story_id" gorm:"type:uuid;index;not null"`
	SeqNum      int       `json:"seq_num" gorm:"not null"`
	Title       string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	ContentText string    `json:"content_text,omitempty" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// Ref 转换为只读投影
func (c *Chapter) Ref() ChapterRef {
	return ChapterRef{
		ID:             c.ID,
		StoryID:        c.StoryID,
		SequenceNumber: c.SeqNum,
		Text:           c.ContentText,
	}
}

// ChapterRef 分析使用的章节只读投影
type ChapterRef struct {
	ID             string `json:"id"`
	StoryID        string `json:"story_id"`
	SequenceNumber int    `json:"sequence_number"`
	Text           string `json:"text"`
}
