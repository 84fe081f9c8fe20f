package dto

import (
	"strings"

	"storyloom-ai-api/internal/application/aiservice"
)

// ConsistencyRequest 一致性分析请求
type ConsistencyRequest struct {
	StoryID         string `json:"story_id" binding:"required"`
	ChapterID       string `json:"chapter_id,omitempty"`
	CheckNewContent string `json:"check_new_content,omitempty"`
	// Action analyze / check / update，默认 check
	Action string `json:"action,omitempty"`
}

func (r *ConsistencyRequest) ToInput(userID string) aiservice.ConsistencyInput {
	return aiservice.ConsistencyInput{
		UserID:          userID,
		StoryID:         strings.TrimSpace(r.StoryID),
		ChapterID:       strings.TrimSpace(r.ChapterID),
		CheckNewContent: r.CheckNewContent,
		Action:          strings.ToLower(strings.TrimSpace(r.Action)),
	}
}

// ConsistencyReportQuery 查询最近一次报告
type ConsistencyReportQuery struct {
	StoryID   string `form:"story_id" binding:"required"`
	ChapterID string `form:"chapter_id"`
}

// EnhanceRequest 文本润色请求
type EnhanceRequest struct {
	Content string `json:"content" binding:"required"`
	Context string `json:"context,omitempty"`
}

func (r *EnhanceRequest) ToInput(userID string) aiservice.EnhanceInput {
	return aiservice.EnhanceInput{UserID: userID, Content: r.Content, Context: r.Context}
}

// AvatarRequest 角色头像请求
type AvatarRequest struct {
	StoryID     string `json:"story_id,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description" binding:"required"`
	Style       string `json:"style,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

func (r *AvatarRequest) ToInput(userID string) aiservice.AvatarInput {
	return aiservice.AvatarInput{
		UserID:      userID,
		StoryID:     r.StoryID,
		Name:        r.Name,
		Description: r.Description,
		Style:       r.Style,
		Width:       r.Width,
		Height:      r.Height,
	}
}

// CoverArtRequest 封面请求
type CoverArtRequest struct {
	StoryID     string `json:"story_id,omitempty"`
	Title       string `json:"title" binding:"required"`
	Genre       string `json:"genre,omitempty"`
	Description string `json:"description,omitempty"`
	Style       string `json:"style,omitempty"`
	Width       int    `json:"width,omitempty"`
	Height      int    `json:"height,omitempty"`
}

func (r *CoverArtRequest) ToInput(userID string) aiservice.CoverArtInput {
	return aiservice.CoverArtInput{
		UserID:      userID,
		StoryID:     r.StoryID,
		Title:       r.Title,
		Genre:       r.Genre,
		Description: r.Description,
		Style:       r.Style,
		Width:       r.Width,
		Height:      r.Height,
	}
}

// SummaryRequest 故事摘要请求
type SummaryRequest struct {
	StoryID   string `json:"story_id" binding:"required"`
	ChapterID string `json:"chapter_id,omitempty"`
}

func (r *SummaryRequest) ToInput(userID string) aiservice.SummaryInput {
	return aiservice.SummaryInput{
		UserID:    userID,
		StoryID:   strings.TrimSpace(r.StoryID),
		ChapterID: strings.TrimSpace(r.ChapterID),
	}
}

// StyleTransferRequest 文风转换请求
type StyleTransferRequest struct {
	StoryID string `json:"story_id,omitempty"`
	Content string `json:"content" binding:"required"`
	Style   string `json:"style" binding:"required"`
}

func (r *StyleTransferRequest) ToInput(userID string) aiservice.StyleTransferInput {
	return aiservice.StyleTransferInput{
		UserID:  userID,
		StoryID: r.StoryID,
		Content: r.Content,
		Style:   r.Style,
	}
}
