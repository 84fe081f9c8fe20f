package aiservice

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/service"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
)

const (
	maxContentRunes = 20000
	maxStyleRunes   = 200
	// summaryInputRunes 摘要输入的最大长度，超出部分截断
	summaryInputRunes = 24000
)

const enhanceSystemPrompt = `You are a writing assistant for a collaborative storytelling app.
Improve the given passage: fix grammar, sharpen word choice and keep the author's voice, tense and point of view.
Do not add new plot events. Return only the rewritten passage.`

const styleTransferSystemPrompt = `You are a writing assistant for a collaborative storytelling app.
Rewrite the given passage in the requested style while keeping every plot event, character and fact unchanged.
Return only the rewritten passage.`

const summarySystemPrompt = `You summarize stories for a collaborative storytelling app.
Write a concise summary (at most 150 words) of the chapters provided, in the same language as the story.
Mention the main characters and the key events in order. Return only the summary.`

// Enhance 润色文本，结果不缓存
func (s *Service) Enhance(ctx context.Context, in EnhanceInput) (*EnhanceResult, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("content is required")
	}
	if utf8.RuneCountInString(content) > maxContentRunes {
		return nil, apperrors.ErrInvalidParam.WithDetail(fmt.Sprintf("content exceeds %d characters", maxContentRunes))
	}

	prompt := content
	if ctxText := strings.TrimSpace(in.Context); ctxText != "" {
		prompt = fmt.Sprintf("Story context:\n%s\n\nPassage to improve:\n%s", ctxText, content)
	}

	j := &job[*EnhanceResult]{
		kind:       entity.AIKindEnhance,
		userID:     in.UserID,
		safetyText: joinNonEmpty(content, in.Context),
		compute: func(ctx context.Context) (*EnhanceResult, *usage, error) {
			text, u, err := s.generateText(ctx, "enhance", enhanceSystemPrompt, prompt)
			if err != nil {
				return nil, nil, err
			}
			return &EnhanceResult{EnhancedContent: text}, u, nil
		},
	}

	out, _, err := execute(ctx, s, j)
	return out, err
}

// StyleTransfer 风格改写
func (s *Service) StyleTransfer(ctx context.Context, in StyleTransferInput) (*StyleTransferResult, error) {
	content := strings.TrimSpace(in.Content)
	style := strings.TrimSpace(in.Style)
	if content == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("content is required")
	}
	if style == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("style is required")
	}
	if utf8.RuneCountInString(content) > maxContentRunes || utf8.RuneCountInString(style) > maxStyleRunes {
		return nil, apperrors.ErrInvalidParam.WithDetail("content or style too long")
	}

	j := &job[*StyleTransferResult]{
		kind:       entity.AIKindStyleTransfer,
		userID:     in.UserID,
		storyID:    in.StoryID,
		payload:    map[string]string{"content": content, "style": style, "content_digest": textDigest(content)},
		safetyText: joinNonEmpty(content, style),
		compute: func(ctx context.Context) (*StyleTransferResult, *usage, error) {
			prompt := fmt.Sprintf("Target style: %s\n\nPassage:\n%s", style, content)
			text, u, err := s.generateText(ctx, "style_transfer", styleTransferSystemPrompt, prompt)
			if err != nil {
				return nil, nil, err
			}
			return &StyleTransferResult{Content: text}, u, nil
		},
	}

	out, cached, err := execute(ctx, s, j)
	if err != nil {
		return nil, err
	}
	out.Cached = cached
	return out, nil
}

// Summary 生成故事（或截至某章节）的摘要，只读已收录内容，不做安全检查
func (s *Service) Summary(ctx context.Context, in SummaryInput) (*SummaryResult, error) {
	storyID := strings.TrimSpace(in.StoryID)
	if storyID == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("story_id is required")
	}
	chapterID := strings.TrimSpace(in.ChapterID)
	ctx = logger.WithContext(ctx, logger.StoryIDKey, storyID)

	snap, err := s.loadSnapshot(ctx, storyID)
	if err != nil {
		return nil, err
	}
	chapters, err := chapterWindow(snap.chapters, chapterID)
	if err != nil {
		return nil, err
	}
	if len(chapters) == 0 {
		return nil, apperrors.ErrInvalidParam.WithDetail("story has no chapters")
	}

	digest, err := snapshotDigest(chapters, nil)
	if err != nil {
		return nil, apperrors.ErrInternalError.WithError(err)
	}

	j := &job[*SummaryResult]{
		kind:    entity.AIKindSummary,
		userID:  in.UserID,
		storyID: storyID,
		payload: map[string]string{"story_id": storyID, "chapter_id": chapterID, "snapshot": digest},
		compute: func(ctx context.Context) (*SummaryResult, *usage, error) {
			prompt := buildSummaryPrompt(snap.story, chapters)
			text, u, err := s.generateText(ctx, "summary", summarySystemPrompt, prompt)
			if err != nil {
				return nil, nil, err
			}
			return &SummaryResult{Summary: text}, u, nil
		},
	}

	out, cached, err := execute(ctx, s, j)
	if err != nil {
		return nil, err
	}
	out.Cached = cached
	return out, nil
}

// generateText 调用文本生成，Provider 未返回 token 用量时估算
func (s *Service) generateText(ctx context.Context, workflow, system, prompt string) (string, *usage, error) {
	if s.text == nil {
		return "", nil, apperrors.ErrServiceUnavailable.WithDetail("text generation not configured")
	}

	ctx, cancel := withTimeout(ctx, s.timeouts.Generation)
	defer cancel()

	res, err := s.text.GenerateText(service.WithWorkflow(ctx, workflow), service.TextRequest{
		Workflow: workflow,
		System:   system,
		Prompt:   prompt,
	})
	if err != nil {
		return "", nil, err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", nil, apperrors.ErrGenerationFailed.WithDetail("empty generation result")
	}

	u := &usage{
		Provider:         res.Provider,
		Model:            res.Model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
	}
	if u.PromptTokens == 0 && u.CompletionTokens == 0 && s.pricing != nil {
		u.PromptTokens = s.pricing.EstimateTokens(system + "\n" + prompt)
		u.CompletionTokens = s.pricing.EstimateTokens(text)
	}
	return text, u, nil
}

func buildSummaryPrompt(story *entity.Story, chapters []entity.ChapterRef) string {
	var b strings.Builder
	if story != nil && story.Title != "" {
		fmt.Fprintf(&b, "Title: %s\n\n", story.Title)
	}
	budget := summaryInputRunes
	for _, ch := range chapters {
		if budget <= 0 {
			break
		}
		text := ch.Text
		if n := utf8.RuneCountInString(text); n > budget {
			text = string([]rune(text)[:budget])
		}
		budget -= utf8.RuneCountInString(text)
		fmt.Fprintf(&b, "Chapter %d:\n%s\n\n", ch.SequenceNumber, text)
	}
	return strings.TrimSpace(b.String())
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// textDigest 全文摘要，缓存键对长字符串只取前缀，需要额外带上全文摘要
func textDigest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
