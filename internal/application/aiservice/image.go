package aiservice

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/internal/domain/service"
	apperrors "storyloom-ai-api/pkg/errors"
	"storyloom-ai-api/pkg/logger"
)

// 图片尺寸约束
const (
	defaultImageSize = 1024
	minImageSize     = 256
	maxImageSize     = 2048
)

const (
	avatarPrefix = "avatars"
	coverPrefix  = "covers"
)

type imagePayload struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Description string `json:"description,omitempty"`
	Style       string `json:"style,omitempty"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
}

// Avatar 生成角色头像
func (s *Service) Avatar(ctx context.Context, in AvatarInput) (*ImageResult, error) {
	description := strings.TrimSpace(in.Description)
	if description == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("description is required")
	}
	width, height, err := normalizeSize(in.Width, in.Height)
	if err != nil {
		return nil, err
	}

	payload := imagePayload{
		Name:        strings.TrimSpace(in.Name),
		Description: description,
		Style:       strings.TrimSpace(in.Style),
		Width:       width,
		Height:      height,
	}
	prompt := avatarPrompt(payload)
	return s.generateImage(ctx, entity.AIKindAvatar, in.UserID, in.StoryID, avatarPrefix, payload, prompt)
}

// CoverArt 生成故事封面
func (s *Service) CoverArt(ctx context.Context, in CoverArtInput) (*ImageResult, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("title is required")
	}
	width, height, err := normalizeSize(in.Width, in.Height)
	if err != nil {
		return nil, err
	}

	payload := imagePayload{
		Title:       title,
		Genre:       strings.TrimSpace(in.Genre),
		Description: strings.TrimSpace(in.Description),
		Style:       strings.TrimSpace(in.Style),
		Width:       width,
		Height:      height,
	}
	prompt := coverPrompt(payload)
	return s.generateImage(ctx, entity.AIKindCoverArt, in.UserID, in.StoryID, coverPrefix, payload, prompt)
}

func (s *Service) generateImage(ctx context.Context, kind entity.AIKind, userID, storyID, prefix string, payload imagePayload, prompt string) (*ImageResult, error) {
	j := &job[*ImageResult]{
		kind:       kind,
		userID:     userID,
		storyID:    storyID,
		payload:    payload,
		safetyText: prompt,
		compute: func(ctx context.Context) (*ImageResult, *usage, error) {
			if s.images == nil {
				return nil, nil, apperrors.ErrServiceUnavailable.WithDetail("image generation not configured")
			}

			gctx, cancel := withTimeout(ctx, s.timeouts.Image)
			defer cancel()

			img, err := s.images.GenerateImage(gctx, service.ImageRequest{
				Prompt: prompt,
				Width:  payload.Width,
				Height: payload.Height,
			})
			if err != nil {
				return nil, nil, err
			}

			u := &usage{Provider: "image", Model: img.Model}
			url, err := s.persistImage(ctx, prefix, img)
			if err != nil {
				// 图片已生成，费用照记
				return nil, u, err
			}
			return &ImageResult{URL: url}, u, nil
		},
	}

	out, cached, err := execute(ctx, s, j)
	if err != nil {
		return nil, err
	}
	out.Cached = cached
	return out, nil
}

// persistImage 有对象存储时上传图片，失败时回退到 Provider 地址
func (s *Service) persistImage(ctx context.Context, prefix string, img *service.ImageResult) (string, error) {
	if img == nil || (img.URL == "" && len(img.Data) == 0) {
		return "", apperrors.ErrGenerationFailed.WithDetail("empty image result")
	}
	if s.store == nil || len(img.Data) == 0 {
		if img.URL == "" {
			return "", apperrors.ErrGenerationFailed.WithDetail("image returned as data but no storage is configured")
		}
		return img.URL, nil
	}

	key := objectKey(prefix, img.ContentType, s.now())
	url, err := s.store.Save(ctx, key, img.Data, img.ContentType)
	if err != nil {
		if img.URL != "" {
			logger.Warn(ctx, "image upload failed, falling back to provider url", "key", key, "error", err)
			return img.URL, nil
		}
		return "", apperrors.ErrGenerationFailed.WithDetail("failed to store image").WithError(err)
	}
	return url, nil
}

func objectKey(prefix, contentType string, now time.Time) string {
	ext := ".png"
	switch contentType {
	case "image/jpeg":
		ext = ".jpg"
	case "image/webp":
		ext = ".webp"
	}
	return path.Join(prefix, now.UTC().Format("2006/01/02"), uuid.NewString()+ext)
}

func normalizeSize(width, height int) (int, int, error) {
	if width == 0 {
		width = defaultImageSize
	}
	if height == 0 {
		height = defaultImageSize
	}
	if width < minImageSize || width > maxImageSize || height < minImageSize || height > maxImageSize {
		return 0, 0, apperrors.ErrInvalidParam.WithDetail(
			fmt.Sprintf("width and height must be between %d and %d", minImageSize, maxImageSize))
	}
	return width, height, nil
}

func avatarPrompt(p imagePayload) string {
	var b strings.Builder
	b.WriteString("Character portrait for a story")
	if p.Name != "" {
		fmt.Fprintf(&b, " of %s", p.Name)
	}
	fmt.Fprintf(&b, ". %s.", p.Description)
	if p.Style != "" {
		fmt.Fprintf(&b, " Art style: %s.", p.Style)
	}
	b.WriteString(" Head and shoulders, neutral background, no text.")
	return b.String()
}

func coverPrompt(p imagePayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Book cover illustration for a story titled %q", p.Title)
	if p.Genre != "" {
		fmt.Fprintf(&b, ", genre: %s", p.Genre)
	}
	b.WriteString(".")
	if p.Description != "" {
		fmt.Fprintf(&b, " %s.", p.Description)
	}
	if p.Style != "" {
		fmt.Fprintf(&b, " Art style: %s.", p.Style)
	}
	b.WriteString(" No text or lettering.")
	return b.String()
}
