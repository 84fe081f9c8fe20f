// Package imagegen 提供基于 OpenAI Images API 的图像生成实现
package imagegen

import (
	"cmp"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/time/rate"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/service"
	"storyloom-ai-api/pkg/metrics"
)

const defaultModel = "dall-e-3"

var tracer = otel.Tracer("imagegen")

// OpenAIGenerator 使用 OpenAI Images API 生成图像
type OpenAIGenerator struct {
	client         *openai.Client
	model          string
	responseFormat string
	limiter        *rate.Limiter
}

// NewOpenAIGenerator 创建图像生成器
func NewOpenAIGenerator(cfg *config.ImageConfig, limiter *rate.Limiter, opts ...option.RequestOption) *OpenAIGenerator {
	reqOpts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(cfg.Timeout))
	}
	reqOpts = append(reqOpts, opts...)

	client := openai.NewClient(reqOpts...)
	return &OpenAIGenerator{
		client:         &client,
		model:          cmp.Or(cfg.Model, defaultModel),
		responseFormat: strings.TrimSpace(cfg.ResponseFormat),
		limiter:        limiter,
	}
}

// GenerateImage 生成单张图像，返回 URL 或图像字节
func (g *OpenAIGenerator) GenerateImage(ctx context.Context, req service.ImageRequest) (*service.ImageResult, error) {
	ctx, span := tracer.Start(ctx, "imagegen.OpenAIGenerator.GenerateImage")
	defer span.End()
	span.SetAttributes(
		attribute.String("image.model", g.model),
		attribute.Int("image.width", req.Width),
		attribute.Int("image.height", req.Height),
	)

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider throttle: %w", err)
		}
	}

	params := openai.ImageGenerateParams{
		Prompt: req.Prompt,
		Model:  openai.ImageModel(g.model),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize(fmt.Sprintf("%dx%d", req.Width, req.Height)),
	}
	if g.responseFormat != "" {
		params.ResponseFormat = openai.ImageGenerateParamsResponseFormat(g.responseFormat)
	}

	resp, err := g.client.Images.Generate(ctx, params)
	if err != nil {
		span.RecordError(err)
		metrics.ImageGenerationTotal.WithLabelValues(g.model, "error").Inc()
		return nil, fmt.Errorf("openai image generation error: %w", err)
	}

	result, err := g.toResult(resp)
	if err != nil {
		span.RecordError(err)
		metrics.ImageGenerationTotal.WithLabelValues(g.model, "error").Inc()
		return nil, err
	}

	metrics.ImageGenerationTotal.WithLabelValues(g.model, "success").Inc()
	return result, nil
}

func (g *OpenAIGenerator) toResult(resp *openai.ImagesResponse) (*service.ImageResult, error) {
	if resp == nil || len(resp.Data) == 0 {
		return nil, errors.New("no images returned")
	}

	img := resp.Data[0]
	result := &service.ImageResult{URL: img.URL, Model: g.model}
	if img.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(img.B64JSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode image payload: %w", err)
		}
		result.Data = data
		result.ContentType = http.DetectContentType(data)
	}
	if result.URL == "" && len(result.Data) == 0 {
		return nil, errors.New("empty image payload")
	}
	return result, nil
}
