package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"golang.org/x/time/rate"

	"storyloom-ai-api/internal/domain/service"
)

// TextGenerator 基于 Eino ChatModel 的文本生成实现
type TextGenerator struct {
	source   ChatModelSource
	provider string
	limiter  *rate.Limiter
}

// NewTextGenerator 创建文本生成器，provider 为空使用默认 Provider
func NewTextGenerator(source ChatModelSource, provider string, limiter *rate.Limiter) *TextGenerator {
	return &TextGenerator{source: source, provider: provider, limiter: limiter}
}

// GenerateText 调用 ChatModel 生成文本
func (g *TextGenerator) GenerateText(ctx context.Context, req service.TextRequest) (*service.TextResult, error) {
	name, providerCfg, ok := g.source.Resolve(g.provider)
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := g.source.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("provider throttle: %w", err)
		}
	}

	msgs := make([]*schema.Message, 0, 2)
	if s := strings.TrimSpace(req.System); s != "" {
		msgs = append(msgs, schema.SystemMessage(s))
	}
	msgs = append(msgs, schema.UserMessage(req.Prompt))

	opts := make([]model.Option, 0, 2)
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}
	if req.Temperature > 0 {
		opts = append(opts, model.WithTemperature(req.Temperature))
	}

	ctx = service.WithProvider(ctx, name)
	if req.Workflow != "" {
		ctx = service.WithWorkflow(ctx, req.Workflow)
	}

	out, err := chatModel.Generate(ctx, msgs, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate text: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("empty llm response")
	}

	result := &service.TextResult{
		Text:     strings.TrimSpace(out.Content),
		Provider: name,
		Model:    providerCfg.Model,
	}
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		result.PromptTokens = out.ResponseMeta.Usage.PromptTokens
		result.CompletionTokens = out.ResponseMeta.Usage.CompletionTokens
	}
	return result, nil
}
