package llm

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/schema"

	"storyloom-ai-api/internal/domain/service"
)

const moderationSystemPrompt = `You are a content safety classifier for a collaborative storytelling app used by all ages.
Decide whether the user text is acceptable. Violence appropriate to fiction is acceptable;
sexual content involving minors, explicit sexual content, hate speech, self-harm instructions
and real-world harm instructions are not.
Reply with exactly one line and nothing else:
SAFE
or
UNSAFE: <short reason>`

// ModerationClassifier 通过 ChatModel 实现的安全分类器
type ModerationClassifier struct {
	source   ChatModelSource
	provider string
}

// NewModerationClassifier 创建安全分类器，provider 为空使用默认 Provider
func NewModerationClassifier(source ChatModelSource, provider string) *ModerationClassifier {
	return &ModerationClassifier{source: source, provider: provider}
}

// Classify 原样返回判定字符串，判定逻辑由安全网关负责
func (c *ModerationClassifier) Classify(ctx context.Context, text string) (string, error) {
	name, _, ok := c.source.Resolve(c.provider)
	if !ok {
		return "", fmt.Errorf("provider %s not found in LLM config", name)
	}

	chatModel, err := c.source.Get(ctx, name)
	if err != nil {
		return "", err
	}

	ctx = service.WithWorkflowProvider(ctx, "moderation", name)
	out, err := chatModel.Generate(ctx, []*schema.Message{
		schema.SystemMessage(moderationSystemPrompt),
		schema.UserMessage(text),
	})
	if err != nil {
		return "", fmt.Errorf("failed to classify content: %w", err)
	}
	if out == nil {
		return "", fmt.Errorf("empty classifier response")
	}
	return out.Content, nil
}
