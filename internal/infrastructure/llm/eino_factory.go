// Package llm 提供基于 Eino 的文本生成与安全分类适配
package llm

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"storyloom-ai-api/internal/config"
)

// ChatModelSource 按 Provider 名称获取 ChatModel
type ChatModelSource interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
	Resolve(name string) (provider string, cfg config.ProviderConfig, ok bool)
}

// EinoFactory 为每个配置的 Provider 惰性创建一个 OpenAI 兼容的 ChatModel，之后复用
type EinoFactory struct {
	defaultProvider string
	providers       map[string]config.ProviderConfig
	models          map[string]func() (model.BaseChatModel, error)
}

func NewEinoFactory(cfg *config.Config) *EinoFactory {
	f := &EinoFactory{
		defaultProvider: cfg.LLM.DefaultProvider,
		providers:       cfg.LLM.Providers,
		models:          make(map[string]func() (model.BaseChatModel, error), len(cfg.LLM.Providers)),
	}
	for name, pc := range cfg.LLM.Providers {
		f.models[name] = sync.OnceValues(func() (model.BaseChatModel, error) {
			return newChatModel(name, pc)
		})
	}
	return f
}

// Resolve 空名称解析为默认 Provider
func (f *EinoFactory) Resolve(name string) (string, config.ProviderConfig, bool) {
	if name == "" {
		name = f.defaultProvider
	}
	pc, ok := f.providers[name]
	return name, pc, ok
}

func (f *EinoFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	name, _, ok := f.Resolve(name)
	if !ok {
		return nil, fmt.Errorf("llm provider %q is not configured", name)
	}
	return f.models[name]()
}

// newChatModel 只校验配置，不发起网络请求
func newChatModel(name string, pc config.ProviderConfig) (model.BaseChatModel, error) {
	temperature := float32(pc.Temperature)
	cfg := &openai.ChatModelConfig{
		APIKey:      pc.APIKey,
		BaseURL:     pc.BaseURL,
		Model:       pc.Model,
		Temperature: &temperature,
		Timeout:     pc.Timeout,
	}
	if pc.MaxTokens > 0 {
		maxTokens := pc.MaxTokens
		cfg.MaxTokens = &maxTokens
	}

	// 构造过程不依赖调用方 ctx
	m, err := openai.NewChatModel(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("create chat model for provider %s: %w", name, err)
	}
	return m, nil
}
