package service

import "context"

// TextRequest 文本生成请求
type TextRequest struct {
	Workflow    string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// TextResult 文本生成结果
type TextResult struct {
	Text             string
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// TextGenerator 文本生成 Provider（按次计费）
type TextGenerator interface {
	GenerateText(ctx context.Context, req TextRequest) (*TextResult, error)
}

// ImageRequest 图像生成请求
type ImageRequest struct {
	Prompt string
	Width  int
	Height int
}

// ImageResult 图像生成结果，URL 与 Data 至少有一个
type ImageResult struct {
	URL         string
	Data        []byte
	ContentType string
	Model       string
}

// ImageGenerator 图像生成 Provider
type ImageGenerator interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResult, error)
}

// ImageStore 生成图像的持久化存储
type ImageStore interface {
	// Save 保存图像并返回可公开访问的 URL
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Classifier 外部安全分类器，返回原始判定字符串
// 约定输出为 "SAFE" 或 "UNSAFE: <reason>"
type Classifier interface {
	Classify(ctx context.Context, text string) (string, error)
}
