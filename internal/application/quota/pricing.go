package quota

import (
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/shopspring/decimal"

	"storyloom-ai-api/internal/config"
	"storyloom-ai-api/internal/domain/entity"
	"storyloom-ai-api/pkg/logger"
)

const defaultTokenizerModel = "gpt-4o-mini"

var thousand = decimal.NewFromInt(1000)

// Pricing 按 kind 固定价 + token 单价计算单次调用成本
type Pricing struct {
	cfg config.AIPricingConfig

	once sync.Once
	tkm  *tiktoken.Tiktoken
}

func NewPricing(cfg config.AIPricingConfig) *Pricing {
	return &Pricing{cfg: cfg}
}

// Cost 计算成本
func (p *Pricing) Cost(kind entity.AIKind, promptTokens, completionTokens int) decimal.Decimal {
	cost := p.cfg.CallPrice(string(kind))
	tokens := promptTokens + completionTokens
	if tokens <= 0 {
		return cost
	}
	perK := p.cfg.TokenPrice()
	if perK.IsZero() {
		return cost
	}
	return cost.Add(perK.Mul(decimal.NewFromInt(int64(tokens))).Div(thousand))
}

// EstimateTokens 上游未返回 usage 时估算 token 数
func (p *Pricing) EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	if tkm := p.encoder(); tkm != nil {
		return len(tkm.Encode(text, nil, nil))
	}
	// 粗略估算：约 4 个字符一个 token
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

func (p *Pricing) encoder() *tiktoken.Tiktoken {
	p.once.Do(func() {
		model := p.cfg.TokenizerFor
		if model == "" {
			model = defaultTokenizerModel
		}
		tkm, err := tiktoken.EncodingForModel(model)
		if err != nil {
			logger.Default().Warn("tokenizer unavailable, falling back to rune estimate", "model", model, "error", err)
			return
		}
		p.tkm = tkm
	})
	return p.tkm
}
