// Package consistency 基于词法规则的角色一致性分析
package consistency

import (
	"storyloom-ai-api/internal/domain/entity"
)

// RuleSetVersion 规则表版本，规则变化时需要同步修改以使旧缓存失效
const RuleSetVersion = "2024.1"

// 特征规则：<name> <verb> <token>，按顺序匹配
type traitRule struct {
	verbs []string
	kind  entity.TraitKind
}

var traitRules = []traitRule{
	{verbs: []string{"is", "was", "seems", "appears", "looks"}, kind: entity.TraitKindTrait},
	{verbs: []string{"has", "had", "possesses"}, kind: entity.TraitKindPossession},
	{verbs: []string{"feels", "felt"}, kind: entity.TraitKindEmotion},
}

// minTraitTokenLen 长度不超过该值的 token 视为噪声
const minTraitTokenLen = 2

// minKeywordLen 描述关键词需要严格长于该值
const minKeywordLen = 3

// 对立情绪表，顺序决定问题输出顺序
type antonymPair struct {
	a, b string
}

var antonymPairs = []antonymPair{
	{"happy", "sad"},
	{"brave", "scared"},
	{"brave", "afraid"},
	{"calm", "angry"},
	{"calm", "anxious"},
	{"cheerful", "gloomy"},
	{"confident", "insecure"},
	{"hopeful", "hopeless"},
	{"kind", "cruel"},
	{"loving", "hateful"},
	{"friendly", "hostile"},
	{"joyful", "miserable"},
}

var emotionLexicon = func() map[string]struct{} {
	m := make(map[string]struct{}, len(antonymPairs)*2)
	for _, p := range antonymPairs {
		m[p.a] = struct{}{}
		m[p.b] = struct{}{}
	}
	return m
}()

// relationshipThreshold 同章出现比例低于该值视为互动不足
const relationshipThreshold = 0.3

func isEmotionWord(token string) bool {
	_, ok := emotionLexicon[token]
	return ok
}
