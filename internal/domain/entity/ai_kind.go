package entity

// AIKind AI 请求类型，同时作为缓存 key 前缀、配额与计费维度
type AIKind string

const (
	AIKindAvatar            AIKind = "avatar"
	AIKindCoverArt          AIKind = "cover-art"
	AIKindSummary           AIKind = "summary"
	AIKindNarrativeAnalysis AIKind = "narrative-analysis"
	AIKindConsistency       AIKind = "consistency"
	AIKindStyleTransfer     AIKind = "style-transfer"

	// AIKindEnhance 不经过内容缓存，仅用于配额与计费
	AIKindEnhance AIKind = "enhance"
)

// AllKinds 全部请求类型，顺序固定
var AllKinds = []AIKind{
	AIKindAvatar,
	AIKindCoverArt,
	AIKindSummary,
	AIKindNarrativeAnalysis,
	AIKindConsistency,
	AIKindStyleTransfer,
	AIKindEnhance,
}

var cacheableKinds = map[AIKind]struct{}{
	AIKindAvatar:            {},
	AIKindCoverArt:          {},
	AIKindSummary:           {},
	AIKindNarrativeAnalysis: {},
	AIKindConsistency:       {},
	AIKindStyleTransfer:     {},
}

// Cacheable 是否允许写入内容缓存
func (k AIKind) Cacheable() bool {
	_, ok := cacheableKinds[k]
	return ok
}

// Valid 是否为已知类型
func (k AIKind) Valid() bool {
	return k.Cacheable() || k == AIKindEnhance
}

func (k AIKind) String() string {
	return string(k)
}
