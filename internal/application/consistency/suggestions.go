package consistency

import "storyloom-ai-api/internal/domain/entity"

// NoCharactersSuggestion 没有角色时的唯一建议
const NoCharactersSuggestion = "No characters found. Add characters to your story to enable consistency analysis."

type suggestionInput struct {
	score          int
	issues         []entity.Issue
	characterCount int
}

type suggestionRule struct {
	name     string
	match    func(in suggestionInput) bool
	messages []string
}

// 按顺序匹配，命中第一条即返回
var suggestionRules = []suggestionRule{
	{
		name:     "no_characters",
		match:    func(in suggestionInput) bool { return in.characterCount == 0 },
		messages: []string{NoCharactersSuggestion},
	},
	{
		name:  "clean",
		match: func(in suggestionInput) bool { return len(in.issues) == 0 && in.characterCount >= 2 },
		messages: []string{
			"Great job! Your characters are consistent across chapters.",
			"Character interactions look well developed. Keep building on these relationships.",
		},
	},
	{
		name:  "remediation",
		match: func(in suggestionInput) bool { return in.score < 70 },
		messages: []string{
			"Review character descriptions and make sure key traits show up in the story.",
			"Resolve contradictory emotional states or explain the change in the narrative.",
			"Give characters more scenes together to develop their relationships.",
		},
	},
	{
		name:  "neutral",
		match: func(suggestionInput) bool { return true },
		messages: []string{
			"Good consistency overall. Address the flagged issues to polish your story.",
		},
	},
}

// Suggest 根据分数与问题生成建议
func Suggest(score int, issues []entity.Issue, characterCount int) []string {
	in := suggestionInput{score: score, issues: issues, characterCount: characterCount}
	for _, rule := range suggestionRules {
		if rule.match(in) {
			out := make([]string, len(rule.messages))
			copy(out, rule.messages)
			return out
		}
	}
	return []string{}
}
