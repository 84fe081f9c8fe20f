package consistency

import (
	"fmt"
	"strings"
	"time"

	"storyloom-ai-api/internal/domain/entity"
)

// Input 一次分析的不可变快照
type Input struct {
	StoryID    string
	ChapterID  string
	Characters []*entity.Character
	Chapters   []entity.ChapterRef
	Now        time.Time
}

// Analyze 生成一致性报告，相同输入得到相同输出
func Analyze(in Input) *entity.ConsistencyReport {
	characters := SortCharacters(in.Characters)
	chapters := SortChapters(in.Chapters)

	report := &entity.ConsistencyReport{
		StoryID:        in.StoryID,
		ChapterID:      in.ChapterID,
		Characters:     []entity.CharacterSummary{},
		Relationships:  []entity.RelationshipObservation{},
		Issues:         []entity.Issue{},
		RuleSetVersion: RuleSetVersion,
		GeneratedAt:    in.Now.UTC(),
	}

	if len(characters) == 0 {
		report.Score = maxScore
		report.Suggestions = Suggest(maxScore, nil, 0)
		return report
	}

	lowered := make([]string, len(chapters))
	for i, ch := range chapters {
		lowered[i] = strings.ToLower(ch.Text)
	}

	patterns := make([]*namePattern, len(characters))
	for i, c := range characters {
		patterns[i] = compileName(c.Name)
		ex := extractWith(patterns[i], c, chapters)

		summary := entity.CharacterSummary{
			ID:              c.ID,
			Name:            c.Name,
			Appearances:     ex.Appearances,
			TotalMentions:   ex.TotalMentions(),
			Traits:          ex.Traits,
			EmotionalStates: emotionalStates(ex.Traits, c.CanonicalDescription),
			Relationships:   []string{},
		}
		if n := len(ex.Appearances); n > 0 {
			summary.FirstAppearance = ex.Appearances[0].ChapterID
			summary.LastAppearance = ex.Appearances[n-1].ChapterID
		}
		report.Characters = append(report.Characters, summary)

		if len(chapters) > 0 {
			report.Issues = append(report.Issues, keywordIssues(c, lowered)...)
		}
		report.Issues = append(report.Issues, contradictionIssues(c, summary.EmotionalStates)...)
	}

	if len(chapters) > 0 {
		report.Relationships = relationshipsWith(characters, patterns, chapters)
		report.Issues = append(report.Issues, relationshipIssues(report.Relationships, len(chapters))...)
		linkRelationships(report)
	}

	report.Score = Score(report.Issues)
	report.Suggestions = Suggest(report.Score, report.Issues, len(characters))
	return report
}

// emotionalStates 情绪标签的 token，以及出现在对立情绪表中的特征词和描述词
func emotionalStates(traits []entity.TraitObservation, description string) []string {
	seen := make(map[string]struct{})
	out := []string{}
	add := func(token string) {
		if _, ok := seen[token]; ok {
			return
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}

	for _, t := range traits {
		if t.Kind == entity.TraitKindEmotion {
			add(t.Token)
		}
	}
	for _, t := range traits {
		if isEmotionWord(t.Token) {
			add(t.Token)
		}
	}
	for _, w := range descriptionWords(description) {
		if isEmotionWord(w) {
			add(w)
		}
	}
	return out
}

func keywordIssues(c *entity.Character, loweredChapters []string) []entity.Issue {
	issues := []entity.Issue{}
	for _, kw := range Keywords(c.CanonicalDescription) {
		found := false
		for _, text := range loweredChapters {
			if strings.Contains(text, kw) {
				found = true
				break
			}
		}
		if found {
			continue
		}
		issues = append(issues, entity.Issue{
			Character:   c.Name,
			Description: fmt.Sprintf("Potential inconsistency: %q from %s's description is never mentioned in the story", kw, c.Name),
			Severity:    entity.SeverityMedium,
			Suggestion:  fmt.Sprintf("Show that %s is %s somewhere in the chapters, or update the character description.", c.Name, kw),
		})
	}
	return issues
}

func contradictionIssues(c *entity.Character, states []string) []entity.Issue {
	set := make(map[string]struct{}, len(states))
	for _, s := range states {
		set[s] = struct{}{}
	}

	issues := []entity.Issue{}
	for _, p := range antonymPairs {
		_, hasA := set[p.a]
		_, hasB := set[p.b]
		if !hasA || !hasB {
			continue
		}
		issues = append(issues, entity.Issue{
			Character:   c.Name,
			Description: fmt.Sprintf("%s is described as both %s and %s", c.Name, p.a, p.b),
			Severity:    entity.SeverityHigh,
			Suggestion:  fmt.Sprintf("Explain why %s moves from %s to %s, or keep the emotional state consistent.", c.Name, p.a, p.b),
		})
	}
	return issues
}

func relationshipIssues(relationships []entity.RelationshipObservation, totalChapters int) []entity.Issue {
	issues := []entity.Issue{}
	if totalChapters < 1 {
		return issues
	}
	for _, r := range relationships {
		co := len(r.CoOccurringChapters)
		if float64(co)/float64(totalChapters) >= relationshipThreshold {
			continue
		}
		issues = append(issues, entity.Issue{
			Description: fmt.Sprintf("%s and %s appear together in only %d of %d chapters", r.CharacterA, r.CharacterB, co, totalChapters),
			Severity:    entity.SeverityLow,
			Suggestion:  fmt.Sprintf("Consider developing the interaction between %s and %s.", r.CharacterA, r.CharacterB),
		})
	}
	return issues
}

// linkRelationships 将有同章出现的角色名写回角色画像
func linkRelationships(report *entity.ConsistencyReport) {
	byName := make(map[string]int, len(report.Characters))
	for i, c := range report.Characters {
		byName[c.Name] = i
	}
	for _, r := range report.Relationships {
		if len(r.CoOccurringChapters) == 0 {
			continue
		}
		a, b := byName[r.CharacterA], byName[r.CharacterB]
		report.Characters[a].Relationships = append(report.Characters[a].Relationships, r.CharacterB)
		report.Characters[b].Relationships = append(report.Characters[b].Relationships, r.CharacterA)
	}
}
