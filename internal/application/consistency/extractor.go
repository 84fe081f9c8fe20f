package consistency

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"storyloom-ai-api/internal/domain/entity"
)

// Extraction 单个角色的提取结果
type Extraction struct {
	Appearances []entity.Appearance
	Traits      []entity.TraitObservation
}

// TotalMentions 所有章节的提及次数
func (e *Extraction) TotalMentions() int {
	total := 0
	for _, a := range e.Appearances {
		total += a.Mentions
	}
	return total
}

// ChapterSet 出现过的章节
func (e *Extraction) ChapterSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.Appearances))
	for _, a := range e.Appearances {
		set[a.ChapterID] = struct{}{}
	}
	return set
}

type namePattern struct {
	mention *regexp.Regexp
	rules   []*regexp.Regexp
}

func compileName(name string) *namePattern {
	quoted := regexp.QuoteMeta(name)
	p := &namePattern{
		mention: regexp.MustCompile(`(?i)` + quoted),
		rules:   make([]*regexp.Regexp, len(traitRules)),
	}
	for i, rule := range traitRules {
		p.rules[i] = regexp.MustCompile(`(?i)` + quoted + `\s+(?:` + strings.Join(rule.verbs, "|") + `)\s+([\p{L}\p{N}_]+)`)
	}
	return p
}

// countMentions 统计整词出现次数（边界按 Unicode 字母数字判断）
func (p *namePattern) countMentions(text string) int {
	return p.scanMentions(text, -1)
}

// mentionedIn 是否整词出现
func (p *namePattern) mentionedIn(text string) bool {
	return p.scanMentions(text, 1) > 0
}

// scanMentions 逐个查找整词出现，limit < 0 表示不限
// 非整词的匹配只前移一个字符继续查找，避免吞掉与其重叠的合法出现
func (p *namePattern) scanMentions(text string, limit int) int {
	n := 0
	for pos := 0; pos <= len(text) && (limit < 0 || n < limit); {
		loc := p.mention.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end > start && isWordBoundary(text, start, end) {
			n++
			pos = end
			continue
		}
		if start >= len(text) {
			break
		}
		_, size := utf8.DecodeRuneInString(text[start:])
		pos = start + size
	}
	return n
}

func isWordBoundary(text string, start, end int) bool {
	if !leftBoundary(text, start) {
		return false
	}
	if end < len(text) {
		r, _ := utf8.DecodeRuneInString(text[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func leftBoundary(text string, start int) bool {
	if start == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(text[:start])
	return !isWordRune(r)
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Extract 提取角色在各章节中的出现次数与特征
// chapters 需已按 (sequence_number, id) 排序
func Extract(character *entity.Character, chapters []entity.ChapterRef) *Extraction {
	return extractWith(compileName(character.Name), character, chapters)
}

func extractWith(p *namePattern, character *entity.Character, chapters []entity.ChapterRef) *Extraction {
	ex := &Extraction{
		Appearances: []entity.Appearance{},
		Traits:      []entity.TraitObservation{},
	}
	index := make(map[string]int)

	for _, ch := range chapters {
		if n := p.countMentions(ch.Text); n > 0 {
			ex.Appearances = append(ex.Appearances, entity.Appearance{ChapterID: ch.ID, Mentions: n})
		}

		for i, re := range p.rules {
			for _, m := range re.FindAllStringSubmatchIndex(ch.Text, -1) {
				if !leftBoundary(ch.Text, m[0]) {
					continue
				}
				token := strings.ToLower(ch.Text[m[2]:m[3]])
				if utf8.RuneCountInString(token) <= minTraitTokenLen {
					continue
				}
				if pos, ok := index[token]; ok {
					ex.Traits[pos].Chapters = appendUnique(ex.Traits[pos].Chapters, ch.ID)
					continue
				}
				index[token] = len(ex.Traits)
				ex.Traits = append(ex.Traits, entity.TraitObservation{
					CharacterID: character.ID,
					Token:       token,
					Kind:        traitRules[i].kind,
					Chapters:    []string{ch.ID},
				})
			}
		}
	}
	return ex
}

// Relationships 计算两两角色的同章出现
// characters 与 chapters 需已排序
func Relationships(characters []*entity.Character, chapters []entity.ChapterRef) []entity.RelationshipObservation {
	patterns := make([]*namePattern, len(characters))
	for i, c := range characters {
		patterns[i] = compileName(c.Name)
	}
	return relationshipsWith(characters, patterns, chapters)
}

func relationshipsWith(characters []*entity.Character, patterns []*namePattern, chapters []entity.ChapterRef) []entity.RelationshipObservation {
	present := make([][]bool, len(characters))
	for i, p := range patterns {
		present[i] = make([]bool, len(chapters))
		for j, ch := range chapters {
			present[i][j] = p.mentionedIn(ch.Text)
		}
	}

	out := []entity.RelationshipObservation{}
	for i := 0; i < len(characters); i++ {
		for j := i + 1; j < len(characters); j++ {
			co := []string{}
			for k, ch := range chapters {
				if present[i][k] && present[j][k] {
					co = append(co, ch.ID)
				}
			}
			out = append(out, entity.RelationshipObservation{
				CharacterA:          characters[i].Name,
				CharacterB:          characters[j].Name,
				CoOccurringChapters: co,
			})
		}
	}
	return out
}

// Keywords 描述中长于 3 个字符的词，小写去重并保持首次出现顺序
func Keywords(description string) []string {
	out := []string{}
	for _, w := range descriptionWords(description) {
		if utf8.RuneCountInString(w) > minKeywordLen {
			out = append(out, w)
		}
	}
	return out
}

func descriptionWords(description string) []string {
	fields := strings.FieldsFunc(strings.ToLower(description), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// SortCharacters 按 (lower(name), id) 排序，并按小写名称去重
func SortCharacters(characters []*entity.Character) []*entity.Character {
	sorted := make([]*entity.Character, 0, len(characters))
	for _, c := range characters {
		if c == nil || strings.TrimSpace(c.Name) == "" {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		li, lj := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
		if li != lj {
			return li < lj
		}
		return sorted[i].ID < sorted[j].ID
	})

	out := sorted[:0]
	var last string
	for i, c := range sorted {
		lower := strings.ToLower(c.Name)
		if i > 0 && lower == last {
			continue
		}
		last = lower
		out = append(out, c)
	}
	return out
}

// SortChapters 按 (sequence_number, id) 排序
func SortChapters(chapters []entity.ChapterRef) []entity.ChapterRef {
	out := make([]entity.ChapterRef, len(chapters))
	copy(out, chapters)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SequenceNumber != out[j].SequenceNumber {
			return out[i].SequenceNumber < out[j].SequenceNumber
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func appendUnique(list []string, v string) []string {
	for _, s := range list {
		if s == v {
			return list
		}
	}
	return append(list, v)
}
