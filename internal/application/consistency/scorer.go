package consistency

import "storyloom-ai-api/internal/domain/entity"

const (
	maxScore          = 100
	issuePenalty      = 10
	highSeverityExtra = 20
)

// Score 100 - 10×问题数 - 20×高危问题数，截断到 [0, 100]
func Score(issues []entity.Issue) int {
	score := maxScore
	for _, issue := range issues {
		score -= issuePenalty
		if issue.Severity == entity.SeverityHigh {
			score -= highSeverityExtra
		}
	}
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
