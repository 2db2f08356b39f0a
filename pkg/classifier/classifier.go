// Package classifier tags questions with one category from a fixed keyword
// table.
package classifier

import (
	"strings"

	"github.com/krish9495/documind-ai-hackrx/internal/models"
)

type rule struct {
	class    models.Classification
	keywords []string
}

// Exclusion precedes coverage so "not cover" questions, which also match
// "cover", resolve to exclusion on a tie.
var table = []rule{
	{models.Exclusion, []string{"exclude", "exclusion", "not cover", "except", "limitation", "restrict", "prohibit", "bar", "cosmetic"}},
	{models.Coverage, []string{"cover", "coverage", "include", "benefit", "eligible", "reimburse", "pay", "compensate"}},
	{models.Procedure, []string{"procedure", "surgery", "treatment", "operation", "therapy", "intervention", "process"}},
	{models.Condition, []string{"condition", "requirement", "criteria", "prerequisite", "qualify", "eligible", "must", "should"}},
	{models.Amount, []string{"amount", "cost", "price", "fee", "charge", "limit", "maximum", "minimum", "sum", "value"}},
	{models.Timeline, []string{"when", "time", "period", "duration", "deadline", "date", "waiting", "grace", "term"}},
}

// Classify returns the category whose keywords occur most often in question.
// Matching is case-insensitive substring matching; ties go to the earlier
// table entry and no match yields coverage.
func Classify(question string) models.Classification {
	q := strings.ToLower(question)

	best, bestScore := models.Coverage, 0
	for _, r := range table {
		score := 0
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = r.class, score
		}
	}
	return best
}

// Scores reports how many keywords of each category the question contains.
// Categories with no match are absent.
func Scores(question string) map[models.Classification]int {
	q := strings.ToLower(question)
	scores := make(map[models.Classification]int, len(table))
	for _, r := range table {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				scores[r.class]++
			}
		}
	}
	return scores
}
