package answer

import (
	"regexp"

	"github.com/krish9495/documind-ai-hackrx/internal/types"
)

// DefaultConfidence is reported when a response carries no confidence cue.
const DefaultConfidence = 0.8

type phraseRule struct {
	re    *regexp.Regexp
	score float64
}

// PhraseScorer reads the confidence a model states in its own words. Phrases
// match case-insensitively anywhere in the text and earlier rules win, except
// that "certain" must start a word so "uncertain" is not read as high.
type PhraseScorer struct {
	rules []phraseRule
}

var _ types.ConfidenceScorer = (*PhraseScorer)(nil)

func NewPhraseScorer() *PhraseScorer {
	return &PhraseScorer{rules: []phraseRule{
		{regexp.MustCompile(`(?i)high confidence|\bcertain`), 0.9},
		{regexp.MustCompile(`(?i)medium confidence|likely`), 0.7},
		{regexp.MustCompile(`(?i)low confidence|uncertain`), 0.5},
	}}
}

func (p *PhraseScorer) Score(text string) float64 {
	for _, r := range p.rules {
		if r.re.MatchString(text) {
			return r.score
		}
	}
	return DefaultConfidence
}
