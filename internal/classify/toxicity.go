package classify

import (
	"strings"

	"github.com/civicwatch/intake/internal/config"
)

// ToxicityResult is a toxicity assessment of incident text.
type ToxicityResult struct {
	Score   float64 `json:"score"`
	IsToxic bool    `json:"is_toxic"`
}

// ToxicityScorer estimates toxicity as the fraction of words that hit
// the profanity lexicon. Crude, but stable and always available when
// the remote scorer is not.
type ToxicityScorer struct {
	cfg config.ToxicityConfig
}

// NewToxicityScorer creates a toxicity scorer.
func NewToxicityScorer(cfg config.ToxicityConfig) *ToxicityScorer {
	return &ToxicityScorer{cfg: cfg}
}

// Score assesses the concatenated title and description. Empty text
// scores zero.
func (t *ToxicityScorer) Score(title, description string) ToxicityResult {
	// The denominator is the full whitespace word count; short words
	// like "he" and "of" dilute the score the same as any other word.
	words := strings.Fields(NormalizeText(title + " " + description))
	if len(words) == 0 {
		return ToxicityResult{}
	}

	profane := 0
	for _, w := range words {
		if _, ok := profanityLexicon[w]; ok {
			profane++
		}
	}

	score := clamp(float64(profane)/float64(len(words)), 0, 1)
	return ToxicityResult{
		Score:   score,
		IsToxic: score >= t.cfg.Threshold,
	}
}
