package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicwatch/intake/internal/config"
)

func newTestToxicityScorer() *ToxicityScorer {
	return NewToxicityScorer(config.Default().Toxicity)
}

func TestToxicityScoreIsWordFraction(t *testing.T) {
	s := newTestToxicityScorer()

	// 20 words, 2 profane.
	text := "damn neighbour blasting crap music again tonight very loud " +
		"cannot sleep because the noise keeps going past midnight every night"

	result := s.Score(text, "")

	assert.InDelta(t, 0.10, result.Score, 1e-9)
	assert.False(t, result.IsToxic)
}

func TestToxicityShortWordsCountTowardTotal(t *testing.T) {
	s := newTestToxicityScorer()

	// 20 words, 2 profane, nine of them under three characters.
	text := "damn he is a bad guy and he did a lot of crap " +
		"to my dog at the park today"

	result := s.Score(text, "")

	assert.InDelta(t, 0.10, result.Score, 1e-9)
	assert.False(t, result.IsToxic)
}

func TestToxicityCleanText(t *testing.T) {
	s := newTestToxicityScorer()

	result := s.Score("Fallen tree blocking the road", "Please send someone to clear it")

	assert.Zero(t, result.Score)
	assert.False(t, result.IsToxic)
}

func TestToxicityEmptyText(t *testing.T) {
	s := newTestToxicityScorer()

	result := s.Score("", "")

	assert.Zero(t, result.Score)
	assert.False(t, result.IsToxic)
}

func TestToxicityThreshold(t *testing.T) {
	s := newTestToxicityScorer()

	// 4 words, 2 profane: score 0.5 crosses the default threshold.
	result := s.Score("stupid idiot broke window", "")

	assert.InDelta(t, 0.5, result.Score, 1e-9)
	assert.True(t, result.IsToxic)
}

func TestToxicityBounded(t *testing.T) {
	s := newTestToxicityScorer()

	result := s.Score("shit shit shit shit", "")

	assert.InDelta(t, 1.0, result.Score, 1e-9)
	assert.True(t, result.IsToxic)
}
