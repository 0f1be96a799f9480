package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
)

func newTestRiskScorer() *RiskScorer {
	return NewRiskScorer(config.Default().Risk)
}

func TestRiskSeverityBases(t *testing.T) {
	s := newTestRiskScorer()

	tests := []struct {
		severity domain.Severity
		want     float64
	}{
		{domain.SeverityLow, 0.2},
		{domain.SeverityMedium, 0.4},
		{domain.SeverityHigh, 0.7},
		{domain.SeverityCritical, 0.9},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			got := s.Score(RiskInput{
				Title:       "Mess in the park",
				Description: "Some litter on the grass",
				Category:    domain.CategoryOther,
				Severity:    tt.severity,
			})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestRiskBounded(t *testing.T) {
	s := newTestRiskScorer()

	// Stack every escalating signal; the score must still clamp at 1.
	got := s.Score(RiskInput{
		Title: "Armed attacker with gun and knife",
		Description: "Shooting in progress right now, urgent emergency, " +
			"hostage taken, explosion heard, someone killed",
		Category:       domain.CategoryAssault,
		Severity:       domain.SeverityCritical,
		DuplicateCount: 10,
	})

	assert.LessOrEqual(t, got, 1.0)
	assert.GreaterOrEqual(t, got, 0.9)
}

func TestRiskNeverNegative(t *testing.T) {
	s := newTestRiskScorer()

	got := s.Score(RiskInput{
		Title:       "All clear, false alarm",
		Description: "Minor issue from yesterday, resolved, no longer a problem",
		Category:    domain.CategoryOther,
		Severity:    domain.SeverityLow,
	})

	assert.GreaterOrEqual(t, got, 0.0)
	assert.Less(t, got, 0.2)
}

func TestRiskMonotonicInDuplicates(t *testing.T) {
	s := newTestRiskScorer()

	base := RiskInput{
		Title:       "Loud party",
		Description: "Music shaking the walls",
		Category:    domain.CategoryNoiseComplaint,
		Severity:    domain.SeverityMedium,
	}

	prev := s.Score(base)
	for dupes := 1; dupes <= 6; dupes++ {
		in := base
		in.DuplicateCount = dupes
		got := s.Score(in)
		assert.GreaterOrEqual(t, got, prev, "dupes=%d", dupes)
		prev = got
	}

	// The duplicate contribution is capped.
	capped := base
	capped.DuplicateCount = 100
	assert.InDelta(t, prev, s.Score(capped), 1e-9)
}

func TestRiskDangerousCategoryBonus(t *testing.T) {
	s := newTestRiskScorer()

	in := RiskInput{
		Title:       "Incident at the corner store",
		Description: "Something is wrong, people are gathering outside",
		Severity:    domain.SeverityMedium,
	}

	in.Category = domain.CategoryOther
	without := s.Score(in)

	in.Category = domain.CategoryFire
	with := s.Score(in)

	assert.InDelta(t, 0.10, with-without, 1e-9)
}

func TestRiskDeEscalationDiscount(t *testing.T) {
	s := newTestRiskScorer()

	hot := s.Score(RiskInput{
		Title:       "Argument outside the bar",
		Description: "Two men shouting at each other",
		Category:    domain.CategoryOther,
		Severity:    domain.SeverityMedium,
	})
	cooled := s.Score(RiskInput{
		Title:       "Argument outside the bar",
		Description: "Two men shouting, but they calmed down and it is resolved",
		Category:    domain.CategoryOther,
		Severity:    domain.SeverityMedium,
	})

	assert.Less(t, cooled, hot)
}

func TestMapSeverity(t *testing.T) {
	s := newTestRiskScorer()

	tests := []struct {
		score float64
		want  domain.Severity
	}{
		{0.95, domain.SeverityCritical},
		{0.60, domain.SeverityCritical},
		{0.59, domain.SeverityHigh},
		{0.40, domain.SeverityHigh},
		{0.39, domain.SeverityMedium},
		{0.25, domain.SeverityMedium},
		{0.24, domain.SeverityLow},
		{0.0, domain.SeverityLow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, s.MapSeverity(tt.score), "score=%v", tt.score)
	}
}
