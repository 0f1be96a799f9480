package classify

import (
	"strings"

	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
)

// dangerousCategories receive a fixed risk bonus.
var dangerousCategories = map[domain.Category]bool{
	domain.CategoryFire:             true,
	domain.CategoryAssault:          true,
	domain.CategoryMedicalEmergency: true,
}

// RiskInput carries everything the risk formula consumes.
type RiskInput struct {
	Title          string
	Description    string
	Category       domain.Category
	Severity       domain.Severity
	DuplicateCount int
}

// RiskScorer computes a heuristic risk score in [0,1] from an additive
// formula: a severity base plus capped keyword, duplicate and category
// contributions, minus a capped de-escalation discount.
type RiskScorer struct {
	cfg config.RiskConfig
}

// NewRiskScorer creates a risk scorer.
func NewRiskScorer(cfg config.RiskConfig) *RiskScorer {
	return &RiskScorer{cfg: cfg}
}

// Score computes the risk score for in.
func (r *RiskScorer) Score(in RiskInput) float64 {
	text := NormalizeText(in.Title + " " + in.Description)

	score := r.severityBase(in.Severity)

	highRisk := countTerms(text, highRiskTerms)
	score += clamp(float64(highRisk)*r.cfg.HighRiskKeywordStep, 0, r.cfg.HighRiskKeywordCap)

	urgency := countTerms(text, urgencyTerms)
	score += clamp(float64(urgency)*r.cfg.UrgencyKeywordStep, 0, r.cfg.UrgencyKeywordCap)

	if in.DuplicateCount > 0 {
		score += clamp(float64(in.DuplicateCount)*r.cfg.DuplicateStep, 0, r.cfg.DuplicateCap)
	}

	if dangerousCategories[in.Category] {
		score += r.cfg.DangerousCategory
	}

	if countTerms(text, deathTerms) > 0 {
		score += r.cfg.DeathTermBonus
	}

	deEscalation := countTerms(text, deEscalationTerms)
	score -= clamp(float64(deEscalation)*r.cfg.DeEscalationStep, 0, r.cfg.DeEscalationCap)

	return clamp(score, 0, 1)
}

// MapSeverity maps a risk score back onto a severity level.
func (r *RiskScorer) MapSeverity(score float64) domain.Severity {
	switch {
	case score >= r.cfg.SeverityCriticalFrom:
		return domain.SeverityCritical
	case score >= r.cfg.SeverityHighFrom:
		return domain.SeverityHigh
	case score >= r.cfg.SeverityMediumFrom:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

func (r *RiskScorer) severityBase(s domain.Severity) float64 {
	switch s {
	case domain.SeverityCritical:
		return r.cfg.BaseCritical
	case domain.SeverityHigh:
		return r.cfg.BaseHigh
	case domain.SeverityMedium:
		return r.cfg.BaseMedium
	default:
		return r.cfg.BaseLow
	}
}

// countTerms counts how many distinct lexicon entries appear in the
// normalized text. Repeats of the same entry count once.
func countTerms(text string, terms []string) int {
	count := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			count++
		}
	}
	return count
}
