package classify

import (
	"sort"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
)

// Prediction is a heuristic category prediction.
type Prediction struct {
	Category        domain.Category `json:"category"`
	Confidence      float64         `json:"confidence"`
	Hits            int             `json:"hits"`
	MatchedKeywords []string        `json:"matched_keywords,omitempty"`
}

// CategoryClassifier predicts an incident category by Aho-Corasick
// keyword matching over the normalized title and description. One
// automaton covers all categories; a single pass scores every category
// at once.
type CategoryClassifier struct {
	matcher  *ahocorasick.Matcher
	keywords []string
	kwToCat  map[string]domain.Category
	cfg      config.ClassificationConfig
	logger   logging.Logger
}

// NewCategoryClassifier builds the keyword automaton.
func NewCategoryClassifier(cfg config.ClassificationConfig, logger logging.Logger) *CategoryClassifier {
	c := &CategoryClassifier{
		kwToCat: make(map[string]domain.Category),
		cfg:     cfg,
		logger:  logger,
	}

	// Deterministic automaton layout: categories in enumeration order.
	for _, cat := range domain.Categories {
		for _, kw := range categoryKeywords[cat] {
			normalized := NormalizeText(kw)
			if normalized == "" {
				continue
			}
			c.keywords = append(c.keywords, normalized)
			c.kwToCat[normalized] = cat
		}
	}
	c.matcher = ahocorasick.NewStringMatcher(c.keywords)

	if logger != nil {
		logger.Info("category classifier initialized",
			logging.Int("categories", len(categoryKeywords)),
			logging.Int("keywords", len(c.keywords)))
	}

	return c
}

// Predict scores every category against the text and returns the best
// one. No keyword hits yields the catch-all category with zero
// confidence; ties resolve to the category listed first in
// domain.Categories.
func (c *CategoryClassifier) Predict(title, description string) Prediction {
	text := NormalizeText(title + " " + description)
	hits := c.matcher.Match([]byte(text))

	hitsByCat := make(map[domain.Category]int)
	matchedByCat := make(map[domain.Category][]string)
	seen := make(map[string]bool)

	for _, hitIndex := range hits {
		if hitIndex >= len(c.keywords) {
			continue
		}
		keyword := c.keywords[hitIndex]
		if seen[keyword] {
			continue
		}
		seen[keyword] = true

		cat := c.kwToCat[keyword]
		hitsByCat[cat]++
		matchedByCat[cat] = append(matchedByCat[cat], keyword)
	}

	best := domain.CategoryOther
	bestHits := 0
	for _, cat := range domain.Categories {
		if hitsByCat[cat] > bestHits {
			best = cat
			bestHits = hitsByCat[cat]
		}
	}

	if bestHits == 0 {
		return Prediction{Category: domain.CategoryOther}
	}

	matched := matchedByCat[best]
	sort.Strings(matched)

	return Prediction{
		Category:        best,
		Confidence:      c.confidence(bestHits),
		Hits:            bestHits,
		MatchedKeywords: matched,
	}
}

// confidence maps a unique hit count to a confidence value. More
// distinct keywords mean stronger evidence, capped well below 1 so a
// heuristic guess never looks certain.
func (c *CategoryClassifier) confidence(hits int) float64 {
	return clamp(c.cfg.ConfidenceBase+c.cfg.ConfidenceStep*float64(hits), 0, c.cfg.ConfidenceCap)
}
