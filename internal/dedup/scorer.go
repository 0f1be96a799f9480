package dedup

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
)

// SimilarityScorer scores candidate texts against a query in one batch
// call, omitting candidates below the threshold. Nil or failing scorers
// degrade to lexical similarity only.
type SimilarityScorer interface {
	Similarity(ctx context.Context, query string, candidates []string, threshold float64) ([]mlclient.SimilarityScore, error)
}

// Scorer computes weighted duplicate scores for retrieved candidates.
type Scorer struct {
	similarity   SimilarityScorer
	simThreshold float64
	cfg          config.DedupConfig
	logger       logging.Logger
}

// NewScorer creates a duplicate scorer. similarity may be nil when the
// ML scorer is disabled.
func NewScorer(similarity SimilarityScorer, simThreshold float64, cfg config.DedupConfig, logger logging.Logger) *Scorer {
	return &Scorer{
		similarity:   similarity,
		simThreshold: simThreshold,
		cfg:          cfg,
		logger:       logger,
	}
}

// Score ranks candidates against inc and returns the snapshot persisted
// on report_ml: every candidate scored, ranked descending, truncated to
// the configured limit. A perfect 1.0 requires identical text, zero
// distance, zero time gap, a non-catch-all category match and the same
// reporter.
func (s *Scorer) Score(ctx context.Context, inc *domain.Incident, candidates []domain.Incident) domain.DedupSnapshot {
	snapshot := domain.DedupSnapshot{
		GeneratedAt:  time.Now().UTC(),
		RadiusMeters: s.cfg.RadiusMeters,
		TimeHours:    windowHours(s.cfg.Window),
		Candidates:   []domain.DedupCandidate{},
	}
	if len(candidates) == 0 {
		return snapshot
	}

	incTokens := classify.TokenSet(inc.Text())
	mlScores, mlEnhanced := s.semanticScores(ctx, inc, candidates)

	scored := make([]domain.DedupCandidate, 0, len(candidates))
	for i := range candidates {
		cand := &candidates[i]

		textSim := classify.Jaccard(incTokens, classify.TokenSet(cand.Text()))
		if mlScore, ok := mlScores[i]; ok {
			// ML dominates the blend: paraphrases of the same event
			// break lexical overlap.
			textSim = s.cfg.MLBlendWeight*mlScore + (1-s.cfg.MLBlendWeight)*textSim
			textSim = math.Max(0, math.Min(1, textSim))
		}

		dist := Haversine(*inc.Latitude, *inc.Longitude, *cand.Latitude, *cand.Longitude)
		gap := inc.OccurredAt.Sub(cand.OccurredAt)
		if gap < 0 {
			gap = -gap
		}

		distScore := 1 - math.Min(dist/s.cfg.RadiusMeters, 1)
		timeScore := 1 - math.Min(gap.Hours()/windowHours(s.cfg.Window), 1)
		catScore := s.categoryScore(inc.Category, cand.Category)
		sameReporter := inc.ReporterID == cand.ReporterID

		total := s.cfg.TextWeight*textSim +
			s.cfg.DistanceWeight*distScore +
			s.cfg.TimeWeight*timeScore +
			s.cfg.CategoryWeight*catScore
		if sameReporter {
			total += s.cfg.ReporterWeight
		}
		total = math.Max(0, math.Min(1, total))

		scored = append(scored, domain.DedupCandidate{
			CandidateIncidentID: cand.ID,
			Score:               total,
			DistanceMeters:      dist,
			TimeHours:           gap.Hours(),
			TextSimilarity:      textSim,
			CategoryMatch:       catScore,
			SameReporter:        sameReporter,
		})
	}

	// Rank by score, candidate id as a deterministic tie-break.
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].CandidateIncidentID > scored[j].CandidateIncidentID
	})

	if len(scored) > s.cfg.CandidateLimit {
		scored = scored[:s.cfg.CandidateLimit]
	}

	snapshot.Candidates = scored
	snapshot.TopScore = scored[0].Score
	snapshot.MLEnhanced = mlEnhanced

	return snapshot
}

// HighConfidence reports whether the snapshot's best candidate clears
// the auto-merge threshold.
func (s *Scorer) HighConfidence(snapshot domain.DedupSnapshot) bool {
	return len(snapshot.Candidates) > 0 && snapshot.TopScore >= s.cfg.HighConfidence
}

// HighConfidenceCount counts candidates at or above the auto-merge
// threshold, the duplicate-pressure input to risk scoring.
func (s *Scorer) HighConfidenceCount(snapshot domain.DedupSnapshot) int {
	count := 0
	for _, c := range snapshot.Candidates {
		if c.Score >= s.cfg.HighConfidence {
			count++
		}
	}
	return count
}

// semanticScores fetches ML similarity for all candidates in one call.
// The map holds scores by candidate index; candidates the scorer cut at
// the threshold simply stay lexical. The bool reports whether the call
// succeeded at all.
func (s *Scorer) semanticScores(ctx context.Context, inc *domain.Incident, candidates []domain.Incident) (map[int]float64, bool) {
	if s.similarity == nil {
		return nil, false
	}

	texts := make([]string, len(candidates))
	for i := range candidates {
		texts[i] = candidates[i].Text()
	}

	results, err := s.similarity.Similarity(ctx, inc.Text(), texts, s.simThreshold)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("similarity scorer failed, using lexical overlap",
				logging.Int64("incident_id", inc.ID),
				logging.Int("candidates", len(candidates)),
				logging.Error(err))
		}
		return nil, false
	}

	scores := make(map[int]float64, len(results))
	for _, r := range results {
		if r.Index >= 0 && r.Index < len(candidates) {
			scores[r.Index] = r.Score
		}
	}
	return scores, true
}

// categoryScore scores category agreement. Two catch-all categories are
// weak evidence: uncategorized reports agree on nothing specific.
func (s *Scorer) categoryScore(a, b domain.Category) float64 {
	if a != b {
		return 0
	}
	if a == domain.CategoryOther {
		return s.cfg.OtherMatchScore
	}
	return 1
}
