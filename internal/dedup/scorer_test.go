package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
)

type stubSimilarity struct {
	scores []mlclient.SimilarityScore
	err    error
	calls  int
}

func (s *stubSimilarity) Similarity(_ context.Context, _ string, _ []string, _ float64) ([]mlclient.SimilarityScore, error) {
	s.calls++
	return s.scores, s.err
}

func newTestScorer(similarity SimilarityScorer) *Scorer {
	cfg := config.Default()
	return NewScorer(similarity, cfg.ML.SimilarityThreshold, cfg.Dedup, logging.NewNop())
}

func TestScoreEmptyCandidates(t *testing.T) {
	s := newTestScorer(nil)
	inc := testIncident(1, 43.6532, -79.3832, time.Now())

	snapshot := s.Score(context.Background(), &inc, nil)

	assert.Empty(t, snapshot.Candidates)
	assert.Zero(t, snapshot.TopScore)
	assert.False(t, s.HighConfidence(snapshot))
}

func TestScoreSameEventNearbyIsHighConfidence(t *testing.T) {
	s := newTestScorer(nil)
	now := time.Now()

	inc := testIncident(1, 40.7128, -74.0060, now)
	inc.Title = "Car break-in on Elm St"
	inc.Description = "Window smashed, glovebox emptied"
	inc.Category = domain.CategoryTheft

	// Same text and category, ~7m away, two hours earlier.
	cand := testIncident(2, 40.71285, -74.00595, now.Add(-2*time.Hour))
	cand.Title = inc.Title
	cand.Description = inc.Description
	cand.Category = domain.CategoryTheft

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	require.Len(t, snapshot.Candidates, 1)
	top := snapshot.Candidates[0]
	assert.Equal(t, int64(2), top.CandidateIncidentID)
	assert.GreaterOrEqual(t, top.Score, 0.55)
	assert.True(t, s.HighConfidence(snapshot))
	assert.Equal(t, 1, s.HighConfidenceCount(snapshot))
	assert.False(t, snapshot.MLEnhanced)
}

func TestScorePerfectDuplicate(t *testing.T) {
	s := newTestScorer(nil)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	inc.Category = domain.CategoryTheft

	cand := testIncident(2, 43.6532, -79.3832, now)
	cand.Category = domain.CategoryTheft
	cand.Title = inc.Title
	cand.Description = inc.Description
	cand.ReporterID = inc.ReporterID

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	require.Len(t, snapshot.Candidates, 1)
	assert.InDelta(t, 1.0, snapshot.Candidates[0].Score, 1e-9)
	assert.True(t, snapshot.Candidates[0].SameReporter)
}

func TestScoreCatchAllCategoryScoresWeakMatch(t *testing.T) {
	s := newTestScorer(nil)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	inc.Category = domain.CategoryOther

	cand := testIncident(2, 43.6532, -79.3832, now)
	cand.Category = domain.CategoryOther

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	require.Len(t, snapshot.Candidates, 1)
	assert.InDelta(t, 0.3, snapshot.Candidates[0].CategoryMatch, 1e-9)
}

func TestScoreRankedAndTruncated(t *testing.T) {
	s := newTestScorer(nil)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	inc.Category = domain.CategoryTheft

	// Candidates get progressively further away in time.
	candidates := make([]domain.Incident, 0, 8)
	for i := 0; i < 8; i++ {
		cand := testIncident(int64(10+i), 43.6532, -79.3832, now.Add(-time.Duration(i+1)*6*time.Hour))
		cand.Category = domain.CategoryTheft
		candidates = append(candidates, cand)
	}

	snapshot := s.Score(context.Background(), &inc, candidates)

	require.Len(t, snapshot.Candidates, config.Default().Dedup.CandidateLimit)
	for i := 1; i < len(snapshot.Candidates); i++ {
		assert.GreaterOrEqual(t, snapshot.Candidates[i-1].Score, snapshot.Candidates[i].Score)
	}
	assert.Equal(t, snapshot.Candidates[0].Score, snapshot.TopScore)
	assert.Equal(t, int64(10), snapshot.Candidates[0].CandidateIncidentID)
}

func TestScoreBlendsMLSimilarity(t *testing.T) {
	similarity := &stubSimilarity{scores: []mlclient.SimilarityScore{{Index: 0, Score: 0.9}}}
	s := newTestScorer(similarity)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	cand := testIncident(2, 43.6532, -79.3832, now)
	cand.Title = inc.Title
	cand.Description = inc.Description

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	require.Len(t, snapshot.Candidates, 1)
	// Identical text has lexical similarity 1.0: 0.9*0.9 + 0.1*1.0.
	assert.InDelta(t, 0.91, snapshot.Candidates[0].TextSimilarity, 1e-9)
	assert.True(t, snapshot.MLEnhanced)
	assert.Equal(t, 1, similarity.calls)
}

func TestScoreBelowThresholdCandidateStaysLexical(t *testing.T) {
	// Scorer returns a match only for index 1; index 0 was cut at the
	// threshold and keeps its pure lexical similarity.
	similarity := &stubSimilarity{scores: []mlclient.SimilarityScore{{Index: 1, Score: 0.8}}}
	s := newTestScorer(similarity)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)

	lexical := testIncident(2, 43.6532, -79.3832, now)
	lexical.Title = inc.Title
	lexical.Description = inc.Description

	semantic := testIncident(3, 43.6532, -79.3832, now)
	semantic.Title = "Completely different words here"
	semantic.Description = "Nothing shared lexically with the query"

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{lexical, semantic})

	require.Len(t, snapshot.Candidates, 2)
	byID := map[int64]domain.DedupCandidate{}
	for _, c := range snapshot.Candidates {
		byID[c.CandidateIncidentID] = c
	}
	assert.InDelta(t, 1.0, byID[2].TextSimilarity, 1e-9)
	// Blend for the semantic match: 0.9*0.8 + 0.1*jaccard(~0).
	assert.InDelta(t, 0.72, byID[3].TextSimilarity, 0.02)
	assert.True(t, snapshot.MLEnhanced)
}

func TestScoreFallsBackWhenSimilarityFails(t *testing.T) {
	similarity := &stubSimilarity{err: errors.New("scorer down")}
	s := newTestScorer(similarity)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	cand := testIncident(2, 43.6532, -79.3832, now)
	cand.Title = inc.Title
	cand.Description = inc.Description

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	require.Len(t, snapshot.Candidates, 1)
	assert.InDelta(t, 1.0, snapshot.Candidates[0].TextSimilarity, 1e-9)
	assert.False(t, snapshot.MLEnhanced)
}

func TestScoreSnapshotMetadata(t *testing.T) {
	s := newTestScorer(nil)
	now := time.Now()

	inc := testIncident(1, 43.6532, -79.3832, now)
	cand := testIncident(2, 43.6534, -79.3832, now.Add(-30*time.Minute))

	snapshot := s.Score(context.Background(), &inc, []domain.Incident{cand})

	assert.InDelta(t, 250.0, snapshot.RadiusMeters, 1e-9)
	assert.InDelta(t, 72.0, snapshot.TimeHours, 1e-9)
	assert.WithinDuration(t, time.Now().UTC(), snapshot.GeneratedAt, 5*time.Second)
	require.Len(t, snapshot.Candidates, 1)
	assert.InDelta(t, 0.5, snapshot.Candidates[0].TimeHours, 1e-9)
	assert.InDelta(t, 22.2, snapshot.Candidates[0].DistanceMeters, 0.5)
}
