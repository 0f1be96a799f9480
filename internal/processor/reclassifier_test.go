package processor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/testhelpers"
)

// stubClassifyScorer returns a fixed remote prediction.
type stubClassifyScorer struct {
	category   string
	confidence float64
}

func (s *stubClassifyScorer) Classify(_ context.Context, _ string) (*mlclient.ClassifyResult, error) {
	return &mlclient.ClassifyResult{Category: s.category, Confidence: s.confidence}, nil
}

func newFixture(t *testing.T, mlScorer MLScorer) (*Reclassifier, *testhelpers.MockIncidentStore) {
	t.Helper()

	cfg := config.Default()
	// Keep the limiter out of the way; intervals stay sub-millisecond.
	cfg.Reclassify.RatePerMinute = 600000
	cfg.Reclassify.BatchSize = 50

	incidents := testhelpers.NewMockIncidentStore()
	logger := logging.NewNop()
	classifier := classify.NewCategoryClassifier(cfg.Classification, logger)
	risk := classify.NewRiskScorer(cfg.Risk)

	return NewReclassifier(incidents, classifier, risk, mlScorer, nil, logger, cfg), incidents
}

func seedUncategorized(store *testhelpers.MockIncidentStore, id int64, title, description string) {
	store.Seed(domain.Incident{
		ID:          id,
		Title:       title,
		Description: description,
		Category:    domain.CategoryOther,
		Severity:    domain.SeverityLow,
		Status:      domain.StatusSubmitted,
	})
}

func TestRunReclassifiesByKeyword(t *testing.T) {
	r, store := newFixture(t, nil)
	seedUncategorized(store, 1, "Stolen bike from the rack", "My bicycle was stolen outside the library")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 0, stats.Failed)

	inc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTheft, inc.Category)
}

func TestRunLeavesUnmatchedIncidentsAlone(t *testing.T) {
	r, store := newFixture(t, nil)
	seedUncategorized(store, 1, "Mess in the park", "Some litter on the grass near the benches")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Scanned)
	assert.Equal(t, 0, stats.Updated)

	inc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryOther, inc.Category)
}

func TestRunPrefersRemotePrediction(t *testing.T) {
	scorer := &stubClassifyScorer{category: "vandalism", confidence: 0.91}
	r, store := newFixture(t, scorer)
	// No keyword in the text; only the remote scorer can place it.
	seedUncategorized(store, 1, "Mess in the park", "Some litter on the grass near the benches")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)

	inc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryVandalism, inc.Category)
}

func TestRunFallsBackWhenRemoteCategoryUnknown(t *testing.T) {
	scorer := &stubClassifyScorer{category: "llama-incident", confidence: 0.99}
	r, store := newFixture(t, scorer)
	seedUncategorized(store, 1, "Stolen bike from the rack", "My bicycle was stolen outside the library")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)

	inc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTheft, inc.Category)
}

func TestRunFallsBackWhenRemoteUnavailable(t *testing.T) {
	r, store := newFixture(t, &testhelpers.FailingMLScorer{})
	seedUncategorized(store, 1, "Stolen bike from the rack", "My bicycle was stolen outside the library")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)

	inc, err := store.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryTheft, inc.Category)
}

func TestRunSkipsRemoteOtherPrediction(t *testing.T) {
	scorer := &stubClassifyScorer{category: "other", confidence: 0.88}
	r, store := newFixture(t, scorer)
	seedUncategorized(store, 1, "Mess in the park", "Some litter on the grass near the benches")

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Updated)
}

func TestRunHonorsBatchSize(t *testing.T) {
	r, store := newFixture(t, nil)
	r.cfg.Reclassify.BatchSize = 2
	for id := int64(1); id <= 5; id++ {
		seedUncategorized(store, id, "Stolen bike from the rack", "My bicycle was stolen outside the library")
	}

	stats, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 2, stats.Updated)
}
