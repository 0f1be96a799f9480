package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/dedup"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/intake"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/testhelpers"
	"github.com/civicwatch/intake/internal/workflow"
)

type apiFixture struct {
	incidents *testhelpers.MockIncidentStore
	reports   *testhelpers.MockReportStore
	mlRows    *testhelpers.MockReportMLStore
	actions   *testhelpers.MockActionStore
	router    *gin.Engine
}

func newAPIFixture() *apiFixture {
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	logger := logging.NewNop()

	f := &apiFixture{
		incidents: testhelpers.NewMockIncidentStore(),
		reports:   testhelpers.NewMockReportStore(),
		mlRows:    testhelpers.NewMockReportMLStore(),
		actions:   testhelpers.NewMockActionStore(),
	}
	links := testhelpers.NewMockLinkStore()
	notifier := testhelpers.NewRecordingNotifier()

	pipeline := intake.NewPipeline(
		f.incidents, f.reports, f.mlRows, links, f.actions,
		dedup.NewRetriever(f.incidents, cfg.Dedup, logger),
		dedup.NewScorer(nil, cfg.ML.SimilarityThreshold, cfg.Dedup, logger),
		classify.NewCategoryClassifier(cfg.Classification, logger),
		classify.NewToxicityScorer(cfg.Toxicity),
		classify.NewRiskScorer(cfg.Risk),
		nil, notifier, nil, logger, cfg,
	)
	moderation := workflow.NewService(
		f.incidents, f.reports, links, f.actions, f.mlRows, notifier, nil, logger)

	handler := NewHandler(
		pipeline, moderation,
		f.incidents, f.reports, f.mlRows, f.actions,
		nil, logger, "test")

	f.router = gin.New()
	SetupRoutes(f.router, handler, nil)
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func validSubmission() map[string]any {
	return map[string]any{
		"reporter_id": 101,
		"title":       "Graffiti on the underpass",
		"description": "Fresh spray paint across the whole wall",
		"category":    "vandalism",
		"severity":    "low",
		"latitude":    43.6532,
		"longitude":   -79.3832,
		"occurred_at": time.Now().Add(-time.Hour).Format(time.RFC3339),
	}
}

func (f *apiFixture) submit(t *testing.T) int64 {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/v1/incidents", validSubmission(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.IncidentID
}

func TestCreateIncident(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/incidents", validSubmission(), nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotZero(t, resp.IncidentID)
	assert.Equal(t, domain.StatusSubmitted, resp.Status)
	assert.Equal(t, int64(101), resp.ReporterID)
}

func TestCreateIncidentValidation(t *testing.T) {
	f := newAPIFixture()

	tests := []struct {
		name   string
		mutate func(map[string]any)
	}{
		{"missing title", func(b map[string]any) { delete(b, "title") }},
		{"missing reporter", func(b map[string]any) { delete(b, "reporter_id") }},
		{"bad occurred_at", func(b map[string]any) { b["occurred_at"] = "yesterday" }},
		{"unknown category", func(b map[string]any) { b["category"] = "gossip" }},
		{"unknown severity", func(b map[string]any) { b["severity"] = "extreme" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validSubmission()
			tt.mutate(body)
			rec := f.do(t, http.MethodPost, "/api/v1/incidents", body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestCreateIncidentAnonymousHidesReporter(t *testing.T) {
	f := newAPIFixture()

	body := validSubmission()
	body["is_anonymous"] = true
	rec := f.do(t, http.MethodPost, "/api/v1/incidents", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotContains(t, resp, "reporter_id")
}

func TestGetIncident(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%d", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, id, resp.IncidentID)
	assert.Equal(t, domain.CategoryVandalism, resp.Category)
}

func TestGetIncidentNotFound(t *testing.T) {
	f := newAPIFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/incidents/999", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetIncidentBadID(t *testing.T) {
	f := newAPIFixture()
	rec := f.do(t, http.MethodGet, "/api/v1/incidents/abc", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetIncidentML(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%d/ml", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot domain.ReportML
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.NotNil(t, snapshot.PredictedCategory)
	assert.Equal(t, domain.CategoryVandalism, *snapshot.PredictedCategory)
	require.NotNil(t, snapshot.DedupCandidates)
}

func TestGetEnrichment(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%d/enrichment", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp EnrichmentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, domain.EnrichmentSucceeded, resp.EnrichmentStatus)
}

func TestVerifyRecordsActor(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/verify", id),
		map[string]any{"notes": "confirmed on camera"},
		map[string]string{"X-Actor-ID": "42"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	verified := f.actions.ActionsOfType(domain.ActionVerified)
	require.Len(t, verified, 1)
	require.NotNil(t, verified[0].ActorID)
	assert.Equal(t, int64(42), *verified[0].ActorID)
	assert.Equal(t, "confirmed on camera", verified[0].Notes)
}

func TestTransitionRejectedConflict(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/status", id),
		map[string]any{"status": "dispatched"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestTransitionClosureWithoutOutcomeConflict(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	// Walk the incident to verified first.
	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/verify", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/status", id),
		map[string]any{"status": "police_closed"}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())
}

func TestTransitionClosureSucceeds(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/verify", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/status", id),
		map[string]any{
			"status":          "police_closed",
			"closure_outcome": "report_filed",
			"closure_details": map[string]any{"case_id": "2026-001122"},
		}, map[string]string{"X-Actor-ID": "7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	get := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%d", id), nil, nil)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(get.Body.Bytes(), &resp))
	assert.Equal(t, domain.StatusPoliceClosed, resp.Status)
	require.NotNil(t, resp.ClosureOutcome)
	assert.Equal(t, domain.OutcomeReportFiled, *resp.ClosureOutcome)
}

func TestMergeSelfRejected(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/merge", id),
		map[string]any{"canonical_incident_id": id}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDedupVerdict(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/dedup-verdict", id),
		map[string]any{"verdict": "not_duplicate"},
		map[string]string{"X-Actor-ID": "7"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/incidents/%d/dedup-verdict", id),
		map[string]any{"verdict": "maybe"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListActions(t *testing.T) {
	f := newAPIFixture()
	id := f.submit(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/incidents/%d/actions", id), nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Actions []domain.ReportAction `json:"actions"`
		Total   int                   `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	assert.Equal(t, domain.ActionCreated, resp.Actions[0].ActionType)
}

func TestMLHealthDisabled(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(t, http.MethodGet, "/api/v1/ml-health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MLHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Enabled)
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture()

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/health", nil, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/ready", nil, nil).Code)
}
