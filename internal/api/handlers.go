// Package api exposes the intake service over HTTP: incident
// submission, enrichment inspection, and the moderation and
// law-enforcement actions.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/civicwatch/intake/internal/database"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/intake"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/workflow"
)

// actorHeader carries the acting staff user's id. Authentication lives
// at the gateway; this service only records who acted.
const actorHeader = "X-Actor-ID"

// IncidentReader reads incidents for the query endpoints.
type IncidentReader interface {
	GetByID(ctx context.Context, id int64) (*domain.Incident, error)
}

// ReportReader resolves the report attached to an incident.
type ReportReader interface {
	GetByIncidentID(ctx context.Context, incidentID int64) (*domain.Report, error)
}

// MLReader reads scoring snapshots.
type MLReader interface {
	GetLatestByReportID(ctx context.Context, reportID int64) (*domain.ReportML, error)
}

// ActionReader reads the audit trail for an incident.
type ActionReader interface {
	ListByIncident(ctx context.Context, incidentID int64) ([]domain.ReportAction, error)
}

// HealthChecker probes the remote ML scorer.
type HealthChecker interface {
	Health(ctx context.Context) (*mlclient.HealthStatus, error)
}

// Handler handles HTTP requests for the intake API.
type Handler struct {
	pipeline   *intake.Pipeline
	moderation *workflow.Service
	incidents  IncidentReader
	reports    ReportReader
	mlRows     MLReader
	actions    ActionReader
	mlHealth   HealthChecker
	logger     logging.Logger
	version    string
}

// NewHandler creates an API handler. mlHealth may be nil when the
// remote scorer is disabled.
func NewHandler(
	pipeline *intake.Pipeline,
	moderation *workflow.Service,
	incidents IncidentReader,
	reports ReportReader,
	mlRows MLReader,
	actions ActionReader,
	mlHealth HealthChecker,
	logger logging.Logger,
	version string,
) *Handler {
	return &Handler{
		pipeline:   pipeline,
		moderation: moderation,
		incidents:  incidents,
		reports:    reports,
		mlRows:     mlRows,
		actions:    actions,
		mlHealth:   mlHealth,
		logger:     logger,
		version:    version,
	}
}

// CreateIncident handles POST /api/v1/incidents.
func (h *Handler) CreateIncident(c *gin.Context) {
	var req CreateIncidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	occurredAt, err := time.Parse(time.RFC3339, req.OccurredAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "occurred_at must be RFC 3339"})
		return
	}

	inc := &domain.Incident{
		ReporterID:   req.ReporterID,
		Title:        req.Title,
		Description:  req.Description,
		Category:     domain.Category(req.Category),
		Severity:     domain.Severity(req.Severity),
		Latitude:     req.Latitude,
		Longitude:    req.Longitude,
		LocationName: req.LocationName,
		OccurredAt:   occurredAt,
		IsDraft:      req.IsDraft,
		IsAnonymous:  req.IsAnonymous,
		PhotoURLs:    req.PhotoURLs,
	}

	result, err := h.pipeline.Submit(c.Request.Context(), inc)
	if err != nil {
		if errors.Is(err, intake.ErrInvalidSubmission) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("incident submission failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "submission failed"})
		return
	}

	h.logger.Info("incident submitted",
		logging.Int64("incident_id", result.ID),
		logging.String("status", string(result.Status)))

	c.JSON(http.StatusCreated, toIncidentResponse(result))
}

// GetIncident handles GET /api/v1/incidents/:id.
func (h *Handler) GetIncident(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	inc, err := h.incidents.GetByID(c.Request.Context(), id)
	if err != nil {
		h.replyError(c, err, "get incident")
		return
	}

	c.JSON(http.StatusOK, toIncidentResponse(inc))
}

// GetIncidentML handles GET /api/v1/incidents/:id/ml.
func (h *Handler) GetIncidentML(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByIncidentID(c.Request.Context(), id)
	if err != nil {
		h.replyError(c, err, "get report")
		return
	}

	snapshot, err := h.mlRows.GetLatestByReportID(c.Request.Context(), report.ID)
	if err != nil {
		h.replyError(c, err, "get ml snapshot")
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// GetEnrichment handles GET /api/v1/incidents/:id/enrichment.
func (h *Handler) GetEnrichment(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	report, err := h.reports.GetByIncidentID(c.Request.Context(), id)
	if err != nil {
		h.replyError(c, err, "get report")
		return
	}

	c.JSON(http.StatusOK, EnrichmentResponse{
		IncidentID:       id,
		ReportID:         report.ID,
		EnrichmentStatus: report.EnrichmentStatus,
		MLConfidence:     report.MLConfidence,
	})
}

// ListActions handles GET /api/v1/incidents/:id/actions.
func (h *Handler) ListActions(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	actions, err := h.actions.ListByIncident(c.Request.Context(), id)
	if err != nil {
		h.replyError(c, err, "list actions")
		return
	}

	c.JSON(http.StatusOK, gin.H{"actions": actions, "total": len(actions)})
}

// TransitionStatus handles POST /api/v1/incidents/:id/status.
func (h *Handler) TransitionStatus(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	t := workflow.Transition{
		To:      domain.Status(req.Status),
		Details: req.ClosureDetails,
	}
	if req.ClosureOutcome != nil {
		outcome := domain.ClosureOutcome(*req.ClosureOutcome)
		t.Outcome = &outcome
	}

	if err := h.moderation.Transition(c.Request.Context(), id, actorID(c), t); err != nil {
		h.replyError(c, err, "transition status")
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident_id": id, "status": req.Status})
}

// Verify handles POST /api/v1/incidents/:id/verify.
func (h *Handler) Verify(c *gin.Context) {
	h.moderate(c, "verify", h.moderation.Verify)
}

// Reject handles POST /api/v1/incidents/:id/reject.
func (h *Handler) Reject(c *gin.Context) {
	h.moderate(c, "reject", h.moderation.Reject)
}

// Escalate handles POST /api/v1/incidents/:id/escalate.
func (h *Handler) Escalate(c *gin.Context) {
	h.moderate(c, "escalate", h.moderation.Escalate)
}

// NeedsInfo handles POST /api/v1/incidents/:id/needs-info.
func (h *Handler) NeedsInfo(c *gin.Context) {
	h.moderate(c, "needs-info", h.moderation.RequestInfo)
}

// Merge handles POST /api/v1/incidents/:id/merge.
func (h *Handler) Merge(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.CanonicalIncidentID == id {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot merge an incident into itself"})
		return
	}

	if err := h.moderation.Merge(c.Request.Context(), id, req.CanonicalIncidentID, actorID(c)); err != nil {
		h.replyError(c, err, "merge")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"incident_id":           id,
		"canonical_incident_id": req.CanonicalIncidentID,
	})
}

// CorrectCategory handles POST /api/v1/incidents/:id/category.
func (h *Handler) CorrectCategory(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	category := domain.Category(req.Category)
	if !category.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown category"})
		return
	}

	if err := h.moderation.CorrectCategory(c.Request.Context(), id, actorID(c), category); err != nil {
		h.replyError(c, err, "correct category")
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident_id": id, "category": req.Category})
}

// DedupVerdict handles POST /api/v1/incidents/:id/dedup-verdict.
func (h *Handler) DedupVerdict(c *gin.Context) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	var req VerdictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	verdict := domain.DedupVerdict(req.Verdict)
	if !verdict.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown verdict"})
		return
	}

	if err := h.moderation.RecordDedupVerdict(c.Request.Context(), id, actorID(c), verdict); err != nil {
		h.replyError(c, err, "record verdict")
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident_id": id, "verdict": req.Verdict})
}

// MLHealth handles GET /api/v1/ml-health.
func (h *Handler) MLHealth(c *gin.Context) {
	if h.mlHealth == nil {
		c.JSON(http.StatusOK, MLHealthResponse{Enabled: false})
		return
	}

	status, err := h.mlHealth.Health(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusOK, MLHealthResponse{Enabled: true, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, MLHealthResponse{
		Enabled:   true,
		Reachable: status.Reachable,
		LatencyMS: status.Latency.Milliseconds(),
	})
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "intake",
		"version": h.version,
	})
}

// ReadyCheck handles GET /ready.
func (h *Handler) ReadyCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// moderate runs a single-incident moderator action taking optional
// notes.
func (h *Handler) moderate(c *gin.Context, name string, action func(ctx context.Context, incidentID int64, actorID *int64, notes string) error) {
	id, ok := h.incidentID(c)
	if !ok {
		return
	}

	var req NotesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := action(c.Request.Context(), id, actorID(c), req.Notes); err != nil {
		h.replyError(c, err, name)
		return
	}

	c.JSON(http.StatusOK, gin.H{"incident_id": id})
}

// incidentID parses the :id path parameter, replying 400 on garbage.
func (h *Handler) incidentID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident id"})
		return 0, false
	}
	return id, true
}

// replyError maps domain errors to HTTP statuses: missing rows to 404,
// workflow violations to 409, everything else to 500.
func (h *Handler) replyError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrClosureOutcomeRequired),
		errors.Is(err, workflow.ErrInvalidClosureOutcome),
		errors.Is(err, workflow.ErrCaseIDRequired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.logger.Error(op+" failed", logging.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}

// actorID extracts the acting staff user from the request headers.
// System-triggered calls carry no actor.
func actorID(c *gin.Context) *int64 {
	raw := c.GetHeader(actorHeader)
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
