package api

import (
	"time"

	"github.com/civicwatch/intake/internal/domain"
)

// CreateIncidentRequest is the submission payload.
type CreateIncidentRequest struct {
	ReporterID   int64    `json:"reporter_id"  binding:"required"`
	Title        string   `json:"title"        binding:"required"`
	Description  string   `json:"description"  binding:"required"`
	Category     string   `json:"category"     binding:"required"`
	Severity     string   `json:"severity"     binding:"required"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	LocationName *string  `json:"location_name"`
	OccurredAt   string   `json:"occurred_at"  binding:"required"`
	IsDraft      bool     `json:"is_draft"`
	IsAnonymous  bool     `json:"is_anonymous"`
	PhotoURLs    []string `json:"photo_urls"`
}

// IncidentResponse is the external incident representation.
type IncidentResponse struct {
	IncidentID     int64                  `json:"incident_id"`
	ReporterID     int64                  `json:"reporter_id,omitempty"`
	Title          string                 `json:"title"`
	Description    string                 `json:"description"`
	Category       domain.Category        `json:"category"`
	Severity       domain.Severity        `json:"severity"`
	Latitude       *float64               `json:"latitude,omitempty"`
	Longitude      *float64               `json:"longitude,omitempty"`
	LocationName   *string                `json:"location_name,omitempty"`
	OccurredAt     time.Time              `json:"occurred_at"`
	Status         domain.Status          `json:"status"`
	IsDraft        bool                   `json:"is_draft"`
	IsAnonymous    bool                   `json:"is_anonymous"`
	PhotoURLs      []string               `json:"photo_urls,omitempty"`
	ClosureOutcome *domain.ClosureOutcome `json:"closure_outcome,omitempty"`
	ClosureDetails *domain.ClosureDetails `json:"closure_details,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at"`
}

func toIncidentResponse(inc *domain.Incident) IncidentResponse {
	resp := IncidentResponse{
		IncidentID:     inc.ID,
		Title:          inc.Title,
		Description:    inc.Description,
		Category:       inc.Category,
		Severity:       inc.Severity,
		Latitude:       inc.Latitude,
		Longitude:      inc.Longitude,
		LocationName:   inc.LocationName,
		OccurredAt:     inc.OccurredAt,
		Status:         inc.Status,
		IsDraft:        inc.IsDraft,
		IsAnonymous:    inc.IsAnonymous,
		PhotoURLs:      inc.PhotoURLs,
		ClosureOutcome: inc.ClosureOutcome,
		ClosureDetails: inc.ClosureDetails,
		CreatedAt:      inc.CreatedAt,
		UpdatedAt:      inc.UpdatedAt,
	}
	// Anonymous submissions never expose who filed them.
	if !inc.IsAnonymous {
		resp.ReporterID = inc.ReporterID
	}
	return resp
}

// EnrichmentResponse reports the enrichment outcome for an incident.
type EnrichmentResponse struct {
	IncidentID       int64                   `json:"incident_id"`
	ReportID         int64                   `json:"report_id"`
	EnrichmentStatus domain.EnrichmentStatus `json:"enrichment_status"`
	MLConfidence     float64                 `json:"ml_confidence"`
}

// TransitionRequest is a manual status transition payload.
type TransitionRequest struct {
	Status         string                 `json:"status" binding:"required"`
	ClosureOutcome *string                `json:"closure_outcome"`
	ClosureDetails *domain.ClosureDetails `json:"closure_details"`
}

// NotesRequest carries optional moderator notes for an action.
type NotesRequest struct {
	Notes string `json:"notes"`
}

// MergeRequest names the canonical incident for a manual merge.
type MergeRequest struct {
	CanonicalIncidentID int64 `json:"canonical_incident_id" binding:"required"`
}

// CategoryRequest carries a category correction.
type CategoryRequest struct {
	Category string `json:"category" binding:"required"`
}

// VerdictRequest carries a moderator dedup verdict.
type VerdictRequest struct {
	Verdict string `json:"verdict" binding:"required"`
}

// MLHealthResponse reports remote scorer reachability.
type MLHealthResponse struct {
	Enabled   bool   `json:"enabled"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}
