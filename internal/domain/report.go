package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// EnrichmentStatus tracks the outcome of the best-effort ML enrichment
// that runs at submission time. A failed enrichment leaves the incident
// valid in submitted status; the status makes that degradation queryable
// instead of something inferred from a missing snapshot.
type EnrichmentStatus string

// Enrichment statuses.
const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentSucceeded EnrichmentStatus = "succeeded"
	EnrichmentFailed    EnrichmentStatus = "failed"
)

// Report is the processing record attached to a submitted (non-draft)
// incident. Created once at submission; immutable afterwards except for
// the enrichment status and the ML snapshot insert.
type Report struct {
	ID               int64            `db:"report_id" json:"report_id"`
	IncidentID       int64            `db:"incident_id" json:"incident_id"`
	PhotoRefs        pq.StringArray   `db:"photo_refs" json:"photo_refs,omitempty"`
	MLConfidence     float64          `db:"ml_confidence" json:"ml_confidence"`
	EnrichmentStatus EnrichmentStatus `db:"enrichment_status" json:"enrichment_status"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
}

// DedupVerdict is the moderator-supplied ground truth for a duplicate
// prediction, recorded for offline threshold calibration.
type DedupVerdict string

// Dedup verdicts.
const (
	VerdictConfirmedDuplicate DedupVerdict = "confirmed_duplicate"
	VerdictNotDuplicate       DedupVerdict = "not_duplicate"
)

// Valid reports whether v is a known verdict.
func (v DedupVerdict) Valid() bool {
	return v == VerdictConfirmedDuplicate || v == VerdictNotDuplicate
}

// DedupCandidate is one scored duplicate candidate inside a snapshot.
type DedupCandidate struct {
	CandidateIncidentID int64   `json:"candidate_incident_id"`
	Score               float64 `json:"score"`
	DistanceMeters      float64 `json:"distance_meters"`
	TimeHours           float64 `json:"time_hours"`
	TextSimilarity      float64 `json:"text_similarity"`
	CategoryMatch       float64 `json:"category_match"`
	SameReporter        bool    `json:"same_reporter"`
}

// DedupSnapshot is the envelope stored on report_ml.dedup_candidates.
// Candidates are ranked by score descending and truncated to the
// configured limit.
type DedupSnapshot struct {
	GeneratedAt  time.Time        `json:"generated_at"`
	RadiusMeters float64          `json:"radius_meters"`
	TimeHours    float64          `json:"time_hours"`
	TopScore     float64          `json:"top_score"`
	MLEnhanced   bool             `json:"ml_enhanced"`
	Candidates   []DedupCandidate `json:"candidates"`
}

// Value implements driver.Valuer for JSONB storage.
func (s DedupSnapshot) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal dedup snapshot: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB storage.
func (s *DedupSnapshot) Scan(src any) error {
	if src == nil {
		*s = DedupSnapshot{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan dedup snapshot: unexpected type %T", src)
	}
	if err := json.Unmarshal(b, s); err != nil {
		return fmt.Errorf("unmarshal dedup snapshot: %w", err)
	}
	return nil
}

// ReportML is the latest scoring snapshot for a report. One row is
// written per submission; the verdict columns are filled in later by a
// human reviewer.
type ReportML struct {
	ID                int64          `db:"ml_id" json:"ml_id"`
	ReportID          int64          `db:"report_id" json:"report_id"`
	PredictedCategory *Category      `db:"predicted_category" json:"predicted_category,omitempty"`
	Confidence        float64        `db:"confidence" json:"confidence"`
	DedupCandidates   *DedupSnapshot `db:"dedup_candidates" json:"dedup_candidates,omitempty"`
	RiskScore         float64        `db:"risk_score" json:"risk_score"`
	ToxicityScore     float64        `db:"toxicity_score" json:"toxicity_score"`
	IsToxic           bool           `db:"is_toxic" json:"is_toxic"`
	DedupVerdict      *DedupVerdict  `db:"dedup_verdict" json:"dedup_verdict,omitempty"`
	DedupVerdictBy    *int64         `db:"dedup_verdict_by" json:"dedup_verdict_by,omitempty"`
	DedupVerdictAt    *time.Time     `db:"dedup_verdict_at" json:"dedup_verdict_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// LinkType distinguishes how a duplicate link was created.
type LinkType string

// Link types.
const (
	LinkAutoDuplicate LinkType = "auto_duplicate"
	LinkManualMerge   LinkType = "manual_merge"
)

// ReportLink is a directed duplicate edge between two reports, unique
// per (canonical, duplicate) ordered pair.
type ReportLink struct {
	ID                int64     `db:"link_id" json:"link_id"`
	CanonicalReportID int64     `db:"canonical_report_id" json:"canonical_report_id"`
	DuplicateReportID int64     `db:"duplicate_report_id" json:"duplicate_report_id"`
	LinkType          LinkType  `db:"link_type" json:"link_type"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// ActionType is the kind of audit entry recorded on report_actions.
type ActionType string

// Audit action types.
const (
	ActionCreated       ActionType = "created"
	ActionStatusChanged ActionType = "status_changed"
	ActionVerified      ActionType = "verified"
	ActionRejected      ActionType = "rejected"
	ActionFlagged       ActionType = "flagged"
	ActionMerged        ActionType = "merged"
	ActionPublished     ActionType = "published"
	ActionArchived      ActionType = "archived"
	ActionNeedsInfo     ActionType = "needs_info"
)

// ReportAction is one append-only audit log row. ActorID is nil for
// system-triggered actions.
type ReportAction struct {
	ID         int64      `db:"action_id" json:"action_id"`
	ReportID   *int64     `db:"report_id" json:"report_id,omitempty"`
	IncidentID int64      `db:"incident_id" json:"incident_id"`
	ActorID    *int64     `db:"actor_id" json:"actor_id,omitempty"`
	ActionType ActionType `db:"action_type" json:"action_type"`
	Notes      string     `db:"notes" json:"notes"`
	Timestamp  time.Time  `db:"timestamp" json:"timestamp"`
}
