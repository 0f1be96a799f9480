// Package domain defines the core types for the incident intake service.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Category is an incident category.
type Category string

// Incident categories. Other is the catch-all and carries no keyword set.
const (
	CategoryTheft              Category = "theft"
	CategoryAssault            Category = "assault"
	CategoryVandalism          Category = "vandalism"
	CategorySuspiciousActivity Category = "suspicious_activity"
	CategoryTrafficIncident    Category = "traffic_incident"
	CategoryNoiseComplaint     Category = "noise_complaint"
	CategoryFire               Category = "fire"
	CategoryMedicalEmergency   Category = "medical_emergency"
	CategoryHazard             Category = "hazard"
	CategoryOther              Category = "other"
)

// Categories lists all valid categories in enumeration order.
// Keyword tie-breaks resolve to the first category in this order.
var Categories = []Category{
	CategoryTheft,
	CategoryAssault,
	CategoryVandalism,
	CategorySuspiciousActivity,
	CategoryTrafficIncident,
	CategoryNoiseComplaint,
	CategoryFire,
	CategoryMedicalEmergency,
	CategoryHazard,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// Severity is an incident severity level.
type Severity string

// Severity levels.
const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Status is an incident workflow status.
type Status string

// Incident statuses. Draft is a pseudo-state carried by Incident.IsDraft;
// it never appears on a submitted incident.
const (
	StatusDraft         Status = "draft"
	StatusSubmitted     Status = "submitted"
	StatusAutoProcessed Status = "auto_processed"
	StatusAutoFlagged   Status = "auto_flagged"
	StatusInReview      Status = "in_review"
	StatusVerified      Status = "verified"
	StatusDispatched    Status = "dispatched"
	StatusOnScene       Status = "on_scene"
	StatusInvestigating Status = "investigating"
	StatusPoliceClosed  Status = "police_closed"
	StatusRejected      Status = "rejected"
	StatusNeedsInfo     Status = "needs_info"
	StatusPublished     Status = "published"
	StatusResolved      Status = "resolved"
	StatusArchived      Status = "archived"
	StatusMerged        Status = "merged"
)

// ClosureOutcome records how a law-enforcement case was closed.
type ClosureOutcome string

// Closure outcomes, required when transitioning to police_closed.
const (
	OutcomeResolvedHandled ClosureOutcome = "resolved_handled"
	OutcomeArrestMade      ClosureOutcome = "arrest_made"
	OutcomeFalseAlarm      ClosureOutcome = "false_alarm"
	OutcomeReportFiled     ClosureOutcome = "report_filed"
)

// Valid reports whether o is a known closure outcome.
func (o ClosureOutcome) Valid() bool {
	switch o {
	case OutcomeResolvedHandled, OutcomeArrestMade, OutcomeFalseAlarm, OutcomeReportFiled:
		return true
	}
	return false
}

// ClosureDetails holds structured data attached when a case is closed.
// Outcome report_filed requires a case number.
type ClosureDetails struct {
	CaseID       string `json:"case_id,omitempty"`
	OfficerNotes string `json:"officer_notes,omitempty"`
}

// Value implements driver.Valuer for JSONB storage.
func (d ClosureDetails) Value() (driver.Value, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal closure details: %w", err)
	}
	return b, nil
}

// Scan implements sql.Scanner for JSONB storage.
func (d *ClosureDetails) Scan(src any) error {
	if src == nil {
		*d = ClosureDetails{}
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("scan closure details: unexpected type %T", src)
	}
	if err := json.Unmarshal(b, d); err != nil {
		return fmt.Errorf("unmarshal closure details: %w", err)
	}
	return nil
}

// Role identifies a class of notification recipients. Account management
// itself lives in an external service.
type Role string

// Recipient roles.
const (
	RoleCitizen        Role = "citizen"
	RoleModerator      Role = "moderator"
	RoleAdmin          Role = "admin"
	RoleLawEnforcement Role = "law_enforcement"
)

// Incident is a single citizen-submitted report of an event.
type Incident struct {
	ID             int64           `db:"incident_id" json:"incident_id"`
	ReporterID     int64           `db:"reporter_id" json:"reporter_id"`
	Title          string          `db:"title" json:"title"`
	Description    string          `db:"description" json:"description"`
	Category       Category        `db:"category" json:"category"`
	Severity       Severity        `db:"severity" json:"severity"`
	Latitude       *float64        `db:"latitude" json:"latitude,omitempty"`
	Longitude      *float64        `db:"longitude" json:"longitude,omitempty"`
	LocationName   *string         `db:"location_name" json:"location_name,omitempty"`
	OccurredAt     time.Time       `db:"occurred_at" json:"occurred_at"`
	Status         Status          `db:"status" json:"status"`
	IsDraft        bool            `db:"is_draft" json:"is_draft"`
	IsAnonymous    bool            `db:"is_anonymous" json:"is_anonymous"`
	PhotoURLs      pq.StringArray  `db:"photo_urls" json:"photo_urls,omitempty"`
	ClosureOutcome *ClosureOutcome `db:"closure_outcome" json:"closure_outcome,omitempty"`
	ClosureDetails *ClosureDetails `db:"closure_details" json:"closure_details,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// HasValidLocation reports whether the incident carries usable coordinates.
// Drafts saved without GPS and web submissions with no location return false;
// duplicate detection is skipped entirely for them.
func (i *Incident) HasValidLocation() bool {
	if i.Latitude == nil || i.Longitude == nil {
		return false
	}
	lat, lon := *i.Latitude, *i.Longitude
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return false
	}
	// (0,0) is the null island default emitted by clients with no GPS fix.
	return lat != 0 || lon != 0
}

// Text returns the concatenated title and description used for scoring.
func (i *Incident) Text() string {
	return i.Title + " " + i.Description
}

// NearbyQuery bounds a duplicate-candidate search. The repository
// filters on the bounding box and time window; the exact radius check
// happens in the caller.
type NearbyQuery struct {
	MinLat        float64
	MaxLat        float64
	MinLon        float64
	MaxLon        float64
	OccurredAfter time.Time
	OccurredUntil time.Time
	ExcludeID     int64
	Limit         int
}
