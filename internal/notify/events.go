// Package notify defines the notification contract between the intake
// pipeline and whatever delivery fan-out sits behind it. Delivery
// itself (websockets, push, email) is another service's problem; this
// package only shapes and routes the events.
package notify

import (
	"time"

	"github.com/google/uuid"

	"github.com/civicwatch/intake/internal/domain"
)

// EventType identifies a notification event.
type EventType string

const (
	// EventIncidentNew announces a freshly submitted incident.
	EventIncidentNew EventType = "incident:new"
	// EventIncidentUpdate announces a status or classification change.
	EventIncidentUpdate EventType = "incident:update"
	// EventIncidentDuplicate announces an auto-merged duplicate.
	EventIncidentDuplicate EventType = "incident:duplicate"
	// EventLEIAlert alerts law enforcement to a verified high-severity incident.
	EventLEIAlert EventType = "lei_alert"
	// EventStaffApplicationNew announces a new staff application. The
	// application flow lives in another service; the constant is part of
	// the shared event vocabulary so consumers can switch over one type.
	EventStaffApplicationNew EventType = "staff_application:new"
)

// Event is the envelope for all notifications.
type Event struct {
	EventID   uuid.UUID `json:"event_id"`
	EventType EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent wraps a payload in a fresh envelope.
func NewEvent(eventType EventType, payload any) Event {
	return Event{
		EventID:   uuid.New(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// IncidentPayload carries the incident fields recipients need to render
// a notification without a follow-up fetch.
type IncidentPayload struct {
	IncidentID int64           `json:"incident_id"`
	Title      string          `json:"title"`
	Category   domain.Category `json:"category"`
	Severity   domain.Severity `json:"severity"`
	Status     domain.Status   `json:"status"`
}

// DuplicatePayload carries the link data for an auto-merged duplicate.
type DuplicatePayload struct {
	IncidentID          int64   `json:"incident_id"`
	CanonicalIncidentID int64   `json:"canonical_incident_id"`
	Score               float64 `json:"score"`
}
