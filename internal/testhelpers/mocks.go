// Package testhelpers provides shared in-memory fakes for the intake
// service's persistence, notification and ML scoring dependencies.
package testhelpers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/civicwatch/intake/internal/database"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/notify"
)

// ErrNotFound is the repository sentinel for missing rows, shared so
// error mapping behaves identically against mocks.
var ErrNotFound = database.ErrNotFound

// MockIncidentStore is an in-memory incidents repository.
type MockIncidentStore struct {
	mu        sync.Mutex
	nextID    int64
	incidents map[int64]*domain.Incident

	// FailNearby forces FindNearby to error, simulating a query failure.
	FailNearby bool
}

// NewMockIncidentStore creates an empty store.
func NewMockIncidentStore() *MockIncidentStore {
	return &MockIncidentStore{nextID: 1, incidents: make(map[int64]*domain.Incident)}
}

// Create assigns an id and stores a copy.
func (m *MockIncidentStore) Create(_ context.Context, inc *domain.Incident) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc.ID = m.nextID
	m.nextID++
	now := time.Now().UTC()
	inc.CreatedAt = now
	inc.UpdatedAt = now
	cp := *inc
	m.incidents[inc.ID] = &cp
	return nil
}

// GetByID retrieves a copy of an incident.
func (m *MockIncidentStore) GetByID(_ context.Context, id int64) (*domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return nil, fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	cp := *inc
	return &cp, nil
}

// Seed inserts an incident as-is for test setup.
func (m *MockIncidentStore) Seed(inc domain.Incident) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inc.ID >= m.nextID {
		m.nextID = inc.ID + 1
	}
	m.incidents[inc.ID] = &inc
}

// FindNearby returns stored non-draft incidents inside the query bounds,
// excluding the excluded id, newest first, capped at q.Limit.
func (m *MockIncidentStore) FindNearby(_ context.Context, q domain.NearbyQuery) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailNearby {
		return nil, errors.New("find nearby failed")
	}

	var result []domain.Incident
	for _, inc := range m.incidents {
		if inc.ID == q.ExcludeID || inc.IsDraft || !inc.HasValidLocation() {
			continue
		}
		if *inc.Latitude < q.MinLat || *inc.Latitude > q.MaxLat ||
			*inc.Longitude < q.MinLon || *inc.Longitude > q.MaxLon {
			continue
		}
		if inc.OccurredAt.Before(q.OccurredAfter) || inc.OccurredAt.After(q.OccurredUntil) {
			continue
		}
		result = append(result, *inc)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].OccurredAt.After(result[j].OccurredAt)
	})
	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

// UpdateStatus sets the status and closure fields.
func (m *MockIncidentStore) UpdateStatus(_ context.Context, id int64, status domain.Status, outcome *domain.ClosureOutcome, details *domain.ClosureDetails) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	inc.Status = status
	if outcome != nil {
		inc.ClosureOutcome = outcome
	}
	if details != nil {
		inc.ClosureDetails = details
	}
	inc.UpdatedAt = time.Now().UTC()
	return nil
}

// AdvanceStatusIf moves the incident from one status to another only if
// it is still in the expected status, reporting whether it did.
func (m *MockIncidentStore) AdvanceStatusIf(_ context.Context, id int64, from, to domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok || inc.Status != from {
		return false, nil
	}
	inc.Status = to
	inc.UpdatedAt = time.Now().UTC()
	return true, nil
}

// UpdateClassification overwrites category and severity.
func (m *MockIncidentStore) UpdateClassification(_ context.Context, id int64, category domain.Category, severity domain.Severity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inc, ok := m.incidents[id]
	if !ok {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}
	inc.Category = category
	inc.Severity = severity
	inc.UpdatedAt = time.Now().UTC()
	return nil
}

// ListUncategorized returns non-draft incidents still in the catch-all
// category, oldest first.
func (m *MockIncidentStore) ListUncategorized(_ context.Context, limit int) ([]domain.Incident, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []domain.Incident
	for id := int64(1); id < m.nextID && len(result) < limit; id++ {
		inc, ok := m.incidents[id]
		if !ok {
			continue
		}
		if inc.Category == domain.CategoryOther && !inc.IsDraft {
			result = append(result, *inc)
		}
	}
	return result, nil
}

// MockReportStore is an in-memory reports repository.
type MockReportStore struct {
	mu      sync.Mutex
	nextID  int64
	reports map[int64]*domain.Report
}

// NewMockReportStore creates an empty store.
func NewMockReportStore() *MockReportStore {
	return &MockReportStore{nextID: 1, reports: make(map[int64]*domain.Report)}
}

// Create assigns an id and stores a copy.
func (m *MockReportStore) Create(_ context.Context, report *domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	report.ID = m.nextID
	m.nextID++
	report.CreatedAt = time.Now().UTC()
	cp := *report
	m.reports[report.ID] = &cp
	return nil
}

// GetByIncidentID finds the report attached to an incident.
func (m *MockReportStore) GetByIncidentID(_ context.Context, incidentID int64) (*domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reports {
		if r.IncidentID == incidentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("report for incident %d: %w", incidentID, ErrNotFound)
}

// SetEnrichmentOutcome records the enrichment result.
func (m *MockReportStore) SetEnrichmentOutcome(_ context.Context, reportID int64, status domain.EnrichmentStatus, confidence float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[reportID]
	if !ok {
		return fmt.Errorf("report %d: %w", reportID, ErrNotFound)
	}
	r.EnrichmentStatus = status
	r.MLConfidence = confidence
	return nil
}

// MockReportMLStore is an in-memory report_ml repository.
type MockReportMLStore struct {
	mu        sync.Mutex
	nextID    int64
	snapshots []*domain.ReportML
}

// NewMockReportMLStore creates an empty store.
func NewMockReportMLStore() *MockReportMLStore {
	return &MockReportMLStore{nextID: 1}
}

// Create appends a scoring snapshot.
func (m *MockReportMLStore) Create(_ context.Context, ml *domain.ReportML) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ml.ID = m.nextID
	m.nextID++
	ml.CreatedAt = time.Now().UTC()
	cp := *ml
	m.snapshots = append(m.snapshots, &cp)
	return nil
}

// GetLatestByReportID returns the newest snapshot for a report.
func (m *MockReportMLStore) GetLatestByReportID(_ context.Context, reportID int64) (*domain.ReportML, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].ReportID == reportID {
			cp := *m.snapshots[i]
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("ml snapshot for report %d: %w", reportID, ErrNotFound)
}

// SetVerdict records a dedup verdict on the latest snapshot for a report.
func (m *MockReportMLStore) SetVerdict(_ context.Context, reportID int64, verdict domain.DedupVerdict, actorID *int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.snapshots) - 1; i >= 0; i-- {
		if m.snapshots[i].ReportID == reportID {
			m.snapshots[i].DedupVerdict = &verdict
			m.snapshots[i].DedupVerdictBy = actorID
			m.snapshots[i].DedupVerdictAt = &at
			return nil
		}
	}
	return fmt.Errorf("ml snapshot for report %d: %w", reportID, ErrNotFound)
}

// Snapshots returns copies of all stored snapshots for assertions.
func (m *MockReportMLStore) Snapshots() []domain.ReportML {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ReportML, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, *s)
	}
	return out
}

// MockLinkStore is an in-memory report_links repository with the same
// insert-or-ignore semantics as the real one.
type MockLinkStore struct {
	mu     sync.Mutex
	nextID int64
	links  map[[2]int64]*domain.ReportLink
}

// NewMockLinkStore creates an empty store.
func NewMockLinkStore() *MockLinkStore {
	return &MockLinkStore{nextID: 1, links: make(map[[2]int64]*domain.ReportLink)}
}

// Create inserts a link unless the (canonical, duplicate) pair exists.
func (m *MockLinkStore) Create(_ context.Context, link *domain.ReportLink) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{link.CanonicalReportID, link.DuplicateReportID}
	if _, exists := m.links[key]; exists {
		return false, nil
	}
	link.ID = m.nextID
	m.nextID++
	link.CreatedAt = time.Now().UTC()
	cp := *link
	m.links[key] = &cp
	return true, nil
}

// Links returns copies of all stored links for assertions.
func (m *MockLinkStore) Links() []domain.ReportLink {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ReportLink, 0, len(m.links))
	for _, l := range m.links {
		out = append(out, *l)
	}
	return out
}

// MockActionStore is an in-memory report_actions repository.
type MockActionStore struct {
	mu      sync.Mutex
	nextID  int64
	actions []domain.ReportAction
}

// NewMockActionStore creates an empty store.
func NewMockActionStore() *MockActionStore {
	return &MockActionStore{nextID: 1}
}

// Create appends an audit entry.
func (m *MockActionStore) Create(_ context.Context, action *domain.ReportAction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	action.ID = m.nextID
	m.nextID++
	action.Timestamp = time.Now().UTC()
	m.actions = append(m.actions, *action)
	return nil
}

// Actions returns all recorded entries in append order.
func (m *MockActionStore) Actions() []domain.ReportAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.ReportAction, len(m.actions))
	copy(out, m.actions)
	return out
}

// ListByIncident returns recorded entries for one incident in append
// order.
func (m *MockActionStore) ListByIncident(_ context.Context, incidentID int64) ([]domain.ReportAction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReportAction
	for _, a := range m.actions {
		if a.IncidentID == incidentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ActionsOfType filters recorded entries by type.
func (m *MockActionStore) ActionsOfType(t domain.ActionType) []domain.ReportAction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ReportAction
	for _, a := range m.actions {
		if a.ActionType == t {
			out = append(out, a)
		}
	}
	return out
}

// RecordedNotification is one delivered event with its addressing. Role
// is empty for user-addressed events; UserID is zero for role-addressed
// events.
type RecordedNotification struct {
	Role   domain.Role
	UserID int64
	Event  notify.Event
}

// RecordingNotifier captures notifications for assertions.
type RecordingNotifier struct {
	mu     sync.Mutex
	events []RecordedNotification
}

// NewRecordingNotifier creates an empty recorder.
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{}
}

// NotifyRole records a role-addressed event.
func (r *RecordingNotifier) NotifyRole(_ context.Context, role domain.Role, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedNotification{Role: role, Event: event})
	return nil
}

// NotifyUser records a user-addressed event.
func (r *RecordingNotifier) NotifyUser(_ context.Context, userID int64, event notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, RecordedNotification{UserID: userID, Event: event})
	return nil
}

// Events returns everything recorded so far.
func (r *RecordingNotifier) Events() []RecordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedNotification, len(r.events))
	copy(out, r.events)
	return out
}

// EventsOfType filters recorded events by type.
func (r *RecordingNotifier) EventsOfType(t notify.EventType) []RecordedNotification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RecordedNotification
	for _, e := range r.events {
		if e.Event.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

// FailingMLScorer fails every capability, exercising heuristic fallback.
type FailingMLScorer struct{}

// Classify always reports the scorer unavailable.
func (FailingMLScorer) Classify(_ context.Context, _ string) (*mlclient.ClassifyResult, error) {
	return nil, mlclient.ErrUnavailable
}

// Toxicity always reports the scorer unavailable.
func (FailingMLScorer) Toxicity(_ context.Context, _ string) (*mlclient.ToxicityResult, error) {
	return nil, mlclient.ErrUnavailable
}

// Risk always reports the scorer unavailable.
func (FailingMLScorer) Risk(_ context.Context, _, _, _ string, _ int) (*mlclient.RiskResult, error) {
	return nil, mlclient.ErrUnavailable
}

// Similarity always reports the scorer unavailable.
func (FailingMLScorer) Similarity(_ context.Context, _ string, _ []string, _ float64) ([]mlclient.SimilarityScore, error) {
	return nil, mlclient.ErrUnavailable
}

// Health always reports the scorer unreachable.
func (FailingMLScorer) Health(_ context.Context) (*mlclient.HealthStatus, error) {
	return nil, mlclient.ErrUnavailable
}
