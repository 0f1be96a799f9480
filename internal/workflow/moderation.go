package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/notify"
	"github.com/civicwatch/intake/internal/telemetry"
)

// IncidentStore is the incident persistence the service depends on.
type IncidentStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Incident, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status, outcome *domain.ClosureOutcome, details *domain.ClosureDetails) error
	UpdateClassification(ctx context.Context, id int64, category domain.Category, severity domain.Severity) error
}

// ReportStore resolves the report attached to an incident.
type ReportStore interface {
	GetByIncidentID(ctx context.Context, incidentID int64) (*domain.Report, error)
}

// LinkStore creates duplicate links.
type LinkStore interface {
	Create(ctx context.Context, link *domain.ReportLink) (bool, error)
}

// ActionStore appends audit entries.
type ActionStore interface {
	Create(ctx context.Context, action *domain.ReportAction) error
}

// MLStore records moderator dedup verdicts.
type MLStore interface {
	SetVerdict(ctx context.Context, reportID int64, verdict domain.DedupVerdict, actorID *int64, at time.Time) error
}

// Service applies moderator and law-enforcement actions. Every accepted
// action mutates the incident, appends exactly one audit entry and
// notifies the interested roles.
type Service struct {
	incidents IncidentStore
	reports   ReportStore
	links     LinkStore
	actions   ActionStore
	ml        MLStore
	notifier  notify.Notifier
	telemetry *telemetry.Provider
	logger    logging.Logger
}

// NewService creates a moderation service.
func NewService(
	incidents IncidentStore,
	reports ReportStore,
	links LinkStore,
	actions ActionStore,
	ml MLStore,
	notifier notify.Notifier,
	tp *telemetry.Provider,
	logger logging.Logger,
) *Service {
	return &Service{
		incidents: incidents,
		reports:   reports,
		links:     links,
		actions:   actions,
		ml:        ml,
		notifier:  notifier,
		telemetry: tp,
		logger:    logger,
	}
}

// Transition applies a requested status change. Same-status requests
// are accepted as idempotent no-ops without touching the record.
func (s *Service) Transition(ctx context.Context, incidentID int64, actorID *int64, t Transition) error {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}

	if err := Validate(inc.Status, t); err != nil {
		if s.telemetry != nil {
			s.telemetry.RecordTransitionRejected(ctx)
		}
		return err
	}

	if inc.Status == t.To {
		return nil
	}

	if err := s.incidents.UpdateStatus(ctx, incidentID, t.To, t.Outcome, t.Details); err != nil {
		return err
	}

	notes := fmt.Sprintf("status changed from %s to %s", inc.Status, t.To)
	if t.Outcome != nil {
		notes = fmt.Sprintf("%s (outcome: %s)", notes, *t.Outcome)
	}
	if err := s.appendAction(ctx, inc, actorID, domain.ActionStatusChanged, notes); err != nil {
		return err
	}

	if s.telemetry != nil {
		s.telemetry.RecordTransition(ctx, string(t.To))
	}

	inc.Status = t.To
	s.notifyUpdate(ctx, inc)
	return nil
}

// Verify marks an incident as moderator-verified. Verified incidents at
// high or critical severity also alert law enforcement.
func (s *Service) Verify(ctx context.Context, incidentID int64, actorID *int64, notes string) error {
	inc, err := s.advance(ctx, incidentID, actorID, domain.StatusVerified, domain.ActionVerified, notes)
	if err != nil {
		return err
	}

	if inc.Severity == domain.SeverityHigh || inc.Severity == domain.SeverityCritical {
		event := notify.NewEvent(notify.EventLEIAlert, notify.IncidentPayload{
			IncidentID: inc.ID,
			Title:      inc.Title,
			Category:   inc.Category,
			Severity:   inc.Severity,
			Status:     inc.Status,
		})
		if err := s.notifier.NotifyRole(ctx, domain.RoleLawEnforcement, event); err != nil {
			s.logger.Warn("lei alert delivery failed",
				logging.Int64("incident_id", inc.ID),
				logging.Error(err))
		}
	}

	return nil
}

// Reject marks an incident as rejected.
func (s *Service) Reject(ctx context.Context, incidentID int64, actorID *int64, notes string) error {
	_, err := s.advance(ctx, incidentID, actorID, domain.StatusRejected, domain.ActionRejected, notes)
	return err
}

// Escalate moves an incident into manual review.
func (s *Service) Escalate(ctx context.Context, incidentID int64, actorID *int64, notes string) error {
	_, err := s.advance(ctx, incidentID, actorID, domain.StatusInReview, domain.ActionStatusChanged, notes)
	return err
}

// RequestInfo asks the reporter for more information.
func (s *Service) RequestInfo(ctx context.Context, incidentID int64, actorID *int64, notes string) error {
	inc, err := s.advance(ctx, incidentID, actorID, domain.StatusNeedsInfo, domain.ActionNeedsInfo, notes)
	if err != nil {
		return err
	}

	// The reporter has to act on this one, not just the staff roles.
	event := notify.NewEvent(notify.EventIncidentUpdate, notify.IncidentPayload{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Category:   inc.Category,
		Severity:   inc.Severity,
		Status:     inc.Status,
	})
	if err := s.notifier.NotifyUser(ctx, inc.ReporterID, event); err != nil {
		s.logger.Warn("reporter notification failed",
			logging.Int64("incident_id", inc.ID),
			logging.Error(err))
	}

	return nil
}

// Merge manually links an incident under a canonical incident as a
// duplicate and retires it from the moderation queue.
func (s *Service) Merge(ctx context.Context, incidentID, canonicalIncidentID int64, actorID *int64) error {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	if err := Validate(inc.Status, Transition{To: domain.StatusMerged}); err != nil {
		return err
	}

	dupReport, err := s.reports.GetByIncidentID(ctx, incidentID)
	if err != nil {
		return err
	}
	canonicalReport, err := s.reports.GetByIncidentID(ctx, canonicalIncidentID)
	if err != nil {
		return err
	}

	if _, err := s.links.Create(ctx, &domain.ReportLink{
		CanonicalReportID: canonicalReport.ID,
		DuplicateReportID: dupReport.ID,
		LinkType:          domain.LinkManualMerge,
	}); err != nil {
		return err
	}

	if err := s.incidents.UpdateStatus(ctx, incidentID, domain.StatusMerged, nil, nil); err != nil {
		return err
	}

	notes := fmt.Sprintf("merged into incident %d", canonicalIncidentID)
	if err := s.appendAction(ctx, inc, actorID, domain.ActionMerged, notes); err != nil {
		return err
	}

	event := notify.NewEvent(notify.EventIncidentDuplicate, notify.DuplicatePayload{
		IncidentID:          incidentID,
		CanonicalIncidentID: canonicalIncidentID,
	})
	if err := s.notifier.NotifyRole(ctx, domain.RoleModerator, event); err != nil {
		s.logger.Warn("merge notification failed",
			logging.Int64("incident_id", incidentID),
			logging.Error(err))
	}

	return nil
}

// CorrectCategory overwrites a misclassified incident's category,
// keeping its severity.
func (s *Service) CorrectCategory(ctx context.Context, incidentID int64, actorID *int64, category domain.Category) error {
	if !category.Valid() {
		return fmt.Errorf("invalid category %q", category)
	}

	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return err
	}
	if inc.Category == category {
		return nil
	}

	if err := s.incidents.UpdateClassification(ctx, incidentID, category, inc.Severity); err != nil {
		return err
	}

	notes := fmt.Sprintf("category corrected from %s to %s", inc.Category, category)
	if err := s.appendAction(ctx, inc, actorID, domain.ActionStatusChanged, notes); err != nil {
		return err
	}

	inc.Category = category
	s.notifyUpdate(ctx, inc)
	return nil
}

// RecordDedupVerdict stores the moderator's ground truth for the
// duplicate prediction, feeding threshold calibration.
func (s *Service) RecordDedupVerdict(ctx context.Context, incidentID int64, actorID *int64, verdict domain.DedupVerdict) error {
	if !verdict.Valid() {
		return fmt.Errorf("invalid dedup verdict %q", verdict)
	}

	report, err := s.reports.GetByIncidentID(ctx, incidentID)
	if err != nil {
		return err
	}

	return s.ml.SetVerdict(ctx, report.ID, verdict, actorID, time.Now().UTC())
}

// advance validates and applies a single-status moderator action,
// appending its one audit entry and notifying the staff roles.
func (s *Service) advance(ctx context.Context, incidentID int64, actorID *int64, to domain.Status, action domain.ActionType, notes string) (*domain.Incident, error) {
	inc, err := s.incidents.GetByID(ctx, incidentID)
	if err != nil {
		return nil, err
	}

	if err := Validate(inc.Status, Transition{To: to}); err != nil {
		if s.telemetry != nil {
			s.telemetry.RecordTransitionRejected(ctx)
		}
		return nil, err
	}
	if inc.Status == to {
		return inc, nil
	}

	if err := s.incidents.UpdateStatus(ctx, incidentID, to, nil, nil); err != nil {
		return nil, err
	}
	if err := s.appendAction(ctx, inc, actorID, action, notes); err != nil {
		return nil, err
	}

	if s.telemetry != nil {
		s.telemetry.RecordTransition(ctx, string(to))
	}

	inc.Status = to
	s.notifyUpdate(ctx, inc)
	return inc, nil
}

func (s *Service) appendAction(ctx context.Context, inc *domain.Incident, actorID *int64, action domain.ActionType, notes string) error {
	var reportID *int64
	if report, err := s.reports.GetByIncidentID(ctx, inc.ID); err == nil {
		reportID = &report.ID
	}

	return s.actions.Create(ctx, &domain.ReportAction{
		ReportID:   reportID,
		IncidentID: inc.ID,
		ActorID:    actorID,
		ActionType: action,
		Notes:      notes,
	})
}

func (s *Service) notifyUpdate(ctx context.Context, inc *domain.Incident) {
	event := notify.NewEvent(notify.EventIncidentUpdate, notify.IncidentPayload{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Category:   inc.Category,
		Severity:   inc.Severity,
		Status:     inc.Status,
	})

	for _, role := range []domain.Role{domain.RoleModerator, domain.RoleAdmin, domain.RoleLawEnforcement} {
		if err := s.notifier.NotifyRole(ctx, role, event); err != nil {
			s.logger.Warn("update notification failed",
				logging.Int64("incident_id", inc.ID),
				logging.String("role", string(role)),
				logging.Error(err))
		}
	}
}
