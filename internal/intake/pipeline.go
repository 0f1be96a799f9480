// Package intake orchestrates the submission pipeline: persisting a new
// incident, enriching it with classification, toxicity, duplicate and
// risk scoring, then applying the automatic routing decisions.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/dedup"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/notify"
	"github.com/civicwatch/intake/internal/telemetry"
)

// ErrInvalidSubmission indicates a submission rejected before the
// pipeline ran.
var ErrInvalidSubmission = errors.New("invalid submission")

// IncidentStore is the incident persistence the pipeline depends on.
type IncidentStore interface {
	Create(ctx context.Context, inc *domain.Incident) error
	FindNearby(ctx context.Context, q domain.NearbyQuery) ([]domain.Incident, error)
	UpdateStatus(ctx context.Context, id int64, status domain.Status, outcome *domain.ClosureOutcome, details *domain.ClosureDetails) error
	AdvanceStatusIf(ctx context.Context, id int64, from, to domain.Status) (bool, error)
	UpdateClassification(ctx context.Context, id int64, category domain.Category, severity domain.Severity) error
}

// ReportStore is the report persistence the pipeline depends on.
type ReportStore interface {
	Create(ctx context.Context, report *domain.Report) error
	GetByIncidentID(ctx context.Context, incidentID int64) (*domain.Report, error)
	SetEnrichmentOutcome(ctx context.Context, reportID int64, status domain.EnrichmentStatus, confidence float64) error
}

// MLStore persists scoring snapshots.
type MLStore interface {
	Create(ctx context.Context, ml *domain.ReportML) error
}

// LinkStore creates duplicate links.
type LinkStore interface {
	Create(ctx context.Context, link *domain.ReportLink) (bool, error)
}

// ActionStore appends audit entries.
type ActionStore interface {
	Create(ctx context.Context, action *domain.ReportAction) error
}

// MLScorer is the remote scoring surface the pipeline uses directly.
// Similarity is consumed through the dedup scorer instead.
type MLScorer interface {
	Classify(ctx context.Context, text string) (*mlclient.ClassifyResult, error)
	Toxicity(ctx context.Context, text string) (*mlclient.ToxicityResult, error)
	Risk(ctx context.Context, text, category, severity string, duplicateCount int) (*mlclient.RiskResult, error)
}

// Pipeline runs the intake flow for one submission. Enrichment is
// best-effort: once the incident row exists, no scoring failure is ever
// surfaced to the submitter.
type Pipeline struct {
	incidents  IncidentStore
	reports    ReportStore
	ml         MLStore
	links      LinkStore
	actions    ActionStore
	retriever  *dedup.Retriever
	scorer     *dedup.Scorer
	classifier *classify.CategoryClassifier
	toxicity   *classify.ToxicityScorer
	risk       *classify.RiskScorer
	mlScorer   MLScorer
	notifier   notify.Notifier
	telemetry  *telemetry.Provider
	logger     logging.Logger
	cfg        *config.Config
}

// NewPipeline wires the intake pipeline. mlScorer may be nil when the
// remote scorer is disabled; every capability then runs heuristically.
func NewPipeline(
	incidents IncidentStore,
	reports ReportStore,
	ml MLStore,
	links LinkStore,
	actions ActionStore,
	retriever *dedup.Retriever,
	scorer *dedup.Scorer,
	classifier *classify.CategoryClassifier,
	toxicity *classify.ToxicityScorer,
	risk *classify.RiskScorer,
	mlScorer MLScorer,
	notifier notify.Notifier,
	tp *telemetry.Provider,
	logger logging.Logger,
	cfg *config.Config,
) *Pipeline {
	return &Pipeline{
		incidents:  incidents,
		reports:    reports,
		ml:         ml,
		links:      links,
		actions:    actions,
		retriever:  retriever,
		scorer:     scorer,
		classifier: classifier,
		toxicity:   toxicity,
		risk:       risk,
		mlScorer:   mlScorer,
		notifier:   notifier,
		telemetry:  tp,
		logger:     logger,
		cfg:        cfg,
	}
}

// enrichment carries the intermediate scoring results for one submission.
type enrichment struct {
	predicted  *domain.Category
	confidence float64
	toxicity   classify.ToxicityResult
	candidates []domain.Incident
	snapshot   domain.DedupSnapshot
	riskScore  float64
}

// Submit validates and persists a submission, then runs enrichment.
// Drafts are stored untouched; the pipeline runs when they are
// submitted for real. The returned incident reflects the post-pipeline
// state.
func (p *Pipeline) Submit(ctx context.Context, inc *domain.Incident) (*domain.Incident, error) {
	if reason := validateSubmission(inc); reason != "" {
		if p.telemetry != nil {
			p.telemetry.RecordSubmissionFailure(ctx, reason)
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidSubmission, reason)
	}

	started := time.Now()

	inc.Status = domain.StatusSubmitted
	if inc.IsDraft {
		inc.Status = domain.StatusDraft
	}
	if err := p.incidents.Create(ctx, inc); err != nil {
		return nil, fmt.Errorf("create incident: %w", err)
	}

	// Drafts get no report, no scoring and no notifications.
	if inc.IsDraft {
		return inc, nil
	}

	report := &domain.Report{
		IncidentID:       inc.ID,
		PhotoRefs:        inc.PhotoURLs,
		EnrichmentStatus: domain.EnrichmentPending,
	}

	ectx, span := p.startSpan(ctx, "intake.enrich")
	defer span.End()

	// The report insert overlaps the scoring stage; nothing references
	// the report row until both have landed.
	var (
		createWG  sync.WaitGroup
		createErr error
	)
	createWG.Add(1)
	go func() {
		defer createWG.Done()
		createErr = p.reports.Create(ectx, report)
	}()

	e := &enrichment{}
	scoreErr := p.score(ectx, inc, e)
	createWG.Wait()

	if createErr != nil {
		return nil, fmt.Errorf("create report: %w", createErr)
	}

	p.appendAction(ctx, inc.ID, &report.ID, domain.ActionCreated, "incident submitted")
	p.notifyRole(ctx, domain.RoleModerator, notify.NewEvent(notify.EventIncidentNew, notify.IncidentPayload{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Category:   inc.Category,
		Severity:   inc.Severity,
		Status:     inc.Status,
	}))

	// The incident and report rows exist; anything that goes wrong from
	// here degrades to a failed enrichment, never a failed submission.
	enrichErr := scoreErr
	if enrichErr == nil {
		enrichErr = p.applyEnrichment(ectx, inc, report, e)
	}
	if enrichErr != nil {
		p.logger.Error("enrichment failed, incident left in submitted",
			logging.Int64("incident_id", inc.ID),
			logging.Error(enrichErr))
		if ferr := p.reports.SetEnrichmentOutcome(ctx, report.ID, domain.EnrichmentFailed, 0); ferr != nil {
			p.logger.Error("recording enrichment failure failed",
				logging.Int64("report_id", report.ID),
				logging.Error(ferr))
		}
		if p.telemetry != nil {
			p.telemetry.RecordEnrichment(ctx, string(domain.EnrichmentFailed))
			p.telemetry.RecordSubmission(ctx, string(inc.Status), time.Since(started))
		}
		return inc, nil
	}

	if p.telemetry != nil {
		p.telemetry.RecordEnrichment(ctx, string(domain.EnrichmentSucceeded))
		p.telemetry.RecordSubmission(ctx, string(inc.Status), time.Since(started))
	}

	return inc, nil
}

// applyEnrichment persists the scoring snapshot and runs the automatic
// routing decisions for an already inserted report. A panic is converted
// to an error; the caller downgrades it to a failed enrichment.
func (p *Pipeline) applyEnrichment(ctx context.Context, inc *domain.Incident, report *domain.Report, e *enrichment) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("enrichment panic: %v", r)
		}
	}()

	snapshot := e.snapshot
	if err := p.ml.Create(ctx, &domain.ReportML{
		ReportID:          report.ID,
		PredictedCategory: e.predicted,
		Confidence:        e.confidence,
		DedupCandidates:   &snapshot,
		RiskScore:         e.riskScore,
		ToxicityScore:     e.toxicity.Score,
		IsToxic:           e.toxicity.IsToxic,
	}); err != nil {
		return fmt.Errorf("persist ml snapshot: %w", err)
	}

	if err := p.applyClassification(ctx, inc, e); err != nil {
		return err
	}
	if err := p.route(ctx, inc, report, e); err != nil {
		return err
	}

	if err := p.reports.SetEnrichmentOutcome(ctx, report.ID, domain.EnrichmentSucceeded, e.confidence); err != nil {
		return fmt.Errorf("record enrichment outcome: %w", err)
	}
	return nil
}

// score runs text scoring and duplicate detection concurrently, then
// risk scoring, which needs both results.
func (p *Pipeline) score(ctx context.Context, inc *domain.Incident, e *enrichment) error {
	var (
		wg       sync.WaitGroup
		textErr  error
		dedupErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				textErr = fmt.Errorf("text scoring panic: %v", r)
			}
		}()
		e.predicted, e.confidence = p.classifyCategory(ctx, inc)
		e.toxicity = p.scoreToxicity(ctx, inc)
	}()
	go func() {
		defer wg.Done()
		defer func() {
			if r := recover(); r != nil {
				dedupErr = fmt.Errorf("dedup scoring panic: %v", r)
			}
		}()
		e.candidates, e.snapshot, dedupErr = p.scoreDuplicates(ctx, inc)
	}()
	wg.Wait()

	if textErr != nil {
		return textErr
	}
	if dedupErr != nil {
		return dedupErr
	}

	e.riskScore = p.scoreRisk(ctx, inc, p.scorer.HighConfidenceCount(e.snapshot))

	if p.telemetry != nil {
		p.telemetry.RecordDedup(ctx, len(e.snapshot.Candidates), e.snapshot.TopScore)
	}
	return nil
}

// classifyCategory prefers the remote prediction and falls back to the
// keyword classifier. No keyword hit means no prediction at all, never
// a low-confidence guess at the catch-all.
func (p *Pipeline) classifyCategory(ctx context.Context, inc *domain.Incident) (*domain.Category, float64) {
	if p.mlScorer != nil {
		result, err := p.mlScorer.Classify(ctx, inc.Text())
		if err == nil {
			cat := domain.Category(result.Category)
			if cat.Valid() {
				return &cat, result.Confidence
			}
			p.logger.Warn("ml scorer returned unknown category",
				logging.Int64("incident_id", inc.ID),
				logging.String("category", result.Category))
		} else {
			p.logger.Warn("ml classify failed, using keyword classifier",
				logging.Int64("incident_id", inc.ID),
				logging.Error(err))
		}
		p.recordFallback(ctx, "classify")
	}

	prediction := p.classifier.Predict(inc.Title, inc.Description)
	if prediction.Hits == 0 {
		return nil, 0
	}
	cat := prediction.Category
	return &cat, prediction.Confidence
}

// scoreToxicity prefers the remote assessment and falls back to the
// lexicon ratio.
func (p *Pipeline) scoreToxicity(ctx context.Context, inc *domain.Incident) classify.ToxicityResult {
	if p.mlScorer != nil {
		result, err := p.mlScorer.Toxicity(ctx, inc.Text())
		if err == nil {
			return classify.ToxicityResult{Score: result.Score, IsToxic: result.IsToxic}
		}
		p.logger.Warn("ml toxicity failed, using lexicon ratio",
			logging.Int64("incident_id", inc.ID),
			logging.Error(err))
		p.recordFallback(ctx, "toxicity")
	}
	return p.toxicity.Score(inc.Title, inc.Description)
}

// scoreDuplicates retrieves and scores duplicate candidates. A failed
// candidate query degrades to an empty snapshot rather than failing the
// enrichment: the submitter cannot fix a database hiccup.
func (p *Pipeline) scoreDuplicates(ctx context.Context, inc *domain.Incident) ([]domain.Incident, domain.DedupSnapshot, error) {
	candidates, err := p.retriever.Candidates(ctx, inc)
	if err != nil {
		p.logger.Warn("candidate retrieval failed, skipping dedup",
			logging.Int64("incident_id", inc.ID),
			logging.Error(err))
		candidates = nil
	}

	snapshot := p.scorer.Score(ctx, inc, candidates)
	if p.mlScorer != nil && len(candidates) > 0 && !snapshot.MLEnhanced {
		p.recordFallback(ctx, "similarity")
	}
	return candidates, snapshot, nil
}

// scoreRisk prefers the remote score and falls back to the additive
// heuristic. Duplicate pressure feeds both paths.
func (p *Pipeline) scoreRisk(ctx context.Context, inc *domain.Incident, duplicates int) float64 {
	if p.cfg.Risk.Disabled {
		return 0
	}

	if p.mlScorer != nil {
		result, err := p.mlScorer.Risk(ctx, inc.Text(), string(inc.Category), string(inc.Severity), duplicates)
		if err == nil {
			return result.Score
		}
		p.logger.Warn("ml risk failed, using heuristic formula",
			logging.Int64("incident_id", inc.ID),
			logging.Error(err))
		p.recordFallback(ctx, "risk")
	}

	return p.risk.Score(classify.RiskInput{
		Title:          inc.Title,
		Description:    inc.Description,
		Category:       inc.Category,
		Severity:       inc.Severity,
		DuplicateCount: duplicates,
	})
}

// applyClassification overwrites the reporter-chosen category with the
// prediction and recomputes severity from the risk score.
func (p *Pipeline) applyClassification(ctx context.Context, inc *domain.Incident, e *enrichment) error {
	category := inc.Category
	if !p.cfg.Classification.Disabled && e.predicted != nil {
		category = *e.predicted
	}

	severity := inc.Severity
	if !p.cfg.Risk.Disabled {
		severity = p.risk.MapSeverity(e.riskScore)
	}

	if category == inc.Category && severity == inc.Severity {
		return nil
	}

	if err := p.incidents.UpdateClassification(ctx, inc.ID, category, severity); err != nil {
		return fmt.Errorf("apply classification: %w", err)
	}
	inc.Category = category
	inc.Severity = severity
	return nil
}

// route applies the automatic routing decisions: link and advance a
// high-confidence duplicate, then flag anything toxic or high-risk. The
// flag check runs last and overrides the merged advance; a flagged
// duplicate still needs human eyes.
func (p *Pipeline) route(ctx context.Context, inc *domain.Incident, report *domain.Report, e *enrichment) error {
	if p.scorer.HighConfidence(e.snapshot) {
		if err := p.autoMerge(ctx, inc, report, e); err != nil {
			return err
		}
	}

	if trigger := p.flagTrigger(e); trigger != "" {
		return p.autoFlag(ctx, inc, report, e, trigger)
	}
	return nil
}

// flagTrigger returns what tripped the auto-flag, or empty for clean
// submissions. Toxicity is checked first; it is the cheaper signal to
// explain to a moderator.
func (p *Pipeline) flagTrigger(e *enrichment) string {
	if e.toxicity.IsToxic {
		return "toxicity"
	}
	if !p.cfg.Risk.Disabled && e.riskScore >= p.cfg.Flagging.AutoFlagRiskThreshold {
		return "risk"
	}
	return ""
}

// autoFlag pulls a submission out of the automatic flow for human
// review. Risk-triggered flags also raise the severity floor.
func (p *Pipeline) autoFlag(ctx context.Context, inc *domain.Incident, report *domain.Report, e *enrichment, trigger string) error {
	if trigger == "risk" && inc.Severity != domain.SeverityCritical {
		if err := p.incidents.UpdateClassification(ctx, inc.ID, inc.Category, domain.SeverityCritical); err != nil {
			return fmt.Errorf("raise flagged severity: %w", err)
		}
		inc.Severity = domain.SeverityCritical
	}

	if err := p.incidents.UpdateStatus(ctx, inc.ID, domain.StatusAutoFlagged, nil, nil); err != nil {
		return fmt.Errorf("flag incident: %w", err)
	}
	inc.Status = domain.StatusAutoFlagged

	notes := fmt.Sprintf("auto-flagged (%s)", trigger)
	if trigger == "risk" {
		notes = fmt.Sprintf("%s, score %.2f", notes, e.riskScore)
	}
	p.appendAction(ctx, inc.ID, &report.ID, domain.ActionFlagged, notes)

	if p.telemetry != nil {
		p.telemetry.RecordAutoFlag(ctx, trigger)
	}

	p.notifyRole(ctx, domain.RoleModerator, notify.NewEvent(notify.EventIncidentUpdate, notify.IncidentPayload{
		IncidentID: inc.ID,
		Title:      inc.Title,
		Category:   inc.Category,
		Severity:   inc.Severity,
		Status:     inc.Status,
	}))
	return nil
}

// autoMerge links a high-confidence duplicate under its canonical
// incident and advances it out of submitted. Link creation is
// idempotent; only the worker that actually inserts the link emits the
// audit entry and the notification. Only a human merge retires the
// incident to merged.
func (p *Pipeline) autoMerge(ctx context.Context, inc *domain.Incident, report *domain.Report, e *enrichment) error {
	canonicalID := e.snapshot.Candidates[0].CandidateIncidentID
	canonicalReport, err := p.reports.GetByIncidentID(ctx, canonicalID)
	if err != nil {
		p.logger.Warn("canonical report lookup failed, duplicate link skipped",
			logging.Int64("incident_id", inc.ID),
			logging.Int64("canonical_incident_id", canonicalID),
			logging.Error(err))
		return nil
	}

	inserted, err := p.links.Create(ctx, &domain.ReportLink{
		CanonicalReportID: canonicalReport.ID,
		DuplicateReportID: report.ID,
		LinkType:          domain.LinkAutoDuplicate,
	})
	if err != nil {
		p.logger.Warn("duplicate link creation failed",
			logging.Int64("incident_id", inc.ID),
			logging.Int64("canonical_incident_id", canonicalID),
			logging.Error(err))
		return nil
	}

	// Only one worker wins when the same submission is scored twice
	// concurrently; the loser leaves the row alone.
	advanced, err := p.incidents.AdvanceStatusIf(ctx, inc.ID, domain.StatusSubmitted, domain.StatusAutoProcessed)
	if err != nil {
		return fmt.Errorf("advance to auto_processed: %w", err)
	}
	if advanced {
		inc.Status = domain.StatusAutoProcessed
	}

	if !inserted {
		return nil
	}

	p.appendAction(ctx, inc.ID, &report.ID, domain.ActionMerged,
		fmt.Sprintf("auto-linked as duplicate of incident %d (score %.2f)", canonicalID, e.snapshot.TopScore))

	if p.telemetry != nil {
		p.telemetry.RecordAutoMerge(ctx)
	}

	p.notifyRole(ctx, domain.RoleModerator, notify.NewEvent(notify.EventIncidentDuplicate, notify.DuplicatePayload{
		IncidentID:          inc.ID,
		CanonicalIncidentID: canonicalID,
		Score:               e.snapshot.TopScore,
	}))
	return nil
}

func (p *Pipeline) appendAction(ctx context.Context, incidentID int64, reportID *int64, action domain.ActionType, notes string) {
	if err := p.actions.Create(ctx, &domain.ReportAction{
		ReportID:   reportID,
		IncidentID: incidentID,
		ActionType: action,
		Notes:      notes,
	}); err != nil {
		p.logger.Warn("audit entry failed",
			logging.Int64("incident_id", incidentID),
			logging.String("action", string(action)),
			logging.Error(err))
	}
}

func (p *Pipeline) notifyRole(ctx context.Context, role domain.Role, event notify.Event) {
	if err := p.notifier.NotifyRole(ctx, role, event); err != nil {
		p.logger.Warn("notification failed",
			logging.String("role", string(role)),
			logging.String("event_type", string(event.EventType)),
			logging.Error(err))
	}
}

func (p *Pipeline) recordFallback(ctx context.Context, capability string) {
	if p.telemetry != nil {
		p.telemetry.RecordMLFallback(ctx, capability)
	}
}

func (p *Pipeline) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if p.telemetry == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return p.telemetry.StartSpan(ctx, name)
}

// validateSubmission checks the fields the pipeline cannot default.
// Returns the rejection reason, or empty for a valid submission.
func validateSubmission(inc *domain.Incident) string {
	switch {
	case strings.TrimSpace(inc.Title) == "":
		return "missing_title"
	case strings.TrimSpace(inc.Description) == "":
		return "missing_description"
	case !inc.Category.Valid():
		return "invalid_category"
	case !inc.Severity.Valid():
		return "invalid_severity"
	case inc.OccurredAt.IsZero():
		return "missing_occurred_at"
	case inc.ReporterID == 0:
		return "missing_reporter"
	}
	return ""
}
