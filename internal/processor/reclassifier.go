// Package processor contains the offline reclassify batch job: the
// manual remediation path for incidents that entered the system without
// a usable category.
package processor

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/civicwatch/intake/internal/classify"
	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
	"github.com/civicwatch/intake/internal/mlclient"
	"github.com/civicwatch/intake/internal/telemetry"
)

// IncidentStore is the persistence surface the job depends on.
type IncidentStore interface {
	ListUncategorized(ctx context.Context, limit int) ([]domain.Incident, error)
	UpdateClassification(ctx context.Context, id int64, category domain.Category, severity domain.Severity) error
}

// MLScorer is the remote classification capability.
type MLScorer interface {
	Classify(ctx context.Context, text string) (*mlclient.ClassifyResult, error)
}

// Stats summarizes one reclassify run.
type Stats struct {
	Scanned int
	Updated int
	Failed  int
}

// Reclassifier sweeps uncategorized incidents and retries their
// classification. Rate-limited so a large backlog never floods the
// remote scorer.
type Reclassifier struct {
	incidents  IncidentStore
	classifier *classify.CategoryClassifier
	risk       *classify.RiskScorer
	mlScorer   MLScorer
	limiter    *rate.Limiter
	telemetry  *telemetry.Provider
	logger     logging.Logger
	cfg        *config.Config
}

// NewReclassifier creates the batch job. mlScorer may be nil; the
// keyword classifier then does all the work.
func NewReclassifier(
	incidents IncidentStore,
	classifier *classify.CategoryClassifier,
	risk *classify.RiskScorer,
	mlScorer MLScorer,
	tp *telemetry.Provider,
	logger logging.Logger,
	cfg *config.Config,
) *Reclassifier {
	perMinute := cfg.Reclassify.RatePerMinute
	if perMinute <= 0 {
		perMinute = 1
	}

	return &Reclassifier{
		incidents:  incidents,
		classifier: classifier,
		risk:       risk,
		mlScorer:   mlScorer,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1),
		telemetry:  tp,
		logger:     logger,
		cfg:        cfg,
	}
}

// Run processes one batch of uncategorized incidents and returns what
// it did. Incidents that still produce no prediction are left alone for
// the next run.
func (r *Reclassifier) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	incidents, err := r.incidents.ListUncategorized(ctx, r.cfg.Reclassify.BatchSize)
	if err != nil {
		return stats, fmt.Errorf("list uncategorized incidents: %w", err)
	}

	r.logger.Info("reclassify run started",
		logging.Int("batch", len(incidents)),
		logging.Int("rate_per_minute", r.cfg.Reclassify.RatePerMinute))

	for i := range incidents {
		inc := &incidents[i]
		if err := r.limiter.Wait(ctx); err != nil {
			return stats, fmt.Errorf("rate limiter: %w", err)
		}

		stats.Scanned++
		updated, err := r.reclassify(ctx, inc)
		if err != nil {
			stats.Failed++
			r.logger.Warn("reclassify failed",
				logging.Int64("incident_id", inc.ID),
				logging.Error(err))
			continue
		}
		if updated {
			stats.Updated++
		}
		if r.telemetry != nil {
			r.telemetry.RecordReclassify(ctx, updated)
		}
	}

	r.logger.Info("reclassify run finished",
		logging.Int("scanned", stats.Scanned),
		logging.Int("updated", stats.Updated),
		logging.Int("failed", stats.Failed))

	return stats, nil
}

// reclassify retries classification for one incident, reporting whether
// it changed the row.
func (r *Reclassifier) reclassify(ctx context.Context, inc *domain.Incident) (bool, error) {
	predicted := r.predict(ctx, inc)
	if predicted == nil || *predicted == domain.CategoryOther {
		return false, nil
	}

	severity := inc.Severity
	if !r.cfg.Risk.Disabled {
		score := r.risk.Score(classify.RiskInput{
			Title:       inc.Title,
			Description: inc.Description,
			Category:    *predicted,
			Severity:    inc.Severity,
		})
		severity = r.risk.MapSeverity(score)
	}

	if err := r.incidents.UpdateClassification(ctx, inc.ID, *predicted, severity); err != nil {
		return false, fmt.Errorf("update classification: %w", err)
	}

	r.logger.Debug("incident reclassified",
		logging.Int64("incident_id", inc.ID),
		logging.String("category", string(*predicted)))
	return true, nil
}

func (r *Reclassifier) predict(ctx context.Context, inc *domain.Incident) *domain.Category {
	if r.mlScorer != nil {
		result, err := r.mlScorer.Classify(ctx, inc.Text())
		if err == nil {
			cat := domain.Category(result.Category)
			if cat.Valid() {
				return &cat
			}
		} else if r.telemetry != nil {
			r.telemetry.RecordMLFallback(ctx, "classify")
		}
	}

	prediction := r.classifier.Predict(inc.Title, inc.Description)
	if prediction.Hits == 0 {
		return nil
	}
	cat := prediction.Category
	return &cat
}
