package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/civicwatch/intake/internal/config"
	"github.com/civicwatch/intake/internal/domain"
	"github.com/civicwatch/intake/internal/logging"
)

// IncidentSource is the persistence query the retriever depends on. The
// implementation prefilters with a bounding box; the retriever applies
// the exact radius check.
type IncidentSource interface {
	FindNearby(ctx context.Context, q domain.NearbyQuery) ([]domain.Incident, error)
}

// Retriever fetches duplicate candidates for a new incident.
type Retriever struct {
	source IncidentSource
	cfg    config.DedupConfig
	logger logging.Logger
}

// NewRetriever creates a candidate retriever.
func NewRetriever(source IncidentSource, cfg config.DedupConfig, logger logging.Logger) *Retriever {
	return &Retriever{source: source, cfg: cfg, logger: logger}
}

// Candidates returns up to CandidateLimit incidents within the dedup
// radius and time window of inc, newest first, excluding inc itself and
// all drafts. Incidents without usable coordinates get no candidates at
// all.
func (r *Retriever) Candidates(ctx context.Context, inc *domain.Incident) ([]domain.Incident, error) {
	if !inc.HasValidLocation() {
		return nil, nil
	}

	lat, lon := *inc.Latitude, *inc.Longitude
	minLat, maxLat, minLon, maxLon := BoundingBox(lat, lon, r.cfg.RadiusMeters)

	rows, err := r.source.FindNearby(ctx, domain.NearbyQuery{
		MinLat:        minLat,
		MaxLat:        maxLat,
		MinLon:        minLon,
		MaxLon:        maxLon,
		OccurredAfter: inc.OccurredAt.Add(-r.cfg.Window),
		OccurredUntil: inc.OccurredAt.Add(r.cfg.Window),
		ExcludeID:     inc.ID,
		Limit:         r.cfg.CandidateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("find nearby incidents: %w", err)
	}

	// The bounding box over-selects at the corners; keep only incidents
	// inside the true radius.
	candidates := make([]domain.Incident, 0, len(rows))
	for _, row := range rows {
		if !row.HasValidLocation() {
			continue
		}
		dist := Haversine(lat, lon, *row.Latitude, *row.Longitude)
		if dist <= r.cfg.RadiusMeters {
			candidates = append(candidates, row)
		}
	}

	if r.logger != nil {
		r.logger.Debug("dedup candidates retrieved",
			logging.Int64("incident_id", inc.ID),
			logging.Int("prefiltered", len(rows)),
			logging.Int("candidates", len(candidates)))
	}

	return candidates, nil
}

// windowHours converts the configured window to fractional hours for
// snapshot bookkeeping.
func windowHours(w time.Duration) float64 {
	return w.Hours()
}
