package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/civicwatch/intake/internal/domain"
)

// IncidentsRepository handles database operations for incidents.
type IncidentsRepository struct {
	db *sqlx.DB
}

// NewIncidentsRepository creates a new incidents repository.
func NewIncidentsRepository(db *sqlx.DB) *IncidentsRepository {
	return &IncidentsRepository{db: db}
}

// Create inserts a new incident and fills in its generated fields.
func (r *IncidentsRepository) Create(ctx context.Context, inc *domain.Incident) error {
	query := `
		INSERT INTO incidents (
			reporter_id, title, description, category, severity,
			latitude, longitude, location_name, occurred_at,
			status, is_draft, is_anonymous, photo_urls
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING incident_id, created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		inc.ReporterID,
		inc.Title,
		inc.Description,
		inc.Category,
		inc.Severity,
		inc.Latitude,
		inc.Longitude,
		inc.LocationName,
		inc.OccurredAt,
		inc.Status,
		inc.IsDraft,
		inc.IsAnonymous,
		pq.Array(inc.PhotoURLs),
	).Scan(&inc.ID, &inc.CreatedAt, &inc.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

// GetByID retrieves an incident by id.
func (r *IncidentsRepository) GetByID(ctx context.Context, id int64) (*domain.Incident, error) {
	var inc domain.Incident
	query := `
		SELECT incident_id, reporter_id, title, description, category, severity,
		       latitude, longitude, location_name, occurred_at, status,
		       is_draft, is_anonymous, photo_urls, closure_outcome, closure_details,
		       created_at, updated_at
		FROM incidents
		WHERE incident_id = $1
	`

	if err := r.db.GetContext(ctx, &inc, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("incident %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	return &inc, nil
}

// FindNearby returns non-draft incidents inside the bounding box and
// time window, newest first, capped at q.Limit rows. The exact radius
// cut happens in the caller; this query only needs to be index-friendly.
func (r *IncidentsRepository) FindNearby(ctx context.Context, q domain.NearbyQuery) ([]domain.Incident, error) {
	var incidents []domain.Incident
	query := `
		SELECT incident_id, reporter_id, title, description, category, severity,
		       latitude, longitude, location_name, occurred_at, status,
		       is_draft, is_anonymous, photo_urls, closure_outcome, closure_details,
		       created_at, updated_at
		FROM incidents
		WHERE is_draft = FALSE
		  AND incident_id <> $1
		  AND latitude BETWEEN $2 AND $3
		  AND longitude BETWEEN $4 AND $5
		  AND occurred_at BETWEEN $6 AND $7
		ORDER BY occurred_at DESC
		LIMIT $8
	`

	err := r.db.SelectContext(ctx, &incidents, query,
		q.ExcludeID, q.MinLat, q.MaxLat, q.MinLon, q.MaxLon,
		q.OccurredAfter, q.OccurredUntil, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find nearby incidents: %w", err)
	}

	return incidents, nil
}

// UpdateStatus sets the workflow status and optional closure fields.
func (r *IncidentsRepository) UpdateStatus(ctx context.Context, id int64, status domain.Status, outcome *domain.ClosureOutcome, details *domain.ClosureDetails) error {
	query := `
		UPDATE incidents
		SET status = $2,
		    closure_outcome = COALESCE($3, closure_outcome),
		    closure_details = COALESCE($4, closure_details),
		    updated_at = NOW()
		WHERE incident_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, outcome, details)
	if err != nil {
		return fmt.Errorf("failed to update incident status: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}

	return nil
}

// AdvanceStatusIf moves the incident from one status to another only if
// it is still in the expected status. Returns false when another writer
// got there first. This is the race guard behind auto-merge.
func (r *IncidentsRepository) AdvanceStatusIf(ctx context.Context, id int64, from, to domain.Status) (bool, error) {
	query := `
		UPDATE incidents
		SET status = $3, updated_at = NOW()
		WHERE incident_id = $1 AND status = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to advance incident status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows > 0, nil
}

// UpdateClassification overwrites the category and severity, used by
// enrichment and the moderator category correction.
func (r *IncidentsRepository) UpdateClassification(ctx context.Context, id int64, category domain.Category, severity domain.Severity) error {
	query := `
		UPDATE incidents
		SET category = $2, severity = $3, updated_at = NOW()
		WHERE incident_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, category, severity)
	if err != nil {
		return fmt.Errorf("failed to update incident classification: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("incident %d: %w", id, ErrNotFound)
	}

	return nil
}

// ListUncategorized returns non-draft incidents still in the catch-all
// category, oldest first, for the reclassify batch job.
func (r *IncidentsRepository) ListUncategorized(ctx context.Context, limit int) ([]domain.Incident, error) {
	var incidents []domain.Incident
	query := `
		SELECT incident_id, reporter_id, title, description, category, severity,
		       latitude, longitude, location_name, occurred_at, status,
		       is_draft, is_anonymous, photo_urls, closure_outcome, closure_details,
		       created_at, updated_at
		FROM incidents
		WHERE category = $1 AND is_draft = FALSE
		ORDER BY created_at ASC
		LIMIT $2
	`

	err := r.db.SelectContext(ctx, &incidents, query, domain.CategoryOther, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list uncategorized incidents: %w", err)
	}

	return incidents, nil
}
