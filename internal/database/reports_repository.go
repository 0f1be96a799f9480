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

// ReportsRepository handles database operations for reports.
type ReportsRepository struct {
	db *sqlx.DB
}

// NewReportsRepository creates a new reports repository.
func NewReportsRepository(db *sqlx.DB) *ReportsRepository {
	return &ReportsRepository{db: db}
}

// Create inserts the processing record for a submitted incident.
func (r *ReportsRepository) Create(ctx context.Context, report *domain.Report) error {
	query := `
		INSERT INTO reports (incident_id, photo_refs, ml_confidence, enrichment_status)
		VALUES ($1, $2, $3, $4)
		RETURNING report_id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		report.IncidentID,
		pq.Array(report.PhotoRefs),
		report.MLConfidence,
		report.EnrichmentStatus,
	).Scan(&report.ID, &report.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

// GetByIncidentID retrieves the report attached to an incident.
func (r *ReportsRepository) GetByIncidentID(ctx context.Context, incidentID int64) (*domain.Report, error) {
	var report domain.Report
	query := `
		SELECT report_id, incident_id, photo_refs, ml_confidence, enrichment_status, created_at
		FROM reports
		WHERE incident_id = $1
	`

	if err := r.db.GetContext(ctx, &report, query, incidentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("report for incident %d: %w", incidentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// SetEnrichmentOutcome records how enrichment finished and the final
// confidence in one write.
func (r *ReportsRepository) SetEnrichmentOutcome(ctx context.Context, reportID int64, status domain.EnrichmentStatus, confidence float64) error {
	query := `
		UPDATE reports
		SET enrichment_status = $2, ml_confidence = $3
		WHERE report_id = $1
	`

	result, err := r.db.ExecContext(ctx, query, reportID, status, confidence)
	if err != nil {
		return fmt.Errorf("failed to set enrichment outcome: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("report %d: %w", reportID, ErrNotFound)
	}

	return nil
}
