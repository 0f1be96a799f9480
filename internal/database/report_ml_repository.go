package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/civicwatch/intake/internal/domain"
)

// ReportMLRepository handles database operations for ML scoring snapshots.
type ReportMLRepository struct {
	db *sqlx.DB
}

// NewReportMLRepository creates a new report ML repository.
func NewReportMLRepository(db *sqlx.DB) *ReportMLRepository {
	return &ReportMLRepository{db: db}
}

// Create inserts a scoring snapshot for a report.
func (r *ReportMLRepository) Create(ctx context.Context, ml *domain.ReportML) error {
	query := `
		INSERT INTO report_ml (
			report_id, predicted_category, confidence, dedup_candidates,
			risk_score, toxicity_score, is_toxic
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ml_id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		ml.ReportID,
		ml.PredictedCategory,
		ml.Confidence,
		ml.DedupCandidates,
		ml.RiskScore,
		ml.ToxicityScore,
		ml.IsToxic,
	).Scan(&ml.ID, &ml.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create report ml snapshot: %w", err)
	}

	return nil
}

// GetLatestByReportID retrieves the newest snapshot for a report.
func (r *ReportMLRepository) GetLatestByReportID(ctx context.Context, reportID int64) (*domain.ReportML, error) {
	var ml domain.ReportML
	query := `
		SELECT ml_id, report_id, predicted_category, confidence, dedup_candidates,
		       risk_score, toxicity_score, is_toxic,
		       dedup_verdict, dedup_verdict_by, dedup_verdict_at, created_at
		FROM report_ml
		WHERE report_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	if err := r.db.GetContext(ctx, &ml, query, reportID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ml snapshot for report %d: %w", reportID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report ml snapshot: %w", err)
	}

	return &ml, nil
}

// SetVerdict records the moderator's duplicate verdict on the latest
// snapshot for the report.
func (r *ReportMLRepository) SetVerdict(ctx context.Context, reportID int64, verdict domain.DedupVerdict, actorID *int64, at time.Time) error {
	query := `
		UPDATE report_ml
		SET dedup_verdict = $2, dedup_verdict_by = $3, dedup_verdict_at = $4
		WHERE ml_id = (
			SELECT ml_id FROM report_ml
			WHERE report_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		)
	`

	result, err := r.db.ExecContext(ctx, query, reportID, verdict, actorID, at)
	if err != nil {
		return fmt.Errorf("failed to set dedup verdict: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("ml snapshot for report %d: %w", reportID, ErrNotFound)
	}

	return nil
}
