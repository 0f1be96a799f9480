package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicwatch/intake/internal/domain"
)

// ReportLinksRepository handles database operations for duplicate links.
type ReportLinksRepository struct {
	db *sqlx.DB
}

// NewReportLinksRepository creates a new report links repository.
func NewReportLinksRepository(db *sqlx.DB) *ReportLinksRepository {
	return &ReportLinksRepository{db: db}
}

// Create inserts a duplicate link. The (canonical, duplicate) pair is
// unique; re-linking the same pair is a silent no-op and the return
// value reports whether a new row was actually written.
func (r *ReportLinksRepository) Create(ctx context.Context, link *domain.ReportLink) (bool, error) {
	query := `
		INSERT INTO report_links (canonical_report_id, duplicate_report_id, link_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (canonical_report_id, duplicate_report_id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, link.CanonicalReportID, link.DuplicateReportID, link.LinkType)
	if err != nil {
		return false, fmt.Errorf("failed to create report link: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	return rows > 0, nil
}

// ListByCanonical returns all duplicates linked under a canonical report.
func (r *ReportLinksRepository) ListByCanonical(ctx context.Context, canonicalReportID int64) ([]domain.ReportLink, error) {
	var links []domain.ReportLink
	query := `
		SELECT link_id, canonical_report_id, duplicate_report_id, link_type, created_at
		FROM report_links
		WHERE canonical_report_id = $1
		ORDER BY created_at ASC
	`

	if err := r.db.SelectContext(ctx, &links, query, canonicalReportID); err != nil {
		return nil, fmt.Errorf("failed to list report links: %w", err)
	}

	return links, nil
}

// CountByCanonical returns how many duplicates point at a canonical
// report, an input to risk scoring.
func (r *ReportLinksRepository) CountByCanonical(ctx context.Context, canonicalReportID int64) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM report_links WHERE canonical_report_id = $1`

	if err := r.db.GetContext(ctx, &count, query, canonicalReportID); err != nil {
		return 0, fmt.Errorf("failed to count report links: %w", err)
	}

	return count, nil
}
