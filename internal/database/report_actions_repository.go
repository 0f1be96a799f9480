package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/civicwatch/intake/internal/domain"
)

// ReportActionsRepository handles the append-only audit log.
type ReportActionsRepository struct {
	db *sqlx.DB
}

// NewReportActionsRepository creates a new report actions repository.
func NewReportActionsRepository(db *sqlx.DB) *ReportActionsRepository {
	return &ReportActionsRepository{db: db}
}

// Create appends an audit entry. ActorID stays NULL for system actions.
func (r *ReportActionsRepository) Create(ctx context.Context, action *domain.ReportAction) error {
	query := `
		INSERT INTO report_actions (report_id, incident_id, actor_id, action_type, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING action_id, timestamp
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		action.ReportID,
		action.IncidentID,
		action.ActorID,
		action.ActionType,
		action.Notes,
	).Scan(&action.ID, &action.Timestamp)

	if err != nil {
		return fmt.Errorf("failed to create report action: %w", err)
	}

	return nil
}

// ListByIncident returns the audit trail of an incident, oldest first.
func (r *ReportActionsRepository) ListByIncident(ctx context.Context, incidentID int64) ([]domain.ReportAction, error) {
	var actions []domain.ReportAction
	query := `
		SELECT action_id, report_id, incident_id, actor_id, action_type, notes, timestamp
		FROM report_actions
		WHERE incident_id = $1
		ORDER BY timestamp ASC
	`

	if err := r.db.SelectContext(ctx, &actions, query, incidentID); err != nil {
		return nil, fmt.Errorf("failed to list report actions: %w", err)
	}

	return actions, nil
}
