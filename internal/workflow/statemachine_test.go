package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicwatch/intake/internal/domain"
)

func outcome(o domain.ClosureOutcome) *domain.ClosureOutcome {
	return &o
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from domain.Status
		to   domain.Status
		want bool
	}{
		{"submitted to auto_processed", domain.StatusSubmitted, domain.StatusAutoProcessed, true},
		{"submitted to auto_flagged", domain.StatusSubmitted, domain.StatusAutoFlagged, true},
		{"submitted to in_review", domain.StatusSubmitted, domain.StatusInReview, true},
		{"in_review to verified", domain.StatusInReview, domain.StatusVerified, true},
		{"in_review to rejected", domain.StatusInReview, domain.StatusRejected, true},
		{"needs_info back to in_review", domain.StatusNeedsInfo, domain.StatusInReview, true},
		{"verified to dispatched", domain.StatusVerified, domain.StatusDispatched, true},
		{"dispatched to on_scene", domain.StatusDispatched, domain.StatusOnScene, true},
		{"on_scene to investigating", domain.StatusOnScene, domain.StatusInvestigating, true},
		{"investigating to police_closed", domain.StatusInvestigating, domain.StatusPoliceClosed, true},
		{"verified skips straight to police_closed", domain.StatusVerified, domain.StatusPoliceClosed, true},
		{"dispatched skips on_scene", domain.StatusDispatched, domain.StatusInvestigating, true},
		{"self transition is a no-op", domain.StatusInReview, domain.StatusInReview, true},
		{"terminal self transition", domain.StatusPoliceClosed, domain.StatusPoliceClosed, true},
		{"enforcement chain never moves backwards", domain.StatusOnScene, domain.StatusDispatched, false},
		{"investigating cannot reopen to verified", domain.StatusInvestigating, domain.StatusVerified, false},
		{"police_closed is terminal", domain.StatusPoliceClosed, domain.StatusArchived, false},
		{"merged is terminal", domain.StatusMerged, domain.StatusInReview, false},
		{"archived is terminal", domain.StatusArchived, domain.StatusPublished, false},
		{"rejected cannot be verified", domain.StatusRejected, domain.StatusVerified, false},
		{"submitted cannot jump to dispatched", domain.StatusSubmitted, domain.StatusDispatched, false},
		{"published cannot enter enforcement chain", domain.StatusPublished, domain.StatusDispatched, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestValidateRejectsUnknownTransition(t *testing.T) {
	err := Validate(domain.StatusRejected, Transition{To: domain.StatusVerified})
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidateClosureRules(t *testing.T) {
	tests := []struct {
		name    string
		from    domain.Status
		t       Transition
		wantErr error
	}{
		{
			name:    "closing without an outcome",
			from:    domain.StatusVerified,
			t:       Transition{To: domain.StatusPoliceClosed},
			wantErr: ErrClosureOutcomeRequired,
		},
		{
			name: "closing with an unknown outcome",
			from: domain.StatusInvestigating,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.ClosureOutcome("case_dropped")),
			},
			wantErr: ErrInvalidClosureOutcome,
		},
		{
			name: "report_filed without a case id",
			from: domain.StatusInvestigating,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.OutcomeReportFiled),
			},
			wantErr: ErrCaseIDRequired,
		},
		{
			name: "report_filed with empty case id",
			from: domain.StatusInvestigating,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.OutcomeReportFiled),
				Details: &domain.ClosureDetails{OfficerNotes: "filed downtown"},
			},
			wantErr: ErrCaseIDRequired,
		},
		{
			name: "report_filed with a case id",
			from: domain.StatusInvestigating,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.OutcomeReportFiled),
				Details: &domain.ClosureDetails{CaseID: "2026-004417"},
			},
		},
		{
			name: "arrest_made needs no details",
			from: domain.StatusOnScene,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.OutcomeArrestMade),
			},
		},
		{
			name: "false_alarm straight from verified",
			from: domain.StatusVerified,
			t: Transition{
				To:      domain.StatusPoliceClosed,
				Outcome: outcome(domain.OutcomeFalseAlarm),
			},
		},
		{
			name: "non-closing transition ignores outcome fields",
			from: domain.StatusVerified,
			t:    Transition{To: domain.StatusDispatched},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.from, tt.t)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateSelfTransitionOnClosed(t *testing.T) {
	// Re-posting police_closed must not demand the outcome again.
	err := Validate(domain.StatusPoliceClosed, Transition{To: domain.StatusPoliceClosed})
	assert.NoError(t, err)
}
