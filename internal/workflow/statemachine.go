// Package workflow validates and applies incident status transitions:
// the moderation flow and the stricter law-enforcement chain behind
// verified incidents.
package workflow

import (
	"errors"
	"fmt"

	"github.com/civicwatch/intake/internal/domain"
)

// Workflow violations. All are rejected synchronously; no partial
// mutation ever happens on a rejected transition.
var (
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrClosureOutcomeRequired = errors.New("closure outcome required")
	ErrInvalidClosureOutcome  = errors.New("invalid closure outcome")
	ErrCaseIDRequired         = errors.New("case id required for report_filed closure")
)

// transitions is the closed table of allowed moves. Self-transitions
// are always permitted as idempotent no-ops and are not listed. The
// law-enforcement chain (verified onward) allows skipping intermediate
// stages but never moving backwards; police_closed, merged and archived
// are terminal.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusSubmitted: {
		domain.StatusAutoProcessed, domain.StatusAutoFlagged, domain.StatusInReview,
		domain.StatusVerified, domain.StatusRejected, domain.StatusNeedsInfo,
		domain.StatusMerged,
	},
	domain.StatusAutoProcessed: {
		domain.StatusInReview, domain.StatusVerified, domain.StatusRejected,
		domain.StatusNeedsInfo, domain.StatusPublished, domain.StatusArchived,
		domain.StatusMerged,
	},
	domain.StatusAutoFlagged: {
		domain.StatusInReview, domain.StatusVerified, domain.StatusRejected,
		domain.StatusNeedsInfo, domain.StatusArchived,
	},
	domain.StatusInReview: {
		domain.StatusVerified, domain.StatusRejected, domain.StatusNeedsInfo,
		domain.StatusMerged,
	},
	domain.StatusNeedsInfo: {
		domain.StatusInReview, domain.StatusVerified, domain.StatusRejected,
	},
	domain.StatusVerified: {
		domain.StatusDispatched, domain.StatusInvestigating, domain.StatusPoliceClosed,
		domain.StatusPublished, domain.StatusResolved, domain.StatusArchived,
	},
	domain.StatusDispatched: {
		domain.StatusOnScene, domain.StatusInvestigating, domain.StatusPoliceClosed,
	},
	domain.StatusOnScene: {
		domain.StatusInvestigating, domain.StatusPoliceClosed,
	},
	domain.StatusInvestigating: {
		domain.StatusPoliceClosed,
	},
	domain.StatusPoliceClosed: {},
	domain.StatusRejected:     {domain.StatusArchived},
	domain.StatusPublished:    {domain.StatusResolved, domain.StatusArchived},
	domain.StatusResolved:     {domain.StatusArchived},
	domain.StatusArchived:     {},
	domain.StatusMerged:       {},
}

// Transition is a requested status change with its closure payload.
type Transition struct {
	To      domain.Status
	Outcome *domain.ClosureOutcome
	Details *domain.ClosureDetails
}

// CanTransition reports whether from → to is in the table. Identical
// statuses are always allowed.
func CanTransition(from, to domain.Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Validate checks a requested transition against the table and the
// closure requirements. Closing a case requires an outcome; the
// report_filed outcome additionally requires a case id.
func Validate(from domain.Status, t Transition) error {
	if !CanTransition(from, t.To) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, t.To)
	}

	if t.To != domain.StatusPoliceClosed || from == domain.StatusPoliceClosed {
		return nil
	}

	if t.Outcome == nil {
		return fmt.Errorf("%w: closing %s", ErrClosureOutcomeRequired, from)
	}
	if !t.Outcome.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidClosureOutcome, *t.Outcome)
	}
	if *t.Outcome == domain.OutcomeReportFiled && (t.Details == nil || t.Details.CaseID == "") {
		return ErrCaseIDRequired
	}

	return nil
}
