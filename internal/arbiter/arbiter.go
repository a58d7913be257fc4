// Package arbiter records the single write-once decision per approval
// request.
//
// CommitDecision is the only operation in the system that needs atomicity:
// when several reviewers race on the same request ID, exactly one commit
// succeeds and every other caller receives AlreadyDecidedError carrying
// the winning decision. The store's create-if-absent primitive provides
// the atomicity; this package never reads then writes.
package arbiter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/store"
)

// Arbiter arbitrates decisions against a keyed store.
type Arbiter struct {
	store store.Store
	now   func() time.Time
}

// New creates an arbiter backed by the given store.
func New(st store.Store) *Arbiter {
	return &Arbiter{store: st, now: time.Now}
}

// GetDecision returns the decision for a request ID, or nil if undecided.
func (a *Arbiter) GetDecision(requestID string) (*models.Decision, error) {
	d, err := a.store.GetDecision(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read decision: %w", err)
	}
	return d, nil
}

// CommitDecision atomically records the decision for a request ID. If a
// decision already exists, it returns AlreadyDecidedError wrapping the
// existing record; the stored decision is never modified.
func (a *Arbiter) CommitDecision(requestID, trackID string, flow models.FlowKind, status models.InvoiceStatus, decidedBy, referenceID, reason string) (*models.Decision, error) {
	if !models.IsValidInvoiceStatus(status) {
		return nil, models.ErrInvalidStatus
	}
	d := models.Decision{
		RequestID:   requestID,
		TrackID:     trackID,
		Flow:        flow,
		Status:      status,
		DecidedBy:   decidedBy,
		DecidedAt:   a.now(),
		ReferenceID: referenceID,
		Reason:      reason,
	}
	created, err := a.store.CreateDecision(d)
	if err != nil {
		return nil, fmt.Errorf("failed to commit decision for %s: %w", requestID, err)
	}
	if created {
		slog.Info("Decision committed", "requestID", requestID, "trackID", trackID, "status", status, "decidedBy", decidedBy)
		return &d, nil
	}

	winner, err := a.store.GetDecision(requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to read winning decision for %s: %w", requestID, err)
	}
	if winner == nil {
		// The insert lost to a record that has since vanished. Decisions are
		// never deleted in normal operation, so treat this as a store fault.
		return nil, fmt.Errorf("decision for %s reported existing but not found", requestID)
	}
	slog.Info("Decision race lost", "requestID", requestID, "winner", winner.DecidedBy, "status", winner.Status)
	return nil, &models.AlreadyDecidedError{Decision: *winner}
}
