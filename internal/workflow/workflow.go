// Package workflow orchestrates the approval lifecycle: broadcasting
// pending-transaction alerts to reviewers, driving the multi-step decision
// dialogue, arbitrating the single winning decision, and propagating it to
// the financial platform.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/arbiter"
	"github.com/Nikaat/skenas-support-bot/internal/backend"
	"github.com/Nikaat/skenas-support-bot/internal/conversation"
	"github.com/Nikaat/skenas-support-bot/internal/messaging"
	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/session"
	"github.com/Nikaat/skenas-support-bot/internal/store"
)

// Opts holds configuration options for the workflow.
type Opts struct {
	Catalog    *RejectionCatalog
	SMS        messaging.SMSSender
	SMSNumbers []string
}

// Option defines a configuration option for the workflow.
type Option func(*Opts)

// WithCatalog sets the rejection reason catalog.
func WithCatalog(c *RejectionCatalog) Option {
	return func(o *Opts) { o.Catalog = c }
}

// WithSMSMirror enables plain SMS mirrors of broadcast alerts to the given
// phone numbers. SMS carries no controls; decisions still happen in chat.
func WithSMSMirror(sender messaging.SMSSender, numbers []string) Option {
	return func(o *Opts) {
		o.SMS = sender
		o.SMSNumbers = numbers
	}
}

// Workflow wires the messaging transport to sessions, conversations, the
// decision arbiter and the platform backend.
type Workflow struct {
	store         store.Store
	sessions      *session.Manager
	conversations *conversation.Manager
	arbiter       *arbiter.Arbiter
	backend       backend.Client
	msg           messaging.Service
	catalog       *RejectionCatalog
	sms           messaging.SMSSender
	smsNumbers    []string
	started       time.Time
}

// New creates the approval workflow.
func New(st store.Store, sessions *session.Manager, conversations *conversation.Manager, arb *arbiter.Arbiter, platform backend.Client, msg messaging.Service, opts ...Option) *Workflow {
	cfg := Opts{Catalog: NewRejectionCatalog()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Workflow{
		store:         st,
		sessions:      sessions,
		conversations: conversations,
		arbiter:       arb,
		backend:       platform,
		msg:           msg,
		catalog:       cfg.Catalog,
		sms:           cfg.SMS,
		smsNumbers:    cfg.SMSNumbers,
		started:       time.Now(),
	}
}

// Run consumes inbound reviewer events until the context is cancelled.
func (w *Workflow) Run(ctx context.Context) error {
	if err := w.msg.Start(ctx); err != nil {
		return fmt.Errorf("failed to start messaging service: %w", err)
	}
	slog.Info("Workflow running")
	for {
		select {
		case <-ctx.Done():
			return w.msg.Stop()
		case ev, ok := <-w.msg.Events():
			if !ok {
				return nil
			}
			w.dispatch(ctx, ev)
		}
	}
}

// Broadcast saves the approval request and fans the alert out to every
// active reviewer with decision controls attached. Returns the chat
// addresses the alert reached. Per-recipient failures are logged and
// skipped; one unreachable reviewer must not starve the rest.
func (w *Workflow) Broadcast(ctx context.Context, req models.ApprovalRequest) ([]string, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("invalid approval request: %w", err)
	}
	if err := w.store.SaveApprovalRequest(req); err != nil {
		return nil, fmt.Errorf("failed to save approval request: %w", err)
	}
	active, err := w.sessions.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	controls := w.decisionControls(req)
	var recipients []string
	for _, sess := range active {
		if _, err := messaging.DeliverWithRetry(ctx, w.msg, sess.ChatID, req.Message, controls); err != nil {
			slog.Error("Failed to deliver alert to reviewer", "error", err, "chatID", sess.ChatID, "requestID", req.RequestID)
			continue
		}
		recipients = append(recipients, sess.ChatID)
	}
	slog.Info("Alert broadcast", "requestID", req.RequestID, "trackID", req.TrackID, "flow", req.Flow, "recipients", len(recipients))
	w.mirrorSMS(ctx, req.Message)
	return recipients, nil
}

// BroadcastPlain fans a control-free informational message out to every
// active reviewer.
func (w *Workflow) BroadcastPlain(ctx context.Context, text string) ([]string, error) {
	if text == "" {
		return nil, models.ErrEmptyMessage
	}
	active, err := w.sessions.ListActive()
	if err != nil {
		return nil, fmt.Errorf("failed to list reviewers: %w", err)
	}
	var recipients []string
	for _, sess := range active {
		if _, err := messaging.DeliverWithRetry(ctx, w.msg, sess.ChatID, text, nil); err != nil {
			slog.Error("Failed to deliver message to reviewer", "error", err, "chatID", sess.ChatID)
			continue
		}
		recipients = append(recipients, sess.ChatID)
	}
	w.mirrorSMS(ctx, text)
	return recipients, nil
}

func (w *Workflow) mirrorSMS(ctx context.Context, text string) {
	if w.sms == nil {
		return
	}
	for _, number := range w.smsNumbers {
		if err := w.sms.SendAlert(ctx, number, text); err != nil {
			slog.Error("Failed to mirror alert over SMS", "error", err, "to", number)
		}
	}
}

// decisionControls builds the status buttons for an alert. The callback
// token encodes flow, status, request ID and track ID.
func (w *Workflow) decisionControls(req models.ApprovalRequest) [][]messaging.Control {
	token := func(status models.InvoiceStatus) string {
		return fmt.Sprintf("%s:%s:%s:%s", req.Flow, status, req.RequestID, req.TrackID)
	}
	return [][]messaging.Control{
		{
			{Label: "✅ Paid", Data: token(models.InvoiceStatusPaid)},
			{Label: "❌ Rejected", Data: token(models.InvoiceStatusRejected)},
		},
		{
			{Label: "⏳ Pending", Data: token(models.InvoiceStatusPending)},
			{Label: "🔍 Validating", Data: token(models.InvoiceStatusValidating)},
		},
	}
}

// reasonControls builds one page of canned rejection reasons plus
// navigation and the free-text escape. Reason indexes are global.
func (w *Workflow) reasonControls(page CatalogPage) [][]messaging.Control {
	var rows [][]messaging.Control
	for i, reason := range page.Reasons {
		rows = append(rows, []messaging.Control{
			{Label: reason, Data: fmt.Sprintf("reason:%d", page.Start+i)},
		})
	}
	var nav []messaging.Control
	if page.HasPrev {
		nav = append(nav, messaging.Control{Label: "⬅️ Prev", Data: fmt.Sprintf("page:%d", page.Page-1)})
	}
	if page.HasNext {
		nav = append(nav, messaging.Control{Label: "Next ➡️", Data: fmt.Sprintf("page:%d", page.Page+1)})
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []messaging.Control{{Label: "✍️ Other reason", Data: "reason:other"}})
	return rows
}

// finalize commits the decision and then propagates it to the platform.
// The commit is the source of truth: a platform failure is reported to the
// reviewer but never undoes the recorded decision.
func (w *Workflow) finalize(ctx context.Context, chatID string, sess *models.AdminSession, draft models.DecisionDraft, referenceID, reason string) {
	if err := w.conversations.End(chatID); err != nil {
		slog.Error("Failed to end dialogue", "error", err, "chatID", chatID)
	}
	d, err := w.arbiter.CommitDecision(draft.RequestID, draft.TrackID, draft.Flow, draft.Status, sess.PhoneNumber, referenceID, reason)
	if err != nil {
		var already *models.AlreadyDecidedError
		if errors.As(err, &already) {
			w.reply(ctx, chatID, alreadyDecidedText(already.Decision))
			return
		}
		slog.Error("Failed to commit decision", "error", err, "requestID", draft.RequestID)
		w.reply(ctx, chatID, "Something went wrong recording your decision. Please try again.")
		return
	}

	w.reply(ctx, chatID, fmt.Sprintf("Decision recorded: %s for transaction %s.", d.Status, d.TrackID))

	if err := w.propagate(ctx, *d); err != nil {
		slog.Error("Failed to propagate decision to platform", "error", err, "requestID", d.RequestID, "trackID", d.TrackID)
		w.reply(ctx, chatID, fmt.Sprintf("⚠️ The decision is recorded, but updating the platform failed: %v", err))
		return
	}
	w.reply(ctx, chatID, "Platform updated successfully.")
}

func (w *Workflow) propagate(ctx context.Context, d models.Decision) error {
	switch d.Flow {
	case models.FlowCrypto:
		return w.backend.UpdateCryptoInvoiceStatus(ctx, d.TrackID, d.Status, d.ReferenceID, d.Reason)
	case models.FlowCashOut:
		return w.backend.UpdateCashOutInvoiceStatus(ctx, d.TrackID, d.Status, d.ReferenceID, d.Reason)
	default:
		return models.ErrInvalidFlow
	}
}

func (w *Workflow) reply(ctx context.Context, chatID, text string) {
	if _, err := w.msg.Deliver(ctx, chatID, text, nil); err != nil {
		slog.Error("Failed to deliver reply", "error", err, "chatID", chatID)
	}
}

func alreadyDecidedText(d models.Decision) string {
	return fmt.Sprintf("This transaction was already resolved as %s by %s at %s.",
		d.Status, d.DecidedBy, d.DecidedAt.Format(time.RFC3339))
}

// Status reports bot health for the management API.
func (w *Workflow) Status() models.BotStatus {
	active, err := w.sessions.ListActive()
	if err != nil {
		slog.Error("Failed to count active reviewers", "error", err)
	}
	return models.BotStatus{
		Status:       "running",
		UptimeSec:    time.Since(w.started).Seconds(),
		ActiveAdmins: len(active),
		Timestamp:    time.Now(),
	}
}

// parseDecisionToken splits a "<flow>:<status>:<requestID>:<trackID>"
// callback token.
func parseDecisionToken(data string) (models.FlowKind, models.InvoiceStatus, string, string, bool) {
	parts := strings.SplitN(data, ":", 4)
	if len(parts) != 4 {
		return "", "", "", "", false
	}
	flow := models.FlowKind(parts[0])
	status := models.InvoiceStatus(parts[1])
	if !models.IsValidFlowKind(flow) || !models.IsValidInvoiceStatus(status) {
		return "", "", "", "", false
	}
	return flow, status, parts[2], parts[3], true
}
