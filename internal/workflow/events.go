package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/Nikaat/skenas-support-bot/internal/messaging"
	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/util"
)

const (
	helpText = "Commands:\n" +
		"/start — authenticate with your phone number\n" +
		"/status — bot and session status\n" +
		"/notif — compose a push notification\n" +
		"/cancel — abandon the current dialogue\n" +
		"/logout — end your session\n" +
		"/help — this message"

	referencePrompt = "Reply with the payment reference number (digits only), or \"-\" if there is none."
	reasonPrompt    = "Select a rejection reason:"
	customPrompt    = "Type the rejection reason (at most 30 words)."
	authPrompt      = "Please authenticate with /start."
	guidanceText    = "Nothing is awaiting your input. Use /help for available commands."
)

func (w *Workflow) dispatch(ctx context.Context, ev messaging.Event) {
	slog.Debug("Inbound event", "kind", ev.Kind, "chatID", ev.ChatID)
	switch ev.Kind {
	case messaging.EventContact:
		w.handleContact(ctx, ev)
	case messaging.EventCommand:
		w.handleCommand(ctx, ev)
	case messaging.EventCallback:
		w.handleCallback(ctx, ev)
	case messaging.EventText:
		w.handleText(ctx, ev)
	default:
		slog.Warn("Unknown event kind", "kind", ev.Kind, "chatID", ev.ChatID)
	}
}

func (w *Workflow) handleContact(ctx context.Context, ev messaging.Event) {
	sess, err := w.sessions.Authenticate(ev.Phone, ev.ChatID)
	if err != nil {
		if errors.Is(err, models.ErrNotAdmin) {
			w.reply(ctx, ev.ChatID, "Access denied. Your phone number is not registered as a reviewer.")
			return
		}
		slog.Error("Authentication failed", "error", err, "chatID", ev.ChatID)
		w.reply(ctx, ev.ChatID, "Authentication failed. Please try again.")
		return
	}
	if sess.CanDecide() {
		w.reply(ctx, ev.ChatID, "Welcome. You are authorized to resolve pending transactions.")
	} else {
		w.reply(ctx, ev.ChatID, "Welcome. You will receive transaction alerts (view only).")
	}
}

// handleCommand processes slash commands. Any command implicitly abandons
// an in-progress dialogue.
func (w *Workflow) handleCommand(ctx context.Context, ev messaging.Event) {
	if err := w.conversations.End(ev.ChatID); err != nil {
		slog.Error("Failed to cancel dialogue on command", "error", err, "chatID", ev.ChatID)
	}
	switch ev.Command {
	case "start":
		sess, err := w.sessions.Lookup(ev.ChatID)
		if err != nil {
			slog.Error("Session lookup failed", "error", err, "chatID", ev.ChatID)
			return
		}
		if sess != nil {
			w.reply(ctx, ev.ChatID, "You are already authenticated. Use /help for commands.")
			return
		}
		if err := w.msg.RequestContact(ctx, ev.ChatID, "Please share your phone number to authenticate."); err != nil {
			slog.Error("Failed to request contact", "error", err, "chatID", ev.ChatID)
		}
	case "logout":
		existed, err := w.sessions.Revoke(ev.ChatID)
		if err != nil {
			slog.Error("Failed to revoke session", "error", err, "chatID", ev.ChatID)
			return
		}
		if existed {
			w.reply(ctx, ev.ChatID, "Logged out. Use /start to authenticate again.")
		} else {
			w.reply(ctx, ev.ChatID, "You are not logged in.")
		}
	case "help":
		w.reply(ctx, ev.ChatID, helpText)
	case "status":
		w.handleStatusCommand(ctx, ev)
	case "notif":
		w.handleNotifCommand(ctx, ev)
	case "cancel":
		w.reply(ctx, ev.ChatID, "Dialogue cancelled.")
	default:
		w.reply(ctx, ev.ChatID, "Unknown command. Use /help.")
	}
}

func (w *Workflow) handleStatusCommand(ctx context.Context, ev messaging.Event) {
	sess, err := w.sessions.Lookup(ev.ChatID)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "chatID", ev.ChatID)
		return
	}
	if sess == nil {
		w.reply(ctx, ev.ChatID, "Not authenticated. Use /start.")
		return
	}
	st := w.Status()
	w.reply(ctx, ev.ChatID, fmt.Sprintf("Status: %s\nUptime: %.0fs\nActive reviewers: %d\nYour tier: %s",
		st.Status, st.UptimeSec, st.ActiveAdmins, sess.Tier))
}

func (w *Workflow) handleNotifCommand(ctx context.Context, ev messaging.Event) {
	sess, err := w.sessions.Lookup(ev.ChatID)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "chatID", ev.ChatID)
		return
	}
	if sess == nil {
		w.reply(ctx, ev.ChatID, "Not authenticated. Use /start.")
		return
	}
	if !sess.CanDecide() {
		w.reply(ctx, ev.ChatID, "Your account is view-only and cannot send notifications.")
		return
	}
	action := models.PendingAction{
		Kind:         models.PendingComposeNotification,
		Notification: &models.NotificationDraft{Step: models.NotifStepAwaitUserID},
	}
	if err := w.conversations.Begin(ev.ChatID, action); err != nil {
		slog.Error("Failed to begin composer", "error", err, "chatID", ev.ChatID)
		return
	}
	w.reply(ctx, ev.ChatID, "Send the target user ID, or \"-\" to notify all users.")
}

// handleCallback processes an inline control press. Every press is
// acknowledged exactly once so the control never stays stuck.
func (w *Workflow) handleCallback(ctx context.Context, ev messaging.Event) {
	ack := func(text string) {
		if err := w.msg.Acknowledge(ctx, ev.CallbackID, text); err != nil {
			slog.Error("Failed to acknowledge control press", "error", err, "chatID", ev.ChatID)
		}
	}
	sess, err := w.sessions.Lookup(ev.ChatID)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "chatID", ev.ChatID)
		ack("Something went wrong.")
		return
	}
	if sess == nil {
		ack(authPrompt)
		return
	}

	switch {
	case strings.HasPrefix(ev.Data, "reason:"):
		w.handleReasonCallback(ctx, ev, ack)
	case strings.HasPrefix(ev.Data, "page:"):
		w.handlePageCallback(ctx, ev, ack)
	case strings.HasPrefix(ev.Data, "decide:"):
		w.handleConfirmCallback(ctx, ev, sess, ack)
	case strings.HasPrefix(ev.Data, "notif:"):
		w.handleNotifCallback(ctx, ev, ack)
	default:
		w.handleDecisionPress(ctx, ev, sess, ack)
	}
}

// handleDecisionPress starts the approval dialogue for a status button.
func (w *Workflow) handleDecisionPress(ctx context.Context, ev messaging.Event, sess *models.AdminSession, ack func(string)) {
	flow, status, requestID, trackID, ok := parseDecisionToken(ev.Data)
	if !ok {
		slog.Warn("Malformed callback token", "chatID", ev.ChatID)
		ack("This control is no longer valid.")
		return
	}
	if !sess.CanDecide() {
		ack("Your account is view-only and cannot decide.")
		return
	}
	existing, err := w.arbiter.GetDecision(requestID)
	if err != nil {
		slog.Error("Failed to check existing decision", "error", err, "requestID", requestID)
		ack("Something went wrong.")
		return
	}
	if existing != nil {
		ack("Already decided.")
		w.stripControls(ctx, ev.Ref)
		w.reply(ctx, ev.ChatID, alreadyDecidedText(*existing))
		return
	}

	draft := models.DecisionDraft{RequestID: requestID, TrackID: trackID, Flow: flow, Status: status}
	if status.RequiresReason() {
		action := models.PendingAction{Kind: models.PendingCollectReasonCatalog, Decision: &draft}
		if err := w.conversations.Begin(ev.ChatID, action); err != nil {
			slog.Error("Failed to begin dialogue", "error", err, "chatID", ev.ChatID)
			ack("Something went wrong.")
			return
		}
		ack("")
		w.stripControls(ctx, ev.Ref)
		page := w.catalog.Page(0)
		if _, err := w.msg.Deliver(ctx, ev.ChatID, reasonPrompt, w.reasonControls(page)); err != nil {
			slog.Error("Failed to deliver reason catalog", "error", err, "chatID", ev.ChatID)
		}
		return
	}
	action := models.PendingAction{Kind: models.PendingCollectReference, Decision: &draft}
	if err := w.conversations.Begin(ev.ChatID, action); err != nil {
		slog.Error("Failed to begin dialogue", "error", err, "chatID", ev.ChatID)
		ack("Something went wrong.")
		return
	}
	ack("")
	w.stripControls(ctx, ev.Ref)
	w.reply(ctx, ev.ChatID, referencePrompt)
}

// stripControls removes the decision buttons from the alert in this
// reviewer's view so the same press cannot land twice. Best effort: a
// failed edit never blocks the dialogue.
func (w *Workflow) stripControls(ctx context.Context, ref messaging.MessageRef) {
	if err := w.msg.UpdateControls(ctx, ref, nil); err != nil {
		slog.Error("Failed to strip alert controls", "error", err, "chatID", ref.ChatID)
	}
}

// handleReasonCallback records a canned reason selection or switches to
// free-text capture.
func (w *Workflow) handleReasonCallback(ctx context.Context, ev messaging.Event, ack func(string)) {
	arg := strings.TrimPrefix(ev.Data, "reason:")
	if arg == "other" {
		_, err := w.conversations.Advance(ev.ChatID, func(a *models.PendingAction) error {
			if a.Kind != models.PendingCollectReasonCatalog {
				return models.ErrNoPendingAction
			}
			a.Kind = models.PendingCollectReasonCustom
			return nil
		})
		if err != nil {
			ack("This dialogue has expired.")
			return
		}
		ack("")
		w.reply(ctx, ev.ChatID, customPrompt)
		return
	}

	index, err := strconv.Atoi(arg)
	if err != nil {
		ack("This control is no longer valid.")
		return
	}
	reason, ok := w.catalog.Reason(index)
	if !ok {
		ack("This control is no longer valid.")
		return
	}
	a, err := w.conversations.Advance(ev.ChatID, func(a *models.PendingAction) error {
		if a.Kind != models.PendingCollectReasonCatalog {
			return models.ErrNoPendingAction
		}
		a.Kind = models.PendingConfirming
		a.Decision.Reason = reason
		return nil
	})
	if err != nil {
		ack("This dialogue has expired.")
		return
	}
	ack("")
	w.promptConfirm(ctx, ev.ChatID, *a.Decision)
}

// handlePageCallback flips the reason catalog to another page by editing
// the controls of the prompt message in place.
func (w *Workflow) handlePageCallback(ctx context.Context, ev messaging.Event, ack func(string)) {
	pageNum, err := strconv.Atoi(strings.TrimPrefix(ev.Data, "page:"))
	if err != nil {
		ack("This control is no longer valid.")
		return
	}
	_, err = w.conversations.Advance(ev.ChatID, func(a *models.PendingAction) error {
		if a.Kind != models.PendingCollectReasonCatalog {
			return models.ErrNoPendingAction
		}
		a.Decision.Page = pageNum
		return nil
	})
	if err != nil {
		ack("This dialogue has expired.")
		return
	}
	ack("")
	page := w.catalog.Page(pageNum)
	if err := w.msg.UpdateControls(ctx, ev.Ref, w.reasonControls(page)); err != nil {
		slog.Error("Failed to update catalog page", "error", err, "chatID", ev.ChatID)
	}
}

// handleConfirmCallback finalizes or abandons a fully collected decision.
func (w *Workflow) handleConfirmCallback(ctx context.Context, ev messaging.Event, sess *models.AdminSession, ack func(string)) {
	arg := strings.TrimPrefix(ev.Data, "decide:")
	a, err := w.conversations.Get(ev.ChatID)
	if err != nil {
		slog.Error("Failed to load dialogue", "error", err, "chatID", ev.ChatID)
		ack("Something went wrong.")
		return
	}
	if a == nil || a.Kind != models.PendingConfirming {
		ack("This dialogue has expired.")
		return
	}
	switch arg {
	case "confirm":
		ack("")
		w.finalize(ctx, ev.ChatID, sess, *a.Decision, a.Decision.ReferenceID, a.Decision.Reason)
	case "cancel":
		ack("")
		if err := w.conversations.End(ev.ChatID); err != nil {
			slog.Error("Failed to end dialogue", "error", err, "chatID", ev.ChatID)
		}
		w.reply(ctx, ev.ChatID, "Dialogue cancelled. The transaction remains pending.")
	default:
		ack("This control is no longer valid.")
	}
}

// handleNotifCallback processes the composer's URL yes/no choice.
func (w *Workflow) handleNotifCallback(ctx context.Context, ev messaging.Event, ack func(string)) {
	arg := strings.TrimPrefix(ev.Data, "notif:url:")
	switch arg {
	case "yes":
		_, err := w.conversations.Advance(ev.ChatID, func(a *models.PendingAction) error {
			if a.Kind != models.PendingComposeNotification || a.Notification.Step != models.NotifStepAwaitURLChoice {
				return models.ErrNoPendingAction
			}
			a.Notification.Step = models.NotifStepAwaitURL
			return nil
		})
		if err != nil {
			ack("This dialogue has expired.")
			return
		}
		ack("")
		w.reply(ctx, ev.ChatID, "Send the URL to attach.")
	case "no":
		a, err := w.conversations.Get(ev.ChatID)
		if err != nil || a == nil || a.Kind != models.PendingComposeNotification || a.Notification.Step != models.NotifStepAwaitURLChoice {
			ack("This dialogue has expired.")
			return
		}
		ack("")
		w.submitNotification(ctx, ev.ChatID, *a.Notification)
	default:
		ack("This control is no longer valid.")
	}
}

// handleText routes a free-text reply to the reviewer's pending dialogue.
// An expired or absent dialogue must never consume the message; the
// reviewer gets general guidance instead of silence.
func (w *Workflow) handleText(ctx context.Context, ev messaging.Event) {
	sess, err := w.sessions.Lookup(ev.ChatID)
	if err != nil {
		slog.Error("Session lookup failed", "error", err, "chatID", ev.ChatID)
		return
	}
	if sess == nil {
		w.reply(ctx, ev.ChatID, authPrompt)
		return
	}
	a, err := w.conversations.Get(ev.ChatID)
	if err != nil {
		slog.Error("Failed to load dialogue", "error", err, "chatID", ev.ChatID)
		return
	}
	if a == nil {
		w.reply(ctx, ev.ChatID, guidanceText)
		return
	}
	text := strings.TrimSpace(ev.Text)
	switch a.Kind {
	case models.PendingCollectReference:
		w.collectReference(ctx, ev.ChatID, text)
	case models.PendingCollectReasonCustom:
		w.collectCustomReason(ctx, ev.ChatID, text)
	case models.PendingCollectReasonCatalog:
		w.reply(ctx, ev.ChatID, "Please pick a reason with the buttons, or choose \"Other reason\" to type one.")
	case models.PendingConfirming:
		w.reply(ctx, ev.ChatID, "Please confirm or cancel with the buttons.")
	case models.PendingComposeNotification:
		w.composeStep(ctx, ev.ChatID, text, a.Notification)
	}
}

// collectReference validates a reference reply. Invalid input re-prompts
// and leaves the dialogue untouched.
func (w *Workflow) collectReference(ctx context.Context, chatID, text string) {
	if err := validateReference(text); err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			w.reply(ctx, chatID, verr.Hint)
			return
		}
		slog.Error("Reference validation failed", "error", err, "chatID", chatID)
		return
	}
	referenceID := text
	if text == models.NoReferenceSentinel {
		referenceID = ""
	}
	a, err := w.conversations.Advance(chatID, func(a *models.PendingAction) error {
		if a.Kind != models.PendingCollectReference {
			return models.ErrNoPendingAction
		}
		a.Kind = models.PendingConfirming
		a.Decision.ReferenceID = referenceID
		return nil
	})
	if err != nil {
		slog.Error("Failed to advance dialogue", "error", err, "chatID", chatID)
		return
	}
	w.promptConfirm(ctx, chatID, *a.Decision)
}

// collectCustomReason validates a free-text rejection reason.
func (w *Workflow) collectCustomReason(ctx context.Context, chatID, text string) {
	if text == "" {
		w.reply(ctx, chatID, "The reason cannot be empty. "+customPrompt)
		return
	}
	if models.CountWords(text) > models.MaxCustomReasonWords {
		w.reply(ctx, chatID, fmt.Sprintf("The reason is too long (at most %d words). Please shorten it.", models.MaxCustomReasonWords))
		return
	}
	a, err := w.conversations.Advance(chatID, func(a *models.PendingAction) error {
		if a.Kind != models.PendingCollectReasonCustom {
			return models.ErrNoPendingAction
		}
		a.Kind = models.PendingConfirming
		a.Decision.Reason = text
		return nil
	})
	if err != nil {
		slog.Error("Failed to advance dialogue", "error", err, "chatID", chatID)
		return
	}
	w.promptConfirm(ctx, chatID, *a.Decision)
}

func validateReference(text string) error {
	if text == models.NoReferenceSentinel {
		return nil
	}
	if len(text) > models.MaxReferenceIDLength {
		return &models.ValidationError{Hint: fmt.Sprintf("The reference number is too long (at most %d characters). %s", models.MaxReferenceIDLength, referencePrompt)}
	}
	if !util.IsDigits(text) {
		return &models.ValidationError{Hint: "The reference number must contain digits only. " + referencePrompt}
	}
	return nil
}

func (w *Workflow) promptConfirm(ctx context.Context, chatID string, draft models.DecisionDraft) {
	summary := fmt.Sprintf("Confirm decision for transaction %s:\nStatus: %s", draft.TrackID, draft.Status)
	if draft.ReferenceID != "" {
		summary += "\nReference: " + draft.ReferenceID
	}
	if draft.Reason != "" {
		summary += "\nReason: " + draft.Reason
	}
	controls := [][]messaging.Control{{
		{Label: "✅ Confirm", Data: "decide:confirm"},
		{Label: "🚫 Cancel", Data: "decide:cancel"},
	}}
	if _, err := w.msg.Deliver(ctx, chatID, summary, controls); err != nil {
		slog.Error("Failed to deliver confirmation prompt", "error", err, "chatID", chatID)
	}
}

// composeStep advances the notification composer one step.
func (w *Workflow) composeStep(ctx context.Context, chatID, text string, draft *models.NotificationDraft) {
	switch draft.Step {
	case models.NotifStepAwaitUserID:
		userID := text
		if text == models.NoReferenceSentinel {
			userID = ""
		}
		w.advanceComposer(ctx, chatID, func(n *models.NotificationDraft) {
			n.UserID = userID
			n.Step = models.NotifStepAwaitTitle
		}, "Send the notification title.")
	case models.NotifStepAwaitTitle:
		if text == "" {
			w.reply(ctx, chatID, "The title cannot be empty. Send the notification title.")
			return
		}
		w.advanceComposer(ctx, chatID, func(n *models.NotificationDraft) {
			n.Title = text
			n.Step = models.NotifStepAwaitBody
		}, "Send the notification body.")
	case models.NotifStepAwaitBody:
		if text == "" {
			w.reply(ctx, chatID, "The body cannot be empty. Send the notification body.")
			return
		}
		_, err := w.conversations.Advance(chatID, func(a *models.PendingAction) error {
			if a.Kind != models.PendingComposeNotification {
				return models.ErrNoPendingAction
			}
			a.Notification.Body = text
			a.Notification.Step = models.NotifStepAwaitURLChoice
			return nil
		})
		if err != nil {
			slog.Error("Failed to advance composer", "error", err, "chatID", chatID)
			return
		}
		controls := [][]messaging.Control{{
			{Label: "Attach URL", Data: "notif:url:yes"},
			{Label: "No URL", Data: "notif:url:no"},
		}}
		if _, err := w.msg.Deliver(ctx, chatID, "Attach a URL to the notification?", controls); err != nil {
			slog.Error("Failed to deliver URL choice", "error", err, "chatID", chatID)
		}
	case models.NotifStepAwaitURL:
		if text == "" {
			w.reply(ctx, chatID, "The URL cannot be empty. Send the URL to attach.")
			return
		}
		a, err := w.conversations.Advance(chatID, func(a *models.PendingAction) error {
			if a.Kind != models.PendingComposeNotification {
				return models.ErrNoPendingAction
			}
			a.Notification.URL = text
			return nil
		})
		if err != nil {
			slog.Error("Failed to advance composer", "error", err, "chatID", chatID)
			return
		}
		w.submitNotification(ctx, chatID, *a.Notification)
	case models.NotifStepAwaitURLChoice:
		w.reply(ctx, chatID, "Please choose with the buttons.")
	}
}

func (w *Workflow) advanceComposer(ctx context.Context, chatID string, mutate func(*models.NotificationDraft), nextPrompt string) {
	_, err := w.conversations.Advance(chatID, func(a *models.PendingAction) error {
		if a.Kind != models.PendingComposeNotification {
			return models.ErrNoPendingAction
		}
		mutate(a.Notification)
		return nil
	})
	if err != nil {
		slog.Error("Failed to advance composer", "error", err, "chatID", chatID)
		return
	}
	w.reply(ctx, chatID, nextPrompt)
}

// submitNotification ends the composer and pushes the notification.
func (w *Workflow) submitNotification(ctx context.Context, chatID string, draft models.NotificationDraft) {
	if err := w.conversations.End(chatID); err != nil {
		slog.Error("Failed to end composer", "error", err, "chatID", chatID)
	}
	if err := w.backend.SendNotification(ctx, draft); err != nil {
		slog.Error("Failed to send notification", "error", err, "chatID", chatID)
		w.reply(ctx, chatID, fmt.Sprintf("⚠️ Sending the notification failed: %v", err))
		return
	}
	target := draft.UserID
	if target == "" {
		target = "all users"
	}
	w.reply(ctx, chatID, "Notification sent to "+target+".")
}
