// Package models defines the core data structures for the Skenas support bot.
//
// It includes types for reviewer sessions, approval requests, decisions, and
// pending dialogue state, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// InvoiceStatus is the set of decision values a reviewer can choose for a
// pending invoice.
type InvoiceStatus string

const (
	// InvoiceStatusPaid marks the invoice as settled.
	InvoiceStatusPaid InvoiceStatus = "paid"
	// InvoiceStatusRejected marks the invoice as refused; requires a reason.
	InvoiceStatusRejected InvoiceStatus = "rejected"
	// InvoiceStatusPending keeps the invoice open for later review.
	InvoiceStatusPending InvoiceStatus = "pending"
	// InvoiceStatusValidating marks the invoice as under verification.
	InvoiceStatusValidating InvoiceStatus = "validating"
)

// IsValidInvoiceStatus checks if the given status is supported.
func IsValidInvoiceStatus(s InvoiceStatus) bool {
	switch s {
	case InvoiceStatusPaid, InvoiceStatusRejected, InvoiceStatusPending, InvoiceStatusValidating:
		return true
	default:
		return false
	}
}

// RequiresReason reports whether the status needs a rejection reason
// instead of a reference number.
func (s InvoiceStatus) RequiresReason() bool {
	return s == InvoiceStatusRejected
}

// FlowKind identifies which backend invoice flow a broadcast belongs to.
type FlowKind string

const (
	// FlowCrypto routes the final commit to the cryptocurrency invoice endpoint.
	FlowCrypto FlowKind = "crypto"
	// FlowCashOut routes the final commit to the wallet cash-out endpoint.
	FlowCashOut FlowKind = "cashout"
)

// IsValidFlowKind checks if the given flow kind is supported.
func IsValidFlowKind(f FlowKind) bool {
	return f == FlowCrypto || f == FlowCashOut
}

// SessionTier is the authorization level of a reviewer session.
type SessionTier string

const (
	// TierViewOnly receives broadcasts but may not decide.
	TierViewOnly SessionTier = "view-only"
	// TierCanDecide may resolve approval requests.
	TierCanDecide SessionTier = "can-decide"
)

// Validation constants for reviewer-supplied input.
const (
	// MaxAlertMessageLength is the maximum length for a broadcast alert body.
	MaxAlertMessageLength = 4096
	// MaxCustomReasonWords caps a free-text rejection reason.
	MaxCustomReasonWords = 30
	// MaxReferenceIDLength caps a reference number reply.
	MaxReferenceIDLength = 64
	// NoReferenceSentinel is the reply meaning "no reference number".
	NoReferenceSentinel = "-"
)

// Error variables for better error handling and testability.
var (
	ErrEmptyTrackID       = errors.New("trackId cannot be empty")
	ErrEmptyMessage       = errors.New("message cannot be empty")
	ErrMessageTooLong     = errors.New("message exceeds maximum length")
	ErrInvalidStatus      = errors.New("invalid invoice status")
	ErrInvalidFlow        = errors.New("invalid flow kind")
	ErrNotAdmin           = errors.New("phone number is not in the admin allow-list")
	ErrSessionNotFound    = errors.New("no active session for chat")
	ErrNotAuthorized      = errors.New("session tier does not permit deciding")
	ErrNoPendingAction    = errors.New("no pending action for reviewer")
	ErrPendingKindMissing = errors.New("pending action kind is required")
	ErrPendingPayload     = errors.New("pending action payload does not match kind")
	ErrRequestNotFound    = errors.New("approval request not found")
)

// AlreadyDecidedError reports that a request was resolved by an earlier
// commit. It carries the winning decision so callers can tell the losing
// reviewer who decided what and when.
type AlreadyDecidedError struct {
	Decision Decision
}

func (e *AlreadyDecidedError) Error() string {
	return fmt.Sprintf("request %s already decided as %s by %s",
		e.Decision.RequestID, e.Decision.Status, e.Decision.DecidedBy)
}

// ValidationError reports malformed reviewer input. Hint is the re-prompt
// text shown to the reviewer; the pending dialogue state is left untouched.
type ValidationError struct {
	Hint string
}

func (e *ValidationError) Error() string {
	return "invalid input: " + e.Hint
}

// AdminSession is one authenticated reviewer bound to a chat address.
type AdminSession struct {
	PhoneNumber  string      `json:"phone_number"`
	ChatID       string      `json:"chat_id"`
	Tier         SessionTier `json:"tier"`
	LastActivity time.Time   `json:"last_activity"`
	ExpiresAt    time.Time   `json:"expires_at"`
}

// Active reports whether the session has not yet passed its expiry.
func (s AdminSession) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// CanDecide reports whether the session may resolve approval requests.
func (s AdminSession) CanDecide() bool {
	return s.Tier == TierCanDecide
}

// ApprovalRequest is one broadcast instance of a pending transaction.
// RequestID is unique per broadcast; TrackID is the business transaction
// identifier and may in principle be rebroadcast under a new RequestID.
type ApprovalRequest struct {
	RequestID string    `json:"request_id"`
	TrackID   string    `json:"track_id"`
	Flow      FlowKind  `json:"flow"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate performs validation on an ApprovalRequest structure.
func (r *ApprovalRequest) Validate() error {
	if r.TrackID == "" {
		return ErrEmptyTrackID
	}
	if !IsValidFlowKind(r.Flow) {
		return ErrInvalidFlow
	}
	if r.Message == "" {
		return ErrEmptyMessage
	}
	if len(r.Message) > MaxAlertMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// Decision is the single write-once outcome recorded for a request.
type Decision struct {
	RequestID   string        `json:"request_id"`
	TrackID     string        `json:"track_id"`
	Flow        FlowKind      `json:"flow"`
	Status      InvoiceStatus `json:"status"`
	DecidedBy   string        `json:"decided_by"` // reviewer phone number
	DecidedAt   time.Time     `json:"decided_at"`
	ReferenceID string        `json:"reference_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// PendingKind identifies which dialogue a reviewer is in the middle of.
type PendingKind string

const (
	// PendingConfirming awaits final confirmation of the collected decision.
	PendingConfirming PendingKind = "confirming"
	// PendingCollectReference awaits a numeric reference number (or "-").
	PendingCollectReference PendingKind = "collecting_reference"
	// PendingCollectReasonCatalog awaits a canned-reason selection.
	PendingCollectReasonCatalog PendingKind = "collecting_reason_catalog"
	// PendingCollectReasonCustom awaits a free-text rejection reason.
	PendingCollectReasonCustom PendingKind = "collecting_reason_custom"
	// PendingComposeNotification is the multi-step push notification composer.
	PendingComposeNotification PendingKind = "composing_notification"
)

// IsDecisionKind reports whether the kind belongs to an approval dialogue.
func (k PendingKind) IsDecisionKind() bool {
	switch k {
	case PendingConfirming, PendingCollectReference, PendingCollectReasonCatalog, PendingCollectReasonCustom:
		return true
	default:
		return false
	}
}

// DecisionDraft accumulates the fields of an in-progress approval dialogue.
type DecisionDraft struct {
	RequestID   string        `json:"request_id"`
	TrackID     string        `json:"track_id"`
	Flow        FlowKind      `json:"flow"`
	Status      InvoiceStatus `json:"status"`
	Page        int           `json:"page,omitempty"` // catalog page currently shown
	ReferenceID string        `json:"reference_id,omitempty"`
	Reason      string        `json:"reason,omitempty"`
}

// NotifStep is the current step of the notification composer.
type NotifStep string

const (
	NotifStepAwaitUserID    NotifStep = "await_user_id"
	NotifStepAwaitTitle     NotifStep = "await_title"
	NotifStepAwaitBody      NotifStep = "await_body"
	NotifStepAwaitURLChoice NotifStep = "await_url_choice"
	NotifStepAwaitURL       NotifStep = "await_url"
)

// NotificationDraft accumulates a push notification being composed.
// An empty UserID means the notification is broadcast to all app users.
type NotificationDraft struct {
	Step   NotifStep `json:"step"`
	UserID string    `json:"user_id,omitempty"`
	Title  string    `json:"title,omitempty"`
	Body   string    `json:"body,omitempty"`
	URL    string    `json:"url,omitempty"`
}

// PendingAction is the per-reviewer conversation state: a tagged variant
// where Kind selects exactly one payload.
type PendingAction struct {
	Kind         PendingKind        `json:"kind"`
	Decision     *DecisionDraft     `json:"decision,omitempty"`
	Notification *NotificationDraft `json:"notification,omitempty"`
}

// Validate checks that the payload matches the declared kind.
func (a *PendingAction) Validate() error {
	if a.Kind == "" {
		return ErrPendingKindMissing
	}
	if a.Kind.IsDecisionKind() {
		if a.Decision == nil || a.Notification != nil {
			return ErrPendingPayload
		}
		return nil
	}
	if a.Kind == PendingComposeNotification {
		if a.Notification == nil || a.Decision != nil {
			return ErrPendingPayload
		}
		return nil
	}
	return ErrPendingPayload
}

// CountWords returns the number of whitespace-separated words in s.
// Used to cap free-text rejection reasons.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
