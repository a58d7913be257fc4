// Package conversation manages per-reviewer ephemeral dialogue state.
//
// Each reviewer has at most one pending action at a time; starting a new
// one replaces any prior one. Expiry is lazy: an expired entry reads as
// absent, so an approval dialogue left idle can never apply to an
// unrelated future message. No background sweep is required for
// correctness.
package conversation

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/store"
)

// Dialogue expiry windows. Decision dialogues are short; the notification
// composer has more steps and gets a little longer.
const (
	DefaultDecisionTTL = 10 * time.Minute
	DefaultComposeTTL  = 15 * time.Minute
)

// Opts holds configuration options for the conversation manager.
type Opts struct {
	DecisionTTL time.Duration
	ComposeTTL  time.Duration
}

// Option defines a configuration option for the conversation manager.
type Option func(*Opts)

// WithDecisionTTL overrides the expiry window for approval dialogues.
func WithDecisionTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.DecisionTTL = ttl }
}

// WithComposeTTL overrides the expiry window for the notification composer.
func WithComposeTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.ComposeTTL = ttl }
}

// Manager stores pending actions in a keyed store with lazy expiry.
type Manager struct {
	store       store.Store
	decisionTTL time.Duration
	composeTTL  time.Duration
	now         func() time.Time
}

// NewManager creates a conversation manager backed by the given store.
func NewManager(st store.Store, opts ...Option) *Manager {
	cfg := Opts{DecisionTTL: DefaultDecisionTTL, ComposeTTL: DefaultComposeTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Manager{
		store:       st,
		decisionTTL: cfg.DecisionTTL,
		composeTTL:  cfg.ComposeTTL,
		now:         time.Now,
	}
}

func (m *Manager) ttlFor(kind models.PendingKind) time.Duration {
	if kind == models.PendingComposeNotification {
		return m.composeTTL
	}
	return m.decisionTTL
}

// Begin stores a new pending action for the reviewer, unconditionally
// replacing any existing one. Starting a new action abandons a stale one;
// there is no resume semantics.
func (m *Manager) Begin(chatID string, a models.PendingAction) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid pending action: %w", err)
	}
	expiresAt := m.now().Add(m.ttlFor(a.Kind))
	if err := m.store.SavePendingAction(chatID, a, expiresAt); err != nil {
		return fmt.Errorf("failed to begin pending action: %w", err)
	}
	slog.Debug("Conversation begun", "chatID", chatID, "kind", a.Kind)
	return nil
}

// Get returns the reviewer's pending action, or nil if none exists or it
// has expired. Expired entries are removed on read.
func (m *Manager) Get(chatID string) (*models.PendingAction, error) {
	a, expiresAt, err := m.store.GetPendingAction(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending action: %w", err)
	}
	if a == nil {
		return nil, nil
	}
	if !m.now().Before(expiresAt) {
		slog.Debug("Conversation expired, discarding", "chatID", chatID, "kind", a.Kind)
		if delErr := m.store.DeletePendingAction(chatID); delErr != nil {
			slog.Error("Failed to discard expired pending action", "error", delErr, "chatID", chatID)
		}
		return nil, nil
	}
	return a, nil
}

// Advance applies a mutation to the reviewer's pending action and resets
// its expiry. Returns ErrNoPendingAction if no live action exists.
func (m *Manager) Advance(chatID string, mutate func(*models.PendingAction) error) (*models.PendingAction, error) {
	a, err := m.Get(chatID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, models.ErrNoPendingAction
	}
	if err := mutate(a); err != nil {
		return nil, err
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pending action after advance: %w", err)
	}
	expiresAt := m.now().Add(m.ttlFor(a.Kind))
	if err := m.store.SavePendingAction(chatID, *a, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to advance pending action: %w", err)
	}
	slog.Debug("Conversation advanced", "chatID", chatID, "kind", a.Kind)
	return a, nil
}

// End deletes the reviewer's pending action. Called on completion, cancel,
// and every abandonment path so a reviewer is never stuck mid-dialogue.
func (m *Manager) End(chatID string) error {
	if err := m.store.DeletePendingAction(chatID); err != nil {
		return fmt.Errorf("failed to end pending action: %w", err)
	}
	slog.Debug("Conversation ended", "chatID", chatID)
	return nil
}
