// Package session tracks which reviewers are authenticated and reachable.
//
// A session binds a reviewer's phone number to a chat address with an
// authorization tier and an explicit expiry, so broadcast fan-out can
// always enumerate exactly the active reviewers. No decision logic lives
// here; the package has no knowledge of approval requests.
package session

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/store"
	"github.com/Nikaat/skenas-support-bot/internal/util"
)

// DefaultSessionTTL is the inactivity window after which a session expires.
const DefaultSessionTTL = 24 * time.Hour

// Opts holds configuration options for the session manager.
type Opts struct {
	AdminNumbers   []string
	DeciderNumbers []string
	TTL            time.Duration
}

// Option defines a configuration option for the session manager.
type Option func(*Opts)

// WithAdminNumbers sets the view-only reviewer allow-list.
func WithAdminNumbers(numbers []string) Option {
	return func(o *Opts) { o.AdminNumbers = numbers }
}

// WithDeciderNumbers sets the can-decide reviewer allow-list.
func WithDeciderNumbers(numbers []string) Option {
	return func(o *Opts) { o.DeciderNumbers = numbers }
}

// WithTTL overrides the session inactivity window.
func WithTTL(ttl time.Duration) Option {
	return func(o *Opts) { o.TTL = ttl }
}

// Manager implements the reviewer session store over a keyed store backend.
type Manager struct {
	store    store.Store
	admins   map[string]bool
	deciders map[string]bool
	ttl      time.Duration
	now      func() time.Time
}

// NewManager creates a session manager backed by the given store.
// Both allow-lists are normalized before lookup; a number present in the
// decider list is always can-decide regardless of the admin list.
func NewManager(st store.Store, opts ...Option) *Manager {
	cfg := Opts{TTL: DefaultSessionTTL}
	for _, opt := range opts {
		opt(&cfg)
	}
	m := &Manager{
		store:    st,
		admins:   make(map[string]bool, len(cfg.AdminNumbers)),
		deciders: make(map[string]bool, len(cfg.DeciderNumbers)),
		ttl:      cfg.TTL,
		now:      time.Now,
	}
	for _, n := range cfg.AdminNumbers {
		m.admins[util.NormalizePhone(n)] = true
	}
	for _, n := range cfg.DeciderNumbers {
		m.deciders[util.NormalizePhone(n)] = true
	}
	slog.Debug("Session manager created", "admins", len(m.admins), "deciders", len(m.deciders), "ttl", m.ttl)
	return m
}

// VerifyPhone reports whether the phone number belongs to any reviewer
// allow-list and, if so, the tier it grants.
func (m *Manager) VerifyPhone(phone string) (models.SessionTier, bool) {
	p := util.NormalizePhone(phone)
	if m.deciders[p] {
		return models.TierCanDecide, true
	}
	if m.admins[p] {
		return models.TierViewOnly, true
	}
	return "", false
}

// Authenticate validates the phone number against the allow-lists and, on
// success, creates or refreshes the session for the chat address.
func (m *Manager) Authenticate(phone, chatID string) (*models.AdminSession, error) {
	tier, ok := m.VerifyPhone(phone)
	if !ok {
		slog.Warn("Session authenticate denied", "chatID", chatID)
		return nil, models.ErrNotAdmin
	}
	now := m.now()
	sess := models.AdminSession{
		PhoneNumber:  util.NormalizePhone(phone),
		ChatID:       chatID,
		Tier:         tier,
		LastActivity: now,
		ExpiresAt:    now.Add(m.ttl),
	}
	if err := m.store.SaveSession(sess); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}
	slog.Info("Session authenticated", "chatID", chatID, "tier", tier)
	return &sess, nil
}

// Lookup resolves the session for a chat address, returning nil if none
// exists or it has expired. A hit refreshes last-activity and the expiry.
func (m *Manager) Lookup(chatID string) (*models.AdminSession, error) {
	sess, err := m.store.GetSession(chatID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if sess == nil {
		return nil, nil
	}
	now := m.now()
	if !sess.Active(now) {
		slog.Debug("Session expired, removing", "chatID", chatID)
		if _, delErr := m.store.DeleteSession(chatID); delErr != nil {
			slog.Error("Failed to remove expired session", "error", delErr, "chatID", chatID)
		}
		return nil, nil
	}
	sess.LastActivity = now
	sess.ExpiresAt = now.Add(m.ttl)
	if err := m.store.SaveSession(*sess); err != nil {
		// Refresh failure is not fatal for the caller; the session is valid.
		slog.Error("Failed to refresh session activity", "error", err, "chatID", chatID)
	}
	return sess, nil
}

// Revoke removes the session for a chat address, reporting whether one existed.
func (m *Manager) Revoke(chatID string) (bool, error) {
	existed, err := m.store.DeleteSession(chatID)
	if err != nil {
		return false, fmt.Errorf("failed to revoke session: %w", err)
	}
	if existed {
		slog.Info("Session revoked", "chatID", chatID)
	}
	return existed, nil
}

// ListActive returns every non-expired session, for broadcast fan-out.
func (m *Manager) ListActive() ([]models.AdminSession, error) {
	sessions, err := m.store.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	now := m.now()
	active := sessions[:0]
	for _, sess := range sessions {
		if sess.Active(now) {
			active = append(active, sess)
		}
	}
	slog.Debug("Session ListActive", "total", len(sessions), "active", len(active))
	return active, nil
}
