// Package store provides storage backends for the Skenas support bot.
//
// It includes an in-memory store for tests and development, and persistent
// SQLite and PostgreSQL backends selected by DSN detection. The one atomic
// primitive the rest of the system relies on is CreateDecision: an
// insert-if-absent that reports whether the caller's record won, so that
// concurrent reviewers racing on the same request produce exactly one
// stored decision.
package store

import (
	"strings"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL connection strings and
// "sqlite3" for anything else (assumed to be a file path).
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite3"
}

// Store is the keyed persistence interface shared by all backends.
type Store interface {
	// SaveSession creates or replaces the session for its chat ID.
	SaveSession(s models.AdminSession) error
	// GetSession retrieves a session by chat ID; nil if absent.
	GetSession(chatID string) (*models.AdminSession, error)
	// DeleteSession removes a session, reporting whether one existed.
	DeleteSession(chatID string) (bool, error)
	// ListSessions returns every stored session, expired or not.
	ListSessions() ([]models.AdminSession, error)

	// SaveApprovalRequest records a broadcast instance.
	SaveApprovalRequest(r models.ApprovalRequest) error
	// GetApprovalRequest retrieves a broadcast by request ID; nil if absent.
	GetApprovalRequest(requestID string) (*models.ApprovalRequest, error)

	// CreateDecision atomically inserts the decision if no decision exists
	// for its request ID. Returns true if this call created the record.
	// A plain read-then-write is not an acceptable implementation.
	CreateDecision(d models.Decision) (bool, error)
	// GetDecision retrieves the decision for a request ID; nil if absent.
	GetDecision(requestID string) (*models.Decision, error)

	// SavePendingAction creates or replaces the pending dialogue state for
	// a chat ID with the given expiry.
	SavePendingAction(chatID string, a models.PendingAction, expiresAt time.Time) error
	// GetPendingAction retrieves pending state and its expiry; nil if absent.
	// Expiry is enforced by the caller, not the store.
	GetPendingAction(chatID string) (*models.PendingAction, time.Time, error)
	// DeletePendingAction removes pending state for a chat ID.
	DeletePendingAction(chatID string) error

	// Close releases underlying resources.
	Close() error
}
