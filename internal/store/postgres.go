// Package store provides storage backends for the Skenas support bot.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveSession(sess models.AdminSession) error {
	_, err := s.db.Exec(`
		INSERT INTO admin_sessions (chat_id, phone_number, tier, last_activity, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chat_id) DO UPDATE SET
			phone_number = EXCLUDED.phone_number,
			tier = EXCLUDED.tier,
			last_activity = EXCLUDED.last_activity,
			expires_at = EXCLUDED.expires_at`,
		sess.ChatID, sess.PhoneNumber, sess.Tier, sess.LastActivity, sess.ExpiresAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "chatID", sess.ChatID)
		return fmt.Errorf("failed to save session for %s: %w", sess.ChatID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "chatID", sess.ChatID, "tier", sess.Tier)
	return nil
}

func (s *PostgresStore) GetSession(chatID string) (*models.AdminSession, error) {
	var sess models.AdminSession
	err := s.db.QueryRow(`
		SELECT chat_id, phone_number, tier, last_activity, expires_at
		FROM admin_sessions WHERE chat_id = $1`, chatID).
		Scan(&sess.ChatID, &sess.PhoneNumber, &sess.Tier, &sess.LastActivity, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to query session for %s: %w", chatID, err)
	}
	return &sess, nil
}

func (s *PostgresStore) DeleteSession(chatID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM admin_sessions WHERE chat_id = $1`, chatID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "chatID", chatID)
		return false, fmt.Errorf("failed to delete session for %s: %w", chatID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result for %s: %w", chatID, err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListSessions() ([]models.AdminSession, error) {
	rows, err := s.db.Query(`SELECT chat_id, phone_number, tier, last_activity, expires_at FROM admin_sessions`)
	if err != nil {
		slog.Error("PostgresStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.AdminSession
	for rows.Next() {
		var sess models.AdminSession
		if err := rows.Scan(&sess.ChatID, &sess.PhoneNumber, &sess.Tier, &sess.LastActivity, &sess.ExpiresAt); err != nil {
			slog.Error("PostgresStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("PostgresStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

func (s *PostgresStore) SaveApprovalRequest(r models.ApprovalRequest) error {
	_, err := s.db.Exec(`
		INSERT INTO approval_requests (request_id, track_id, flow, message, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (request_id) DO NOTHING`,
		r.RequestID, r.TrackID, r.Flow, r.Message, r.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveApprovalRequest failed", "error", err, "requestID", r.RequestID)
		return fmt.Errorf("failed to save approval request %s: %w", r.RequestID, err)
	}
	slog.Debug("PostgresStore SaveApprovalRequest succeeded", "requestID", r.RequestID, "trackID", r.TrackID)
	return nil
}

func (s *PostgresStore) GetApprovalRequest(requestID string) (*models.ApprovalRequest, error) {
	var r models.ApprovalRequest
	err := s.db.QueryRow(`
		SELECT request_id, track_id, flow, message, created_at
		FROM approval_requests WHERE request_id = $1`, requestID).
		Scan(&r.RequestID, &r.TrackID, &r.Flow, &r.Message, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetApprovalRequest failed", "error", err, "requestID", requestID)
		return nil, fmt.Errorf("failed to query approval request %s: %w", requestID, err)
	}
	return &r, nil
}

// CreateDecision inserts the decision only if the request ID is unseen.
// ON CONFLICT DO NOTHING against the primary key is the atomic
// set-if-absent; RowsAffected distinguishes the winner from the losers.
func (s *PostgresStore) CreateDecision(d models.Decision) (bool, error) {
	res, err := s.db.Exec(`
		INSERT INTO decisions (request_id, track_id, flow, status, decided_by, decided_at, reference_id, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (request_id) DO NOTHING`,
		d.RequestID, d.TrackID, d.Flow, d.Status, d.DecidedBy, d.DecidedAt,
		nilIfEmpty(d.ReferenceID), nilIfEmpty(d.Reason))
	if err != nil {
		slog.Error("PostgresStore CreateDecision failed", "error", err, "requestID", d.RequestID)
		return false, fmt.Errorf("failed to create decision for %s: %w", d.RequestID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read decision insert result for %s: %w", d.RequestID, err)
	}
	created := affected > 0
	slog.Debug("PostgresStore CreateDecision", "requestID", d.RequestID, "created", created)
	return created, nil
}

func (s *PostgresStore) GetDecision(requestID string) (*models.Decision, error) {
	var d models.Decision
	var referenceID, reason sql.NullString
	err := s.db.QueryRow(`
		SELECT request_id, track_id, flow, status, decided_by, decided_at, reference_id, reason
		FROM decisions WHERE request_id = $1`, requestID).
		Scan(&d.RequestID, &d.TrackID, &d.Flow, &d.Status, &d.DecidedBy, &d.DecidedAt, &referenceID, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetDecision failed", "error", err, "requestID", requestID)
		return nil, fmt.Errorf("failed to query decision for %s: %w", requestID, err)
	}
	d.ReferenceID = referenceID.String
	d.Reason = reason.String
	return &d, nil
}

func (s *PostgresStore) SavePendingAction(chatID string, a models.PendingAction, expiresAt time.Time) error {
	payload, err := json.Marshal(a)
	if err != nil {
		slog.Error("PostgresStore SavePendingAction marshal failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to marshal pending action for %s: %w", chatID, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO pending_actions (chat_id, payload, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (chat_id) DO UPDATE SET
			payload = EXCLUDED.payload,
			expires_at = EXCLUDED.expires_at`,
		chatID, string(payload), expiresAt)
	if err != nil {
		slog.Error("PostgresStore SavePendingAction failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to save pending action for %s: %w", chatID, err)
	}
	slog.Debug("PostgresStore SavePendingAction succeeded", "chatID", chatID, "kind", a.Kind)
	return nil
}

func (s *PostgresStore) GetPendingAction(chatID string) (*models.PendingAction, time.Time, error) {
	var payload string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT payload, expires_at FROM pending_actions WHERE chat_id = $1`, chatID).
		Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetPendingAction failed", "error", err, "chatID", chatID)
		return nil, time.Time{}, fmt.Errorf("failed to query pending action for %s: %w", chatID, err)
	}
	var a models.PendingAction
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		slog.Error("PostgresStore GetPendingAction unmarshal failed, discarding", "error", err, "chatID", chatID)
		if delErr := s.DeletePendingAction(chatID); delErr != nil {
			slog.Error("PostgresStore failed to discard corrupt pending action", "error", delErr, "chatID", chatID)
		}
		return nil, time.Time{}, nil
	}
	return &a, expiresAt, nil
}

func (s *PostgresStore) DeletePendingAction(chatID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_actions WHERE chat_id = $1`, chatID)
	if err != nil {
		slog.Error("PostgresStore DeletePendingAction failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to delete pending action for %s: %w", chatID, err)
	}
	return nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
