// Package store provides storage backends for the Skenas support bot.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	// Ensure the directory exists
	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	// Run migrations to ensure tables exist
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveSession(sess models.AdminSession) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO admin_sessions (chat_id, phone_number, tier, last_activity, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		sess.ChatID, sess.PhoneNumber, sess.Tier, sess.LastActivity, sess.ExpiresAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "chatID", sess.ChatID)
		return fmt.Errorf("failed to save session for %s: %w", sess.ChatID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "chatID", sess.ChatID, "tier", sess.Tier)
	return nil
}

func (s *SQLiteStore) GetSession(chatID string) (*models.AdminSession, error) {
	var sess models.AdminSession
	err := s.db.QueryRow(`
		SELECT chat_id, phone_number, tier, last_activity, expires_at
		FROM admin_sessions WHERE chat_id = ?`, chatID).
		Scan(&sess.ChatID, &sess.PhoneNumber, &sess.Tier, &sess.LastActivity, &sess.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "chatID", chatID)
		return nil, fmt.Errorf("failed to query session for %s: %w", chatID, err)
	}
	return &sess, nil
}

func (s *SQLiteStore) DeleteSession(chatID string) (bool, error) {
	res, err := s.db.Exec(`DELETE FROM admin_sessions WHERE chat_id = ?`, chatID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "chatID", chatID)
		return false, fmt.Errorf("failed to delete session for %s: %w", chatID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result for %s: %w", chatID, err)
	}
	return affected > 0, nil
}

func (s *SQLiteStore) ListSessions() ([]models.AdminSession, error) {
	rows, err := s.db.Query(`SELECT chat_id, phone_number, tier, last_activity, expires_at FROM admin_sessions`)
	if err != nil {
		slog.Error("SQLiteStore ListSessions query failed", "error", err)
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.AdminSession
	for rows.Next() {
		var sess models.AdminSession
		if err := rows.Scan(&sess.ChatID, &sess.PhoneNumber, &sess.Tier, &sess.LastActivity, &sess.ExpiresAt); err != nil {
			slog.Error("SQLiteStore ListSessions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSessions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate session rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSessions succeeded", "count", len(sessions))
	return sessions, nil
}

func (s *SQLiteStore) SaveApprovalRequest(r models.ApprovalRequest) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO approval_requests (request_id, track_id, flow, message, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.RequestID, r.TrackID, r.Flow, r.Message, r.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveApprovalRequest failed", "error", err, "requestID", r.RequestID)
		return fmt.Errorf("failed to save approval request %s: %w", r.RequestID, err)
	}
	slog.Debug("SQLiteStore SaveApprovalRequest succeeded", "requestID", r.RequestID, "trackID", r.TrackID)
	return nil
}

func (s *SQLiteStore) GetApprovalRequest(requestID string) (*models.ApprovalRequest, error) {
	var r models.ApprovalRequest
	err := s.db.QueryRow(`
		SELECT request_id, track_id, flow, message, created_at
		FROM approval_requests WHERE request_id = ?`, requestID).
		Scan(&r.RequestID, &r.TrackID, &r.Flow, &r.Message, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetApprovalRequest failed", "error", err, "requestID", requestID)
		return nil, fmt.Errorf("failed to query approval request %s: %w", requestID, err)
	}
	return &r, nil
}

// CreateDecision inserts the decision only if the request ID is unseen.
// INSERT OR IGNORE against the primary key is the atomic set-if-absent;
// RowsAffected distinguishes the winner from the losers.
func (s *SQLiteStore) CreateDecision(d models.Decision) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO decisions (request_id, track_id, flow, status, decided_by, decided_at, reference_id, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		d.RequestID, d.TrackID, d.Flow, d.Status, d.DecidedBy, d.DecidedAt,
		nilIfEmpty(d.ReferenceID), nilIfEmpty(d.Reason))
	if err != nil {
		slog.Error("SQLiteStore CreateDecision failed", "error", err, "requestID", d.RequestID)
		return false, fmt.Errorf("failed to create decision for %s: %w", d.RequestID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read decision insert result for %s: %w", d.RequestID, err)
	}
	created := affected > 0
	slog.Debug("SQLiteStore CreateDecision", "requestID", d.RequestID, "created", created)
	return created, nil
}

func (s *SQLiteStore) GetDecision(requestID string) (*models.Decision, error) {
	var d models.Decision
	var referenceID, reason sql.NullString
	err := s.db.QueryRow(`
		SELECT request_id, track_id, flow, status, decided_by, decided_at, reference_id, reason
		FROM decisions WHERE request_id = ?`, requestID).
		Scan(&d.RequestID, &d.TrackID, &d.Flow, &d.Status, &d.DecidedBy, &d.DecidedAt, &referenceID, &reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetDecision failed", "error", err, "requestID", requestID)
		return nil, fmt.Errorf("failed to query decision for %s: %w", requestID, err)
	}
	d.ReferenceID = referenceID.String
	d.Reason = reason.String
	return &d, nil
}

func (s *SQLiteStore) SavePendingAction(chatID string, a models.PendingAction, expiresAt time.Time) error {
	payload, err := json.Marshal(a)
	if err != nil {
		slog.Error("SQLiteStore SavePendingAction marshal failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to marshal pending action for %s: %w", chatID, err)
	}
	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO pending_actions (chat_id, payload, expires_at)
		VALUES (?, ?, ?)`, chatID, string(payload), expiresAt)
	if err != nil {
		slog.Error("SQLiteStore SavePendingAction failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to save pending action for %s: %w", chatID, err)
	}
	slog.Debug("SQLiteStore SavePendingAction succeeded", "chatID", chatID, "kind", a.Kind)
	return nil
}

func (s *SQLiteStore) GetPendingAction(chatID string) (*models.PendingAction, time.Time, error) {
	var payload string
	var expiresAt time.Time
	err := s.db.QueryRow(`SELECT payload, expires_at FROM pending_actions WHERE chat_id = ?`, chatID).
		Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, time.Time{}, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetPendingAction failed", "error", err, "chatID", chatID)
		return nil, time.Time{}, fmt.Errorf("failed to query pending action for %s: %w", chatID, err)
	}
	var a models.PendingAction
	if err := json.Unmarshal([]byte(payload), &a); err != nil {
		// Corrupted state is discarded rather than surfaced, matching the
		// treat-as-absent failure semantics of pending dialogues.
		slog.Error("SQLiteStore GetPendingAction unmarshal failed, discarding", "error", err, "chatID", chatID)
		if delErr := s.DeletePendingAction(chatID); delErr != nil {
			slog.Error("SQLiteStore failed to discard corrupt pending action", "error", delErr, "chatID", chatID)
		}
		return nil, time.Time{}, nil
	}
	return &a, expiresAt, nil
}

func (s *SQLiteStore) DeletePendingAction(chatID string) error {
	_, err := s.db.Exec(`DELETE FROM pending_actions WHERE chat_id = ?`, chatID)
	if err != nil {
		slog.Error("SQLiteStore DeletePendingAction failed", "error", err, "chatID", chatID)
		return fmt.Errorf("failed to delete pending action for %s: %w", chatID, err)
	}
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
