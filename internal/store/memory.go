package store

import (
	"sync"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// InMemoryStore is a mutex-guarded in-process store used by tests and
// single-instance development runs.
type InMemoryStore struct {
	mu        sync.RWMutex
	sessions  map[string]models.AdminSession
	requests  map[string]models.ApprovalRequest
	decisions map[string]models.Decision
	pending   map[string]pendingEntry
}

type pendingEntry struct {
	action    models.PendingAction
	expiresAt time.Time
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions:  make(map[string]models.AdminSession),
		requests:  make(map[string]models.ApprovalRequest),
		decisions: make(map[string]models.Decision),
		pending:   make(map[string]pendingEntry),
	}
}

func (s *InMemoryStore) SaveSession(sess models.AdminSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ChatID] = sess
	return nil
}

func (s *InMemoryStore) GetSession(chatID string) (*models.AdminSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *InMemoryStore) DeleteSession(chatID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[chatID]
	delete(s.sessions, chatID)
	return ok, nil
}

func (s *InMemoryStore) ListSessions() ([]models.AdminSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sessions := make([]models.AdminSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *InMemoryStore) SaveApprovalRequest(r models.ApprovalRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests[r.RequestID] = r
	return nil
}

func (s *InMemoryStore) GetApprovalRequest(requestID string) (*models.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// CreateDecision inserts d only if no decision exists for its request ID.
// The existence check and insert happen under one lock, making the
// operation atomic with respect to racing callers.
func (s *InMemoryStore) CreateDecision(d models.Decision) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[d.RequestID]; exists {
		return false, nil
	}
	s.decisions[d.RequestID] = d
	return true, nil
}

func (s *InMemoryStore) GetDecision(requestID string) (*models.Decision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.decisions[requestID]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *InMemoryStore) SavePendingAction(chatID string, a models.PendingAction, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chatID] = pendingEntry{action: a, expiresAt: expiresAt}
	return nil
}

func (s *InMemoryStore) GetPendingAction(chatID string) (*models.PendingAction, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.pending[chatID]
	if !ok {
		return nil, time.Time{}, nil
	}
	a := e.action
	return &a, e.expiresAt, nil
}

func (s *InMemoryStore) DeletePendingAction(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, chatID)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *InMemoryStore) Close() error { return nil }
