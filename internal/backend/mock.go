package backend

import (
	"context"
	"sync"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// StatusCall records one invoice status update on the mock.
type StatusCall struct {
	Flow        models.FlowKind
	TrackID     string
	Status      models.InvoiceStatus
	ReferenceID string
	Reason      string
}

// MockClient is an in-memory Client for tests.
type MockClient struct {
	mu            sync.Mutex
	StatusCalls   []StatusCall
	Notifications []models.NotificationDraft

	// Err, when set, is returned by every call.
	Err error
}

// NewMockClient creates a mock platform client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) UpdateCryptoInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.StatusCalls = append(m.StatusCalls, StatusCall{Flow: models.FlowCrypto, TrackID: trackID, Status: status, ReferenceID: referenceID, Reason: reason})
	return nil
}

func (m *MockClient) UpdateCashOutInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.StatusCalls = append(m.StatusCalls, StatusCall{Flow: models.FlowCashOut, TrackID: trackID, Status: status, ReferenceID: referenceID, Reason: reason})
	return nil
}

func (m *MockClient) SendNotification(ctx context.Context, n models.NotificationDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Notifications = append(m.Notifications, n)
	return nil
}

func (m *MockClient) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

var _ Client = (*MockClient)(nil)
