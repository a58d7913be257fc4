package messaging

import (
	"context"
	"sync"
)

// DeliveredMessage records one Deliver call on the mock.
type DeliveredMessage struct {
	ChatID   string
	Text     string
	Controls [][]Control
}

// ControlUpdate records one UpdateControls call on the mock.
type ControlUpdate struct {
	Ref      MessageRef
	Controls [][]Control
}

// MockService is an in-memory Service for tests. Inbound events are
// injected with Inject; outbound traffic is recorded for assertions.
type MockService struct {
	mu       sync.Mutex
	events   chan Event
	nextID   int
	Sent     []DeliveredMessage
	Updates  []ControlUpdate
	Acks     []string
	Contacts []string

	// DeliverErr, when set, is returned by every Deliver call.
	DeliverErr error
}

// NewMockService creates a mock messaging service.
func NewMockService() *MockService {
	return &MockService{events: make(chan Event, DefaultChannelBufferSize)}
}

func (m *MockService) Deliver(ctx context.Context, chatID, text string, controls [][]Control) (MessageRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeliverErr != nil {
		return MessageRef{}, m.DeliverErr
	}
	m.nextID++
	m.Sent = append(m.Sent, DeliveredMessage{ChatID: chatID, Text: text, Controls: controls})
	return MessageRef{ChatID: chatID, MessageID: m.nextID}, nil
}

func (m *MockService) UpdateControls(ctx context.Context, ref MessageRef, controls [][]Control) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, ControlUpdate{Ref: ref, Controls: controls})
	return nil
}

func (m *MockService) Acknowledge(ctx context.Context, callbackID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Acks = append(m.Acks, callbackID)
	return nil
}

func (m *MockService) RequestContact(ctx context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Contacts = append(m.Contacts, chatID)
	return nil
}

func (m *MockService) Events() <-chan Event {
	return m.events
}

// Inject pushes an inbound event as if it arrived from the transport.
func (m *MockService) Inject(ev Event) {
	m.events <- ev
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) Stop() error { return nil }

// SentTo returns the messages delivered to one chat, in order.
func (m *MockService) SentTo(chatID string) []DeliveredMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DeliveredMessage
	for _, s := range m.Sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

var _ Service = (*MockService)(nil)
