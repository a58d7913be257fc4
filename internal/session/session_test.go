package session

import (
	"testing"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/store"
)

func newTestManager(t *testing.T, opts ...Option) (*Manager, store.Store) {
	t.Helper()
	st := store.NewInMemoryStore()
	m := NewManager(st, opts...)
	return m, st
}

func TestVerifyPhoneTiers(t *testing.T) {
	m, _ := newTestManager(t,
		WithAdminNumbers([]string{"0098 912 111 2233"}),
		WithDeciderNumbers([]string{"+98-912-444-5566"}),
	)

	tier, ok := m.VerifyPhone("+989121112233")
	if !ok || tier != models.TierViewOnly {
		t.Errorf("admin number: got (%s, %v), want (view-only, true)", tier, ok)
	}
	tier, ok = m.VerifyPhone("989124445566")
	if !ok || tier != models.TierCanDecide {
		t.Errorf("decider number: got (%s, %v), want (can-decide, true)", tier, ok)
	}
	if _, ok := m.VerifyPhone("+15550001111"); ok {
		t.Error("unknown number verified")
	}
}

func TestDeciderListTakesPrecedence(t *testing.T) {
	m, _ := newTestManager(t,
		WithAdminNumbers([]string{"+989121112233"}),
		WithDeciderNumbers([]string{"+989121112233"}),
	)
	tier, ok := m.VerifyPhone("+989121112233")
	if !ok || tier != models.TierCanDecide {
		t.Errorf("got (%s, %v), want (can-decide, true)", tier, ok)
	}
}

func TestAuthenticateDeniesUnknownNumber(t *testing.T) {
	m, _ := newTestManager(t, WithAdminNumbers([]string{"+989121112233"}))
	if _, err := m.Authenticate("+15550001111", "chat-1"); err != models.ErrNotAdmin {
		t.Errorf("expected ErrNotAdmin, got %v", err)
	}
	sess, err := m.Lookup("chat-1")
	if err != nil || sess != nil {
		t.Errorf("denied authentication must not create a session, got (%v, %v)", sess, err)
	}
}

func TestAuthenticateAndLookup(t *testing.T) {
	m, _ := newTestManager(t, WithDeciderNumbers([]string{"+989121112233"}))
	created, err := m.Authenticate("0098 912 111 2233", "chat-1")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if created.PhoneNumber != "+989121112233" {
		t.Errorf("phone not normalized: %s", created.PhoneNumber)
	}
	if !created.CanDecide() {
		t.Error("decider session should be can-decide")
	}

	sess, err := m.Lookup("chat-1")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if sess == nil || sess.ChatID != "chat-1" {
		t.Fatalf("lookup mismatch: %+v", sess)
	}
}

func TestLookupExpiresSession(t *testing.T) {
	m, st := newTestManager(t, WithAdminNumbers([]string{"+989121112233"}), WithTTL(time.Hour))
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }

	if _, err := m.Authenticate("+989121112233", "chat-1"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	// Just before expiry the session is alive and gets refreshed.
	m.now = func() time.Time { return base.Add(59 * time.Minute) }
	sess, err := m.Lookup("chat-1")
	if err != nil || sess == nil {
		t.Fatalf("expected live session, got (%v, %v)", sess, err)
	}

	// The refresh moved the expiry window forward.
	m.now = func() time.Time { return base.Add(118 * time.Minute) }
	sess, err = m.Lookup("chat-1")
	if err != nil || sess == nil {
		t.Fatalf("expected refreshed session, got (%v, %v)", sess, err)
	}

	// Past the refreshed window the session expires and is removed.
	m.now = func() time.Time { return base.Add(4 * time.Hour) }
	sess, err = m.Lookup("chat-1")
	if err != nil || sess != nil {
		t.Fatalf("expected expired session, got (%v, %v)", sess, err)
	}
	stored, _ := st.GetSession("chat-1")
	if stored != nil {
		t.Error("expired session not removed from store")
	}
}

func TestRevoke(t *testing.T) {
	m, _ := newTestManager(t, WithAdminNumbers([]string{"+989121112233"}))
	if _, err := m.Authenticate("+989121112233", "chat-1"); err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	existed, err := m.Revoke("chat-1")
	if err != nil || !existed {
		t.Fatalf("Revoke = (%v, %v), want (true, nil)", existed, err)
	}
	existed, err = m.Revoke("chat-1")
	if err != nil || existed {
		t.Fatalf("second Revoke = (%v, %v), want (false, nil)", existed, err)
	}
	sess, _ := m.Lookup("chat-1")
	if sess != nil {
		t.Error("revoked session still resolves")
	}
}

func TestListActiveFiltersExpired(t *testing.T) {
	m, _ := newTestManager(t,
		WithDeciderNumbers([]string{"+989121112233", "+989124445566"}),
		WithTTL(time.Hour),
	)
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return base }
	if _, err := m.Authenticate("+989121112233", "chat-1"); err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return base.Add(50 * time.Minute) }
	if _, err := m.Authenticate("+989124445566", "chat-2"); err != nil {
		t.Fatal(err)
	}

	// chat-1 has expired, chat-2 is still live.
	m.now = func() time.Time { return base.Add(90 * time.Minute) }
	active, err := m.ListActive()
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 || active[0].ChatID != "chat-2" {
		t.Errorf("expected only chat-2 active, got %+v", active)
	}
}
