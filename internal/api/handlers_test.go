package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Nikaat/skenas-support-bot/internal/arbiter"
	"github.com/Nikaat/skenas-support-bot/internal/backend"
	"github.com/Nikaat/skenas-support-bot/internal/conversation"
	"github.com/Nikaat/skenas-support-bot/internal/messaging"
	"github.com/Nikaat/skenas-support-bot/internal/models"
	"github.com/Nikaat/skenas-support-bot/internal/session"
	"github.com/Nikaat/skenas-support-bot/internal/store"
	"github.com/Nikaat/skenas-support-bot/internal/workflow"
)

const testAPIKey = "ingress-secret"

type apiFixture struct {
	server   *Server
	msg      *messaging.MockService
	sessions *session.Manager
	st       *store.InMemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	st := store.NewInMemoryStore()
	sessions := session.NewManager(st,
		session.WithDeciderNumbers([]string{"+989120000002"}),
	)
	conversations := conversation.NewManager(st)
	msg := messaging.NewMockService()
	wf := workflow.New(st, sessions, conversations, arbiter.New(st), backend.NewMockClient(), msg)
	server := NewServer(wf, sessions, WithAPIKey(testAPIKey))
	return &apiFixture{server: server, msg: msg, sessions: sessions, st: st}
}

func (f *apiFixture) request(t *testing.T, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+testAPIKey)
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestHealthNeedsNoAuth(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if resp := decodeResponse(t, rec); resp.Status != string(models.APIStatusOK) {
		t.Errorf("response status = %q", resp.Status)
	}
}

func TestAuthRequiredOnProtectedEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	for _, path := range []string{"/bot-status", "/admin-phone-numbers"} {
		if rec := f.request(t, http.MethodGet, path, "", false); rec.Code != http.StatusUnauthorized {
			t.Errorf("GET %s without auth = %d, want 401", path, rec.Code)
		}
	}
	if rec := f.request(t, http.MethodPost, "/notify", `{"message":"x"}`, false); rec.Code != http.StatusUnauthorized {
		t.Errorf("POST /notify without auth = %d, want 401", rec.Code)
	}
}

func TestBotStatus(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.request(t, http.MethodGet, "/bot-status", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok || result["status"] != "running" {
		t.Errorf("unexpected result: %+v", resp.Result)
	}
}

func TestAdminPhoneNumbers(t *testing.T) {
	f := newAPIFixture(t)
	if _, err := f.sessions.Authenticate("+989120000002", "chat-1"); err != nil {
		t.Fatal(err)
	}
	rec := f.request(t, http.MethodGet, "/admin-phone-numbers", "", true)
	resp := decodeResponse(t, rec)
	if !strings.Contains(rec.Body.String(), "+989120000002") {
		t.Errorf("active reviewer missing from response: %+v", resp)
	}
}

func TestNotifyGenericBroadcast(t *testing.T) {
	f := newAPIFixture(t)
	if _, err := f.sessions.Authenticate("+989120000002", "chat-1"); err != nil {
		t.Fatal(err)
	}
	rec := f.request(t, http.MethodPost, "/notify", `{"message":"System maintenance at 02:00"}`, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusBroadcast) {
		t.Errorf("response status = %q, want broadcast", resp.Status)
	}
	sent := f.msg.SentTo("chat-1")
	if len(sent) != 1 || len(sent[0].Controls) != 0 {
		t.Errorf("generic alert should have no controls: %+v", sent)
	}
}

func TestNotifyActionableAlert(t *testing.T) {
	f := newAPIFixture(t)
	if _, err := f.sessions.Authenticate("+989120000002", "chat-1"); err != nil {
		t.Fatal(err)
	}
	body := `{"message":"Crypto purchase needs review","type":"cryptocurrency","meta":{"trackId":"TX77"}}`
	rec := f.request(t, http.MethodPost, "/notify", body, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	sent := f.msg.SentTo("chat-1")
	if len(sent) != 1 || len(sent[0].Controls) == 0 {
		t.Fatalf("actionable alert missing controls: %+v", sent)
	}
	if !strings.Contains(sent[0].Controls[0][0].Data, ":TX77") {
		t.Errorf("callback token missing track ID: %q", sent[0].Controls[0][0].Data)
	}
}

func TestNotifyValidation(t *testing.T) {
	f := newAPIFixture(t)
	cases := []struct {
		name string
		body string
	}{
		{"bad JSON", `{"message":`},
		{"missing message", `{"type":"cashout"}`},
		{"actionable without trackId", `{"message":"x","type":"cashout"}`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if rec := f.request(t, http.MethodPost, "/notify", c.body, true); rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newAPIFixture(t)
	if rec := f.request(t, http.MethodPost, "/health", "", false); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health = %d, want 405", rec.Code)
	}
	if rec := f.request(t, http.MethodGet, "/notify", "", true); rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET /notify = %d, want 405", rec.Code)
	}
}

func TestTestNotification(t *testing.T) {
	f := newAPIFixture(t)
	if _, err := f.sessions.Authenticate("+989120000002", "chat-1"); err != nil {
		t.Fatal(err)
	}
	rec := f.request(t, http.MethodPost, "/test-notification", "", true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Status != string(models.APIStatusOK) || resp.Message == "" {
		t.Errorf("expected ok envelope with message, got %+v", resp)
	}
	if len(f.msg.SentTo("chat-1")) != 1 {
		t.Error("test notification not delivered")
	}
}
