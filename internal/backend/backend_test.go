package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL), WithAPIKey("secret"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

func TestUpdateCryptoInvoiceStatus(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody invoiceStatusPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		json.NewEncoder(w).Encode(envelope{Status: EnvelopeDone})
	})

	err := c.UpdateCryptoInvoiceStatus(context.Background(), "TX1", models.InvoiceStatusPaid, "777", "")
	if err != nil {
		t.Fatalf("UpdateCryptoInvoiceStatus failed: %v", err)
	}
	if gotPath != "PATCH /crypto/invoices/status" {
		t.Errorf("unexpected request: %s", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("missing bearer auth: %q", gotAuth)
	}
	if gotBody.TrackID != "TX1" || gotBody.Status != "paid" || gotBody.ReferenceID != "777" {
		t.Errorf("payload mismatch: %+v", gotBody)
	}
}

func TestUpdateCashOutInvoiceStatus(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewEncoder(w).Encode(envelope{Status: EnvelopeDone})
	})
	err := c.UpdateCashOutInvoiceStatus(context.Background(), "TX2", models.InvoiceStatusRejected, "", "fraud")
	if err != nil {
		t.Fatalf("UpdateCashOutInvoiceStatus failed: %v", err)
	}
	if gotPath != "PATCH /cashout/invoices/status" {
		t.Errorf("unexpected request: %s", gotPath)
	}
}

func TestFailedEnvelopeIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(envelope{Status: EnvelopeFailed, Message: "invoice not found"})
	})
	err := c.UpdateCryptoInvoiceStatus(context.Background(), "TX1", models.InvoiceStatusPaid, "", "")
	if err == nil {
		t.Fatal("expected error for FAILED envelope")
	}
	if !strings.Contains(err.Error(), "invoice not found") {
		t.Errorf("error does not carry platform message: %v", err)
	}
}

func TestNon2xxIsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected health check error")
	}
	if err := c.UpdateCryptoInvoiceStatus(context.Background(), "TX1", models.InvoiceStatusPaid, "", ""); err == nil {
		t.Error("expected status update error")
	}
}

func TestSendNotification(t *testing.T) {
	var gotPath string
	var gotBody notificationPayload
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(envelope{Status: EnvelopeDone})
	})
	n := models.NotificationDraft{UserID: "user-1", Title: "Hi", Body: "Body", URL: "https://x"}
	if err := c.SendNotification(context.Background(), n); err != nil {
		t.Fatalf("SendNotification failed: %v", err)
	}
	if gotPath != "POST /notifications" {
		t.Errorf("unexpected request: %s", gotPath)
	}
	if gotBody.UserID != "user-1" || gotBody.URL != "https://x" {
		t.Errorf("payload mismatch: %+v", gotBody)
	}
}

func TestRequestTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(envelope{Status: EnvelopeDone})
	}))
	t.Cleanup(srv.Close)
	c, err := NewClient(WithBaseURL(srv.URL), WithTimeout(50*time.Millisecond))
	if err != nil {
		t.Fatal(err)
	}
	if err := c.HealthCheck(context.Background()); err == nil {
		t.Error("expected timeout error")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(); err == nil {
		t.Error("expected error for missing base URL")
	}
}
