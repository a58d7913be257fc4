// Package backend is the client for the financial platform's private API.
//
// Every decision finalized by a reviewer is propagated here. The API wraps
// results in a DONE/FAILED envelope; a FAILED envelope on a 2xx response
// is still an error for the caller.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// DefaultRequestTimeout bounds every call to the platform API.
const DefaultRequestTimeout = 10 * time.Second

// Envelope statuses returned by the platform API.
const (
	EnvelopeDone   = "DONE"
	EnvelopeFailed = "FAILED"
)

// Client is the operations the workflow needs from the platform.
type Client interface {
	// UpdateCryptoInvoiceStatus propagates a decision on a crypto invoice.
	UpdateCryptoInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error

	// UpdateCashOutInvoiceStatus propagates a decision on a cash-out invoice.
	UpdateCashOutInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error

	// SendNotification pushes a composed notification to a platform user.
	SendNotification(ctx context.Context, n models.NotificationDraft) error

	// HealthCheck verifies the platform API is reachable.
	HealthCheck(ctx context.Context) error
}

// Opts holds configuration options for the API client.
type Opts struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	HTTP    *http.Client
}

// Option defines a configuration option for the API client.
type Option func(*Opts)

// WithBaseURL sets the platform API base URL.
func WithBaseURL(url string) Option {
	return func(o *Opts) { o.BaseURL = url }
}

// WithAPIKey sets the Bearer token for platform calls.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Opts) { o.HTTP = c }
}

// HTTPClient implements Client over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a platform API client.
func NewClient(opts ...Option) (*HTTPClient, error) {
	cfg := Opts{Timeout: DefaultRequestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("platform API base URL is required")
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPClient{baseURL: cfg.BaseURL, apiKey: cfg.APIKey, http: hc}, nil
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type invoiceStatusPayload struct {
	TrackID     string `json:"trackId"`
	Status      string `json:"status"`
	ReferenceID string `json:"referenceId,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body interface{}) error {
	var buf io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		buf = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, buf)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("platform returned status %d for %s %s", resp.StatusCode, method, path)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode platform response: %w", err)
	}
	if env.Status != EnvelopeDone {
		return fmt.Errorf("platform rejected %s %s: %s", method, path, env.Message)
	}
	return nil
}

// UpdateCryptoInvoiceStatus propagates a crypto invoice decision.
func (c *HTTPClient) UpdateCryptoInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error {
	slog.Debug("Updating crypto invoice status", "trackID", trackID, "status", status)
	payload := invoiceStatusPayload{TrackID: trackID, Status: string(status), ReferenceID: referenceID, Reason: reason}
	if err := c.do(ctx, http.MethodPatch, "/crypto/invoices/status", payload); err != nil {
		return fmt.Errorf("failed to update crypto invoice %s: %w", trackID, err)
	}
	return nil
}

// UpdateCashOutInvoiceStatus propagates a cash-out invoice decision.
func (c *HTTPClient) UpdateCashOutInvoiceStatus(ctx context.Context, trackID string, status models.InvoiceStatus, referenceID, reason string) error {
	slog.Debug("Updating cash-out invoice status", "trackID", trackID, "status", status)
	payload := invoiceStatusPayload{TrackID: trackID, Status: string(status), ReferenceID: referenceID, Reason: reason}
	if err := c.do(ctx, http.MethodPatch, "/cashout/invoices/status", payload); err != nil {
		return fmt.Errorf("failed to update cash-out invoice %s: %w", trackID, err)
	}
	return nil
}

type notificationPayload struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url,omitempty"`
}

// SendNotification pushes a composed notification to a platform user.
func (c *HTTPClient) SendNotification(ctx context.Context, n models.NotificationDraft) error {
	slog.Debug("Sending platform notification", "userID", n.UserID)
	payload := notificationPayload{UserID: n.UserID, Title: n.Title, Body: n.Body, URL: n.URL}
	if err := c.do(ctx, http.MethodPost, "/notifications", payload); err != nil {
		return fmt.Errorf("failed to send notification to %s: %w", n.UserID, err)
	}
	return nil
}

// HealthCheck verifies the platform API answers on its health endpoint.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("platform health check returned status %d", resp.StatusCode)
	}
	return nil
}

var _ Client = (*HTTPClient)(nil)
