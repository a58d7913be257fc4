package models

import "time"

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusBroadcast indicates an API request resulted in a broadcast.
	APIStatusBroadcast APIStatus = "broadcast"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// APIResponseBuilder provides a fluent interface for building API responses.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder creates a new APIResponseBuilder instance.
func NewAPIResponseBuilder() *APIResponseBuilder {
	return &APIResponseBuilder{}
}

// WithStatus sets the status of the API response.
func (b *APIResponseBuilder) WithStatus(status APIStatus) *APIResponseBuilder {
	b.response.Status = string(status)
	return b
}

// WithMessage sets the message of the API response.
func (b *APIResponseBuilder) WithMessage(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// WithResult sets the result data of the API response.
func (b *APIResponseBuilder) WithResult(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build constructs and returns the final APIResponse.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithResult(result).
		Build()
}

// SuccessWithMessage creates a successful API response with a message and result data.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusOK).
		WithMessage(message).
		WithResult(result).
		Build()
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusError).
		WithMessage(message).
		Build()
}

// Broadcast creates a broadcast API response with recipient count.
func Broadcast(recipients int) APIResponse {
	return NewAPIResponseBuilder().
		WithStatus(APIStatusBroadcast).
		WithResult(map[string]int{"recipients": recipients}).
		Build()
}

// NotifyRequest is the payload of POST /notify from the main application.
// Typed crypto/cashout alerts carry a trackId in Meta and receive decision
// controls; anything else is broadcast as a plain alert.
type NotifyRequest struct {
	Message  string            `json:"message"`
	Priority string            `json:"priority,omitempty"` // low | normal | high
	Type     string            `json:"type,omitempty"`     // cryptocurrency | cashout | skenas_wallet | generic
	Meta     map[string]string `json:"meta,omitempty"`
}

// BotStatus is the payload of GET /bot-status.
type BotStatus struct {
	Status       string    `json:"status"`
	UptimeSec    float64   `json:"uptime_seconds"`
	ActiveAdmins int       `json:"active_admins"`
	Timestamp    time.Time `json:"timestamp"`
}
