package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// fallbackErrorResponse is pre-marshaled so encoding failures can still
// produce a valid JSON error body.
var fallbackErrorResponse = []byte(`{"status":"error","message":"internal server error"}`)

// writeJSONResponse writes a JSON response with the given status code.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	data, err := json.Marshal(response)
	if err != nil {
		slog.Error("Failed to marshal API response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		if _, writeErr := w.Write(fallbackErrorResponse); writeErr != nil {
			slog.Error("Failed to write fallback error response", "error", writeErr)
		}
		return
	}
	w.WriteHeader(statusCode)
	if _, err := w.Write(data); err != nil {
		slog.Error("Failed to write API response", "error", err)
	}
}
