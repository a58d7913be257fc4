package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Nikaat/skenas-support-bot/internal/models"
)

// Alert types accepted on /notify that carry decision controls.
const (
	NotifyTypeCrypto  = "cryptocurrency"
	NotifyTypeCashOut = "cashout"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "skenas-support-bot"}))
}

func (s *Server) handleBotStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.workflow.Status()))
}

func (s *Server) handleAdminPhoneNumbers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	active, err := s.sessions.ListActive()
	if err != nil {
		slog.Error("Failed to list active sessions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list reviewers"))
		return
	}
	numbers := make([]string, 0, len(active))
	for _, sess := range active {
		numbers = append(numbers, sess.PhoneNumber)
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{"phone_numbers": numbers}))
}

// handleNotify is the alert ingress. Typed crypto/cashout alerts with a
// trackId get decision controls; everything else is a plain broadcast.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	var req models.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON body"))
		return
	}
	if req.Message == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("message is required"))
		return
	}

	flow, actionable := notifyFlow(req)
	if actionable {
		trackID := req.Meta["trackId"]
		if trackID == "" {
			writeJSONResponse(w, http.StatusBadRequest, models.Error("meta.trackId is required for actionable alerts"))
			return
		}
		approval := models.ApprovalRequest{
			RequestID: uuid.NewString(),
			TrackID:   trackID,
			Flow:      flow,
			Message:   req.Message,
			CreatedAt: time.Now(),
		}
		recipients, err := s.workflow.Broadcast(r.Context(), approval)
		if err != nil {
			slog.Error("Failed to broadcast alert", "error", err, "trackID", trackID)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to broadcast alert"))
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Broadcast(len(recipients)))
		return
	}

	recipients, err := s.workflow.BroadcastPlain(r.Context(), req.Message)
	if err != nil {
		slog.Error("Failed to broadcast message", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to broadcast message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Broadcast(len(recipients)))
}

func notifyFlow(req models.NotifyRequest) (models.FlowKind, bool) {
	switch req.Type {
	case NotifyTypeCrypto:
		return models.FlowCrypto, true
	case NotifyTypeCashOut:
		return models.FlowCashOut, true
	default:
		return "", false
	}
}

func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
		return
	}
	recipients, err := s.workflow.BroadcastPlain(r.Context(), "🔔 Test notification from the support bot.")
	if err != nil {
		slog.Error("Failed to broadcast test notification", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to broadcast test notification"))
		return
	}
	writeJSONResponse(w, http.StatusOK,
		models.SuccessWithMessage("test notification broadcast", map[string]int{"recipients": len(recipients)}))
}
