package api

import (
	"encoding/json"
	"net/http"

	respond "github.com/kennyhq/kenny-memory/internal/api/respond"
	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/services"
)

// AnalyticsHandler is a thin HTTP transport over AnalyticsService.
type AnalyticsHandler struct {
	svc *services.AnalyticsService
}

func NewAnalyticsHandler(svc *services.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// RecordEvent POST /api/analytics/events
func (h *AnalyticsHandler) RecordEvent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string                 `json:"conversationId"`
		TurnID         *string                `json:"turnId,omitempty"`
		Name           string                 `json:"name"`
		Value          float64                `json:"value"`
		Data           map[string]interface{} `json:"data,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.svc.RecordEvent(r.Context(), &model.AnalyticsEvent{
		ConversationID: req.ConversationID,
		TurnID:         req.TurnID,
		Name:           req.Name,
		Value:          req.Value,
		Data:           req.Data,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}
