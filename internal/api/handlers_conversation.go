package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	respond "github.com/kennyhq/kenny-memory/internal/api/respond"
	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/services"
)

// ConversationHandler is a thin HTTP transport over ConversationService.
type ConversationHandler struct {
	svc *services.ConversationService
}

func NewConversationHandler(svc *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// CreateConversation POST /api/conversations
func (h *ConversationHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID   string                 `json:"sessionId"`
		UserID      string                 `json:"userId"`
		UserContact *string                `json:"userContact,omitempty"`
		Metadata    map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.svc.CreateConversation(r.Context(), &model.Conversation{
		SessionID:   req.SessionID,
		UserID:      req.UserID,
		UserContact: req.UserContact,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetConversation GET /api/conversations/{sessionId}
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.GetConversation(r.Context(), mux.Vars(r)["sessionId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// AppendTurn POST /api/conversations/{sessionId}/turns
func (h *ConversationHandler) AppendTurn(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	var req struct {
		TurnNumber    int                    `json:"turnNumber"`
		UserMessage   string                 `json:"userMessage"`
		UserEmbedding []float32              `json:"userEmbedding,omitempty"`
		Response      string                 `json:"response"`
		Intent        string                 `json:"intent"`
		Confidence    float64                `json:"confidence"`
		Agent         string                 `json:"agent,omitempty"`
		LatencyMs     int                    `json:"latencyMs"`
		Metadata      map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.svc.AppendTurn(r.Context(), sessionID, &model.Turn{
		TurnNumber:    req.TurnNumber,
		UserMessage:   req.UserMessage,
		UserEmbedding: req.UserEmbedding,
		Response:      req.Response,
		Intent:        req.Intent,
		Confidence:    req.Confidence,
		Agent:         req.Agent,
		LatencyMs:     req.LatencyMs,
		Metadata:      req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, out)
}

// GetRecentContext GET /api/conversations/{sessionId}/turns/recent?limit=N
func (h *ConversationHandler) GetRecentContext(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionId"]
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respond.WriteBadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}
	turns, err := h.svc.RecentContext(r.Context(), sessionID, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"turns": turns, "count": len(turns)})
}

// SearchConversations POST /api/conversations/search
func (h *ConversationHandler) SearchConversations(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID         string    `json:"userId"`
		Query          string    `json:"query,omitempty"`
		QueryEmbedding []float32 `json:"queryEmbedding,omitempty"`
		Threshold      float64   `json:"threshold,omitempty"`
		Limit          int       `json:"limit,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	matches, err := h.svc.SearchConversations(r.Context(), req.UserID, req.Query, req.QueryEmbedding, req.Threshold, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"matches": matches, "count": len(matches)})
}
