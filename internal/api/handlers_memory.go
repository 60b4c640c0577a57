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

// MemoryHandler is a thin HTTP transport over MemoryService.
type MemoryHandler struct {
	svc *services.MemoryService
}

func NewMemoryHandler(svc *services.MemoryService) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

// CreateMemory POST /api/users/{userId}/memories
func (h *MemoryHandler) CreateMemory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	var req struct {
		Kind                 string                 `json:"kind"`
		Content              string                 `json:"content"`
		Embedding            []float32              `json:"embedding,omitempty"`
		Confidence           float64                `json:"confidence,omitempty"`
		SourceConversationID *string                `json:"sourceConversationId,omitempty"`
		SourceTurnID         *string                `json:"sourceTurnId,omitempty"`
		Metadata             map[string]interface{} `json:"metadata,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.svc.CreateMemory(r.Context(), &model.Memory{
		UserID:               userID,
		Kind:                 model.MemoryKind(req.Kind),
		Content:              req.Content,
		Embedding:            req.Embedding,
		Confidence:           req.Confidence,
		SourceConversationID: req.SourceConversationID,
		SourceTurnID:         req.SourceTurnID,
		Metadata:             req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	// Do not echo the embedding back; it is large and callers already have it.
	out.Embedding = nil
	respond.WriteJSON(w, http.StatusCreated, out)
}

// ListMemories GET /api/users/{userId}/memories?kind=&limit=
func (h *MemoryHandler) ListMemories(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	kind := r.URL.Query().Get("kind")
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respond.WriteBadRequest(w, "limit must be an integer")
			return
		}
		limit = n
	}
	mems, err := h.svc.GetMemories(r.Context(), userID, kind, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"memories": mems, "count": len(mems)})
}

// SearchMemories POST /api/memories/search
func (h *MemoryHandler) SearchMemories(w http.ResponseWriter, r *http.Request) {
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
	matches, err := h.svc.SearchMemories(r.Context(), req.UserID, req.Query, req.QueryEmbedding, req.Threshold, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"matches": matches, "count": len(matches)})
}
