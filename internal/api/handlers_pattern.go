package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	respond "github.com/kennyhq/kenny-memory/internal/api/respond"
	"github.com/kennyhq/kenny-memory/internal/model"
	"github.com/kennyhq/kenny-memory/internal/services"
)

// PatternHandler is a thin HTTP transport over PatternService.
type PatternHandler struct {
	svc *services.PatternService
}

func NewPatternHandler(svc *services.PatternService) *PatternHandler {
	return &PatternHandler{svc: svc}
}

// UpsertPattern PUT /api/users/{userId}/patterns/{patternType}
func (h *PatternHandler) UpsertPattern(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	var req struct {
		Data       map[string]interface{} `json:"data"`
		Confidence float64                `json:"confidence"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	out, err := h.svc.UpsertPattern(r.Context(), &model.Pattern{
		UserID:      vars["userId"],
		PatternType: vars["patternType"],
		Data:        req.Data,
		Confidence:  req.Confidence,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, out)
}

// ListPatterns GET /api/users/{userId}/patterns
func (h *PatternHandler) ListPatterns(w http.ResponseWriter, r *http.Request) {
	pats, err := h.svc.GetPatterns(r.Context(), mux.Vars(r)["userId"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"patterns": pats, "count": len(pats)})
}
