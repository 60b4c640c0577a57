package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	respond "github.com/kennyhq/kenny-memory/internal/api/respond"
	"github.com/kennyhq/kenny-memory/internal/services"
)

// AdminHandler exposes operational endpoints such as the retention sweep.
type AdminHandler struct {
	svc        *services.RetentionService
	defaultAge time.Duration
}

func NewAdminHandler(svc *services.RetentionService, defaultAge time.Duration) *AdminHandler {
	return &AdminHandler{svc: svc, defaultAge: defaultAge}
}

// Sweep POST /api/admin/sweep
// An absent or empty body sweeps with the configured default age.
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AgeDays *int `json:"ageDays,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	age := h.defaultAge
	if req.AgeDays != nil {
		age = time.Duration(*req.AgeDays) * 24 * time.Hour
	}
	res, err := h.svc.Sweep(r.Context(), age)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, res)
}
