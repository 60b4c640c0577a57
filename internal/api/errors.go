package api

import (
	"errors"
	"net/http"

	respond "github.com/kennyhq/kenny-memory/internal/api/respond"
	"github.com/kennyhq/kenny-memory/internal/model"
)

// writeServiceError maps the model's error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrDimensionMismatch):
		respond.WriteBadRequest(w, err.Error())
	case errors.Is(err, model.ErrNotFound), errors.Is(err, model.ErrForeignKey):
		respond.WriteNotFound(w, err.Error())
	case errors.Is(err, model.ErrConflict):
		respond.WriteConflict(w, err.Error())
	default:
		respond.WriteInternalError(w, err.Error())
	}
}
