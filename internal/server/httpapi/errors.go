package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"github.com/mpetrovs/cloudvault/internal/common"
)

// ErrResponse is the machine-readable error payload: a stable kind plus a
// human-readable message.
type ErrResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, common.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, common.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, common.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// writeError maps a service error to its HTTP shape. Outside development the
// detail of internal failures is suppressed.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)

	msg := err.Error()
	if status == http.StatusInternalServerError && s.config.Env != "development" {
		msg = "internal error"
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
	}

	render.Status(r, status)
	render.JSON(w, r, ErrResponse{Kind: kind, Message: msg})
}
