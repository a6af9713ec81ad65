package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tripcore/internal/domain"
	"tripcore/internal/service"
	"tripcore/internal/tenant"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
func respondError(c *gin.Context, err error) {
	code, kind := mapErrorToHTTPStatus(err)
	if code >= http.StatusInternalServerError {
		_ = c.Error(err)
		c.JSON(code, ErrorResponse{Error: "internal error", Kind: kind})
		return
	}
	c.JSON(code, ErrorResponse{Error: err.Error(), Kind: kind})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapErrorToHTTPStatus maps error kinds to HTTP status codes.
func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, tenant.ErrNotBound), errors.Is(err, tenant.ErrInvalidID):
		return http.StatusBadRequest, "tenant"

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation"

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"

	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "conflict"

	case errors.Is(err, domain.ErrIneligible):
		return http.StatusUnprocessableEntity, "ineligible"

	case errors.Is(err, service.ErrLocationIndexDisabled):
		return http.StatusServiceUnavailable, "unavailable"

	// Default to internal server error
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
