package httpadapter

import (
	"errors"
	"net/http"

	"github.com/kirillkom/docflow/internal/core/domain"
)

func mapErrorToHTTPStatus(err error) int {
	var maxBytesErr *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytesErr):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrForbidden):
		return http.StatusForbidden
	case domain.IsKind(err, domain.ErrDocumentNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError hides internal error text behind a generic message for 5xx responses.
func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "internal error"
	case http.StatusServiceUnavailable:
		message = "service temporarily unavailable"
	}
	writeJSON(w, status, map[string]string{"error": message})
}
