package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/noor1991nassar-hub/N-PRO/internal/core/domain"
)

const duplicateOfHeader = "X-Duplicate-Of"

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrConflict):
		return http.StatusConflict
	case domain.IsKind(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, operation string, err error) {
	status := mapErrorToHTTPStatus(err)
	body := map[string]string{"error": operation + " failed: " + err.Error()}

	var dup *domain.DuplicateFileError
	if errors.As(err, &dup) {
		w.Header().Set(duplicateOfHeader, dup.ExistingRef)
		body["existing_ref"] = dup.ExistingRef
	}

	if status >= http.StatusInternalServerError {
		slog.Error("http_handler_failed",
			"request_id", requestIDFromContext(r.Context()),
			"operation", operation,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, body)
}
