package internal

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"cmdb-api/internal/apperr"
	"cmdb-api/internal/auth"
)

// codeInternal answers requests whose handler panicked.
const codeInternal = "INTERNAL_ERROR"

// statusFor maps the core's error kinds and auth failures onto HTTP
// statuses and error codes.
func statusFor(err error) (int, string) {
	var (
		tooLarge *http.MaxBytesError
		authErr  *auth.Error
	)
	switch {
	case errors.As(err, &authErr):
		return authErr.Status, authErr.Code
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "REPORT_TOO_LARGE"
	case apperr.IsValidation(err):
		return http.StatusBadRequest, "VALIDATION_FAILED"
	case apperr.IsNotFound(err):
		return http.StatusNotFound, "NOT_FOUND"
	case apperr.IsConflict(err):
		return http.StatusConflict, "CONFLICT"
	default:
		return http.StatusInternalServerError, "STORAGE_ERROR"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	setErrorCode(r.Context(), code)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		msg = "internal error"
	}
	auth.WriteError(w, msg, code, status)
}
