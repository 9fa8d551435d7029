package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cmdb-api/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for the per-request record
	RequestIDKey contextKey = "requestID"

	requestIDHeader = "X-Request-ID"
)

// requestInfo follows one request through the middleware chain. code is the
// API error code the request was answered with, if any.
type requestInfo struct {
	id   string
	code string
}

func infoFromContext(ctx context.Context) *requestInfo {
	info, _ := ctx.Value(RequestIDKey).(*requestInfo)
	return info
}

// RequestIDFromContext returns the request ID, or "" outside a request.
func RequestIDFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.id
	}
	return ""
}

func setErrorCode(ctx context.Context, code string) {
	if info := infoFromContext(ctx); info != nil {
		info.code = code
	}
}

func errorCodeFromContext(ctx context.Context) string {
	if info := infoFromContext(ctx); info != nil {
		return info.code
	}
	return ""
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new one,
// and echoes it on the response.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), RequestIDKey, &requestInfo{id: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// accessLog logs one line per request at a level chosen by status code.
// Panics are logged and answered with a 500.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		log := s.logger.With(
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)

		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic recovered", zap.Any("error", rec), zap.Stack("stacktrace"))
				setErrorCode(r.Context(), codeInternal)
				auth.WriteError(rw, "internal error", codeInternal, http.StatusInternalServerError)
			}

			fields := []zap.Field{
				zap.Int("status", rw.code),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_addr", r.RemoteAddr),
			}
			if r.URL.RawQuery != "" {
				fields = append(fields, zap.String("query", r.URL.RawQuery))
			}
			if code := errorCodeFromContext(r.Context()); code != "" {
				fields = append(fields, zap.String("code", code))
			}
			switch {
			case rw.code >= 500:
				log.Error("request", fields...)
			case rw.code >= 400:
				log.Warn("request", fields...)
			default:
				log.Debug("request", fields...)
			}
		}()

		next.ServeHTTP(rw, r)
	})
}
