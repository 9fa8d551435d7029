package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

// ClaimsKey is the context key for the authenticated token's claims.
const ClaimsKey contextKey = "claims"

// maxTokenBytes bounds the bearer token accepted before parsing.
const maxTokenBytes = 8 << 10

// Error is an authentication or authorization failure, carrying the status
// and code the API answers with.
type Error struct {
	Status int
	Code   string
	Msg    string
}

func (e *Error) Error() string { return e.Msg }

var (
	ErrMissingToken   = &Error{http.StatusUnauthorized, "MISSING_AUTH_HEADER", "authorization header required"}
	ErrBadScheme      = &Error{http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "expected authorization: Bearer <token>"}
	ErrTokenMalformed = &Error{http.StatusUnauthorized, "MALFORMED_TOKEN", "token is malformed"}
	ErrTokenExpired   = &Error{http.StatusUnauthorized, "TOKEN_EXPIRED", "token has expired"}
	ErrBadSignature   = &Error{http.StatusUnauthorized, "INVALID_SIGNATURE", "token signature cannot be verified"}
	ErrTokenRejected  = &Error{http.StatusUnauthorized, "INVALID_TOKEN", "token is not valid for this API"}
	ErrNoIdentity     = &Error{http.StatusUnauthorized, "INVALID_SUBJECT", "token carries no subject or roles"}
	ErrForbidden      = &Error{http.StatusForbidden, "INSUFFICIENT_PERMISSIONS", "insufficient permissions"}
)

// ErrorResponse is the JSON body of every error the API returns.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// WriteError sends a standardized error response
func WriteError(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ErrorFunc answers a request that failed authentication or authorization.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

func writeAuthError(w http.ResponseWriter, _ *http.Request, err error) {
	var ae *Error
	if !errors.As(err, &ae) {
		ae = ErrTokenRejected
	}
	WriteError(w, ae.Msg, ae.Code, ae.Status)
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, ClaimsKey, claims)
}

// ClaimsFromContext extracts the JWT claims from the request context
func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

// ActorFromContext returns the authenticated subject recorded as the actor
// of audited operations, or 0 when the request is anonymous.
func ActorFromContext(ctx context.Context) int64 {
	if claims := ClaimsFromContext(ctx); claims != nil {
		return claims.UserID
	}
	return 0
}

// classify maps a token parse failure onto the API's auth errors.
func classify(err error) *Error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	default:
		return ErrTokenRejected
	}
}

// Guard authenticates agent and operator requests and enforces their roles.
type Guard struct {
	jwt  *JWTManager
	fail ErrorFunc
}

// NewGuard returns a Guard validating tokens with m. Failures are answered
// by fail, or with a bare JSON error when fail is nil.
func NewGuard(m *JWTManager, fail ErrorFunc) *Guard {
	if fail == nil {
		fail = writeAuthError
	}
	return &Guard{jwt: m, fail: fail}
}

// Authenticate parses the bearer token of r.
func (g *Guard) Authenticate(r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, ErrBadScheme
	}
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenBytes {
		return nil, ErrTokenMalformed
	}

	claims, err := g.jwt.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", classify(err), err)
	}
	if claims.UserID <= 0 || len(claims.Roles) == 0 {
		return nil, ErrNoIdentity
	}
	return claims, nil
}

// Middleware rejects requests without a valid token and stores the claims
// in the request context. Tokens expiring within the hour are flagged with
// X-Token-Expires-At so agents can renew them.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := g.Authenticate(r)
		if err != nil {
			g.fail(w, r, err)
			return
		}
		if claims.IsExpiringSoon(time.Hour) {
			w.Header().Set("X-Token-Expires-At", claims.ExpiresAt.Time.Format(time.RFC3339))
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Require admits requests whose token holds any of roles. It panics on a
// role the API does not define.
func (g *Guard) Require(roles ...string) func(http.Handler) http.Handler {
	if len(roles) == 0 {
		panic("auth: Require needs at least one role")
	}
	for _, role := range roles {
		if role != RoleAgent && role != RoleOperator {
			panic(fmt.Sprintf("auth: unknown role %q", role))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				g.fail(w, r, ErrMissingToken)
				return
			}
			if !claims.HasRole(roles...) {
				g.fail(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
