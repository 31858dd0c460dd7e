package httputil

import (
	"context"
	"net/http"
	"strings"

	"github.com/bissquit/grocer/internal/domain"
)

// TokenCookie is the cookie carrying the access token.
const TokenCookie = "token"

// CORSMiddleware creates CORS middleware that handles preflight requests
// and adds appropriate CORS headers to responses.
func CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	originsSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originsSet[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" && (originsSet[origin] || originsSet["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

type contextKey string

// Context keys for storing user information.
const (
	UserIDKey   contextKey = "user_id"
	UserTypeKey contextKey = "user_type"
)

// TokenValidator interface for validating tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (userID string, userType domain.UserType, err error)
}

// AuthMiddleware creates authentication middleware.
// The token is read from the token cookie first, then from a bearer
// Authorization header.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := tokenFromRequest(r)
			if !ok {
				Error(w, http.StatusUnauthorized, "no token provided")
				return
			}

			userID, userType, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID, userType)))
		})
	}
}

func tokenFromRequest(r *http.Request) (string, bool) {
	if cookie, err := r.Cookie(TokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// RequireType rejects users whose account type is not one of the allowed types.
func RequireType(allowed ...domain.UserType) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userType, ok := r.Context().Value(UserTypeKey).(domain.UserType)
			if !ok {
				Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			for _, t := range allowed {
				if userType == t {
					next.ServeHTTP(w, r)
					return
				}
			}

			Error(w, http.StatusForbidden, "access denied")
		})
	}
}

// WithUser stores the authenticated user in the context.
func WithUser(ctx context.Context, userID string, userType domain.UserType) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	return context.WithValue(ctx, UserTypeKey, userType)
}

// GetUserID extracts user ID from context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetUserType extracts the account type from context.
func GetUserType(ctx context.Context) domain.UserType {
	if t, ok := ctx.Value(UserTypeKey).(domain.UserType); ok {
		return t
	}
	return ""
}
