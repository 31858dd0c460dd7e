package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bissquit/grocer/internal/domain"
	"github.com/stretchr/testify/assert"
)

type stubValidator struct {
	tokens map[string]domain.UserType
}

func (s stubValidator) ValidateToken(_ context.Context, token string) (string, domain.UserType, error) {
	if t, ok := s.tokens[token]; ok {
		return "user-" + token, t, nil
	}
	return "", "", errors.New("invalid token")
}

func TestAuthMiddleware(t *testing.T) {
	validator := stubValidator{tokens: map[string]domain.UserType{"good": domain.UserTypePersonal}}

	var gotID string
	var gotType domain.UserType
	handler := AuthMiddleware(validator)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		gotType = GetUserType(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		prepare    func(r *http.Request)
		wantStatus int
	}{
		{"no token", func(_ *http.Request) {}, http.StatusUnauthorized},
		{"cookie token", func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: TokenCookie, Value: "good"})
		}, http.StatusOK},
		{"bearer token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer good")
		}, http.StatusOK},
		{"malformed header", func(r *http.Request) {
			r.Header.Set("Authorization", "good")
		}, http.StatusUnauthorized},
		{"invalid token", func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer bad")
		}, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotType = "", ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "user-good", gotID)
				assert.Equal(t, domain.UserTypePersonal, gotType)
			}
		})
	}
}

func TestRequireType(t *testing.T) {
	handler := RequireType(domain.UserTypeSeller)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		ctx        context.Context
		wantStatus int
	}{
		{"anonymous", context.Background(), http.StatusUnauthorized},
		{"buyer", WithUser(context.Background(), "u1", domain.UserTypeBusiness), http.StatusForbidden},
		{"seller", WithUser(context.Background(), "u2", domain.UserTypeSeller), http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
