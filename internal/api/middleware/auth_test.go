package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/service/auth"
)

func newTestMiddleware(t *testing.T) (*AuthMiddleware, auth.JWTService) {
	t.Helper()
	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:                   strings.Repeat("s", 32),
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 10080,
	})
	require.NoError(t, err)
	return NewAuthMiddleware(jwtSvc), jwtSvc
}

func TestAuthenticatePassesValidToken(t *testing.T) {
	t.Parallel()

	m, jwtSvc := newTestMiddleware(t)
	userID := uuid.New()
	token, err := jwtSvc.GenerateToken(context.Background(), userID, true)
	require.NoError(t, err)

	var gotUserID uuid.UUID
	var gotAdmin bool
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, _ = GetUserID(r)
		gotAdmin = IsAdmin(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, gotUserID)
	assert.True(t, gotAdmin)
}

func TestAuthenticateRejectsBadHeaders(t *testing.T) {
	t.Parallel()

	m, _ := newTestMiddleware(t)
	handler := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for unauthenticated requests")
	}))

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "no bearer prefix", header: "Token abc"},
		{name: "garbage token", header: "Bearer not.a.token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	t.Parallel()

	m, jwtSvc := newTestMiddleware(t)
	handler := m.Authenticate(m.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	call := func(admin bool) int {
		token, err := jwtSvc.GenerateToken(context.Background(), uuid.New(), admin)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call(true))
	assert.Equal(t, http.StatusForbidden, call(false))
}
