package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/mocks"
	"github.com/revivephoto/revive-api/internal/service/auth"
	"github.com/revivephoto/revive-api/internal/store"
)

func testJWTService(t *testing.T) auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:                   strings.Repeat("s", 32),
		TokenLifetimeMinutes:        60,
		RefreshTokenLifetimeMinutes: 10080,
	})
	require.NoError(t, err)
	return svc
}

func postJSON(t *testing.T, handler http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRegisterSuccess(t *testing.T) {
	t.Parallel()

	var created *domain.User
	userStore := &mocks.MockUserStore{
		CreateFn: func(ctx context.Context, user *domain.User) error {
			created = user
			return nil
		},
	}
	h := NewAuthHandler(userStore, testJWTService(t), auth.NewBcryptVerifier())

	rec := postJSON(t, h.Register, RegisterRequest{
		Email:    "user@example.com",
		Password: "a-long-enough-password",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, created)
	assert.Equal(t, "user@example.com", created.Email)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	userStore := &mocks.MockUserStore{
		CreateFn: func(ctx context.Context, user *domain.User) error {
			return store.ErrEmailExists
		},
	}
	h := NewAuthHandler(userStore, testJWTService(t), auth.NewBcryptVerifier())

	rec := postJSON(t, h.Register, RegisterRequest{
		Email:    "user@example.com",
		Password: "a-long-enough-password",
	})

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	h := NewAuthHandler(&mocks.MockUserStore{}, testJWTService(t), auth.NewBcryptVerifier())

	rec := postJSON(t, h.Register, RegisterRequest{Email: "not-an-email", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	t.Parallel()

	hash, err := bcrypt.GenerateFromPassword([]byte("a-long-enough-password"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &domain.User{
		ID:             uuid.New(),
		Email:          "user@example.com",
		HashedPassword: string(hash),
	}
	userStore := &mocks.MockUserStore{
		GetByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, store.ErrUserNotFound
		},
	}
	h := NewAuthHandler(userStore, testJWTService(t), auth.NewBcryptVerifier())

	rec := postJSON(t, h.Login, LoginRequest{Email: user.Email, Password: "a-long-enough-password"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = postJSON(t, h.Login, LoginRequest{Email: user.Email, Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown user and wrong password are indistinguishable.
	rec = postJSON(t, h.Login, LoginRequest{Email: "other@example.com", Password: "a-long-enough-password"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	jwtSvc := testJWTService(t)
	user := &domain.User{ID: uuid.New(), Email: "user@example.com"}
	userStore := &mocks.MockUserStore{
		GetByIDFn: func(ctx context.Context, id uuid.UUID) (*domain.User, error) {
			return user, nil
		},
	}
	h := NewAuthHandler(userStore, jwtSvc, auth.NewBcryptVerifier())

	refresh, err := jwtSvc.GenerateRefreshToken(context.Background(), user.ID, false)
	require.NoError(t, err)

	rec := postJSON(t, h.Refresh, RefreshRequest{RefreshToken: refresh})
	assert.Equal(t, http.StatusOK, rec.Code)

	// An access token must not pass as a refresh token.
	access, err := jwtSvc.GenerateToken(context.Background(), user.ID, false)
	require.NoError(t, err)
	rec = postJSON(t, h.Refresh, RefreshRequest{RefreshToken: access})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
