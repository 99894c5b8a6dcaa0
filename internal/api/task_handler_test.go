package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revivephoto/revive-api/internal/api/shared"
	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/mocks"
	"github.com/revivephoto/revive-api/internal/provider"
	"github.com/revivephoto/revive-api/internal/task"
)

type taskFixture struct {
	handler   *TaskHandler
	taskStore *mocks.MockTaskStore
	biller    *mocks.MockBiller
	provider  *mocks.MockProvider
}

type flatPricer struct{}

func (flatPricer) CostFor(domain.TaskKind) int64 { return 100 }

// newTaskFixture builds a handler over a real task.Service wired to mocks.
// The zero foreground budget makes any transient failure defer immediately,
// so tests never sleep through backoff.
func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	f := &taskFixture{
		taskStore: &mocks.MockTaskStore{},
		biller:    &mocks.MockBiller{},
		provider:  &mocks.MockProvider{},
	}

	cfg := config.EngineConfig{
		MaxRetries:            5,
		PerCallTimeoutMinutes: 1,
		BackoffMultiplier:     2.0,
		// ForegroundBudgetMinutes deliberately zero.
		ForegroundInitialDelaySecs: 1,
		ForegroundMaxDelaySecs:     1,
		BackgroundInitialDelaySecs: 1,
		BackgroundMaxDelaySecs:     1,
	}
	svc := task.NewService(cfg, f.taskStore, f.biller, flatPricer{}, f.provider, &mocks.MockNotifier{})
	f.handler = NewTaskHandler(svc)
	return f
}

func authedRequest(t *testing.T, method, target string, body any, userID uuid.UUID, admin bool) *http.Request {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	ctx := context.WithValue(req.Context(), shared.UserIDContextKey, userID)
	ctx = context.WithValue(ctx, shared.AdminContextKey, admin)
	return req.WithContext(ctx)
}

func TestSubmitReturnsOKWhenCompleted(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	req := authedRequest(t, http.MethodPost, "/tasks", SubmitTaskRequest{
		Kind:           "restore",
		SourceImageRef: "img/old.jpg",
	}, uuid.New(), false)

	rec := httptest.NewRecorder()
	f.handler.Submit(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "completed", resp.Status)
	assert.Equal(t, "mock-result", resp.Result)
}

func TestSubmitReturnsAcceptedWhenDeferred(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	f.provider.GenerateFn = func(ctx context.Context, kind domain.TaskKind, payload domain.TaskPayload) (*provider.Output, error) {
		return nil, provider.NewHTTPError(503, "model overloaded", nil)
	}

	req := authedRequest(t, http.MethodPost, "/tasks", SubmitTaskRequest{
		Kind:           "restore",
		SourceImageRef: "img/old.jpg",
	}, uuid.New(), false)

	rec := httptest.NewRecorder()
	f.handler.Submit(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "pending_background_retry", resp.Status)
}

func TestSubmitRejectsUnknownKind(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	req := authedRequest(t, http.MethodPost, "/tasks", SubmitTaskRequest{Kind: "teleport"},
		uuid.New(), false)

	rec := httptest.NewRecorder()
	f.handler.Submit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, f.provider.Calls)
}

func TestSubmitInsufficientBalanceReturnsPaymentRequired(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	f.biller.CanAffordFn = func(ctx context.Context, userID uuid.UUID, cost int64) (bool, error) {
		return false, nil
	}

	req := authedRequest(t, http.MethodPost, "/tasks", SubmitTaskRequest{
		Kind:           "restore",
		SourceImageRef: "img/old.jpg",
	}, uuid.New(), false)

	rec := httptest.NewRecorder()
	f.handler.Submit(rec, req)

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
}

func TestSubmitRequiresAuthentication(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	raw, err := json.Marshal(SubmitTaskRequest{Kind: "restore"})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/tasks", bytes.NewReader(raw))

	rec := httptest.NewRecorder()
	f.handler.Submit(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetTask(t *testing.T) {
	t.Parallel()

	f := newTaskFixture(t)
	owner := uuid.New()
	stored, err := domain.NewTask(owner, domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/old.jpg"}, 100)
	require.NoError(t, err)

	f.taskStore.GetTaskFn = func(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
		return stored, nil
	}

	get := func(caller uuid.UUID, admin bool) *httptest.ResponseRecorder {
		req := authedRequest(t, http.MethodGet, "/tasks/"+stored.ID.String(), nil, caller, admin)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", stored.ID.String())
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

		rec := httptest.NewRecorder()
		f.handler.Get(rec, req)
		return rec
	}

	rec := get(owner, false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, stored.ID, resp.ID)

	assert.Equal(t, http.StatusForbidden, get(uuid.New(), false).Code)
	assert.Equal(t, http.StatusOK, get(uuid.New(), true).Code)
}
