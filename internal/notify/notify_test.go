package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
)

func completedTask(t *testing.T) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(uuid.New(), domain.TaskKindRestore,
		domain.TaskPayload{SourceImageRef: "img/1.jpg"}, 100)
	require.NoError(t, err)
	task.Status = domain.TaskStatusCompleted
	task.Result = "results/1.png"
	return task
}

func TestWebhookNotifierDeliversEvent(t *testing.T) {
	t.Parallel()

	var got webhookEvent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	task := completedTask(t)
	n := New(config.NotifierConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})
	n.Notify(context.Background(), task)

	assert.Equal(t, task.ID.String(), got.TaskID)
	assert.Equal(t, "completed", got.Status)
	assert.Equal(t, "results/1.png", got.Result)
}

func TestWebhookNotifierSwallowsServerErrors(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n := New(config.NotifierConfig{WebhookURL: srv.URL, TimeoutSeconds: 5})

	// Must not panic or block; failures are logged only.
	n.Notify(context.Background(), completedTask(t))
}

func TestNewWithoutURLReturnsNoop(t *testing.T) {
	t.Parallel()

	n := New(config.NotifierConfig{})
	_, ok := n.(NoopNotifier)
	assert.True(t, ok)

	n.Notify(context.Background(), completedTask(t))
}
