// Package notify delivers fire-and-forget webhooks when a task reaches a
// terminal state after leaving the foreground request path.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/revivephoto/revive-api/internal/config"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
)

// Notifier announces a task's terminal outcome to interested parties.
// Delivery is best effort; task state is the source of truth.
type Notifier interface {
	Notify(ctx context.Context, task *domain.Task)
}

// WebhookNotifier POSTs task outcome events to a configured URL.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NoopNotifier discards all notifications. Used when no webhook URL is
// configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, task *domain.Task) {}

// New creates a Notifier from configuration. An empty webhook URL yields
// a NoopNotifier.
func New(cfg config.NotifierConfig) Notifier {
	if cfg.WebhookURL == "" {
		return NoopNotifier{}
	}
	return &WebhookNotifier{
		url: cfg.WebhookURL,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
	}
}

type webhookEvent struct {
	TaskID    string `json:"task_id"`
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Status    string `json:"status"`
	Result    string `json:"result,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

// Notify delivers the event synchronously and logs failures instead of
// returning them. Callers run it in a goroutine when they must not block.
func (n *WebhookNotifier) Notify(ctx context.Context, task *domain.Task) {
	log := logger.FromContext(ctx)

	event := webhookEvent{
		TaskID:    task.ID.String(),
		UserID:    task.UserID.String(),
		Kind:      string(task.Kind),
		Status:    string(task.Status),
		Result:    task.Result,
		LastError: task.LastError,
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Error("failed to encode webhook event", "task_id", task.ID, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to build webhook request", "task_id", task.ID, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		log.Warn("webhook delivery failed", "task_id", task.ID, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		log.Warn("webhook rejected",
			"task_id", task.ID, "status", fmt.Sprintf("%d", resp.StatusCode))
		return
	}

	log.Debug("webhook delivered", "task_id", task.ID, "task_status", task.Status)
}
