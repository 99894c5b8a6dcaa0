package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the processing state of a generation task.
type TaskStatus string

// Possible task status values. A task moves
// pending -> processing -> {completed | failed | pending_background_retry};
// pending_background_retry is picked up by the background scheduler and is
// the only re-entry path back to processing. A failed task may be re-armed
// to pending_background_retry after its cool-down, never on read.
const (
	TaskStatusPending                TaskStatus = "pending"
	TaskStatusProcessing             TaskStatus = "processing"
	TaskStatusCompleted              TaskStatus = "completed"
	TaskStatusFailed                 TaskStatus = "failed"
	TaskStatusPendingBackgroundRetry TaskStatus = "pending_background_retry"
)

// TaskKind selects which provider operation a task invokes and which payload
// shape it carries.
type TaskKind string

const (
	TaskKindRestore       TaskKind = "restore"
	TaskKindStylize       TaskKind = "stylize"
	TaskKindEraTransform  TaskKind = "era_transform"
	TaskKindPoetComposite TaskKind = "poet_composite"
	TaskKindGenerate      TaskKind = "generate"
)

// Common validation errors for Task.
var (
	ErrEmptyTaskID      = errors.New("task ID cannot be empty")
	ErrEmptyTaskUserID  = errors.New("task user ID cannot be empty")
	ErrInvalidTaskKind  = errors.New("invalid task kind")
	ErrInvalidTaskState = errors.New("invalid task status")
	ErrEmptyTaskPayload = errors.New("task payload cannot be empty")
	ErrNegativeTaskCost = errors.New("task cost cannot be negative")
)

// TaskPayload is the kind-specific immutable input of a task: the source
// asset reference, prompt text and style parameters. Which fields are
// required depends on the kind; the provider adapter validates the
// combination it receives.
type TaskPayload struct {
	SourceImageRef string `json:"source_image_ref,omitempty"`
	Prompt         string `json:"prompt,omitempty"`
	Style          string `json:"style,omitempty"`
	Era            string `json:"era,omitempty"`
}

// Task represents one unit of generation work submitted by a user. Cost is
// frozen from the pricing table at creation time. RetryCount counts provider
// re-attempts beyond the first across both retry tiers and never decreases.
// Billed means a debit row exists for this task id; it is set exactly once,
// inside the debit transaction. BillingSuppressed exempts a task from
// billing entirely, so it is neither debited on success nor refunded on
// failure. BillingFailed marks the alarm-worthy state where generation
// succeeded but the debit did not. OriginTaskID links an operator-triggered
// retry to the abandoned task it re-drives.
type Task struct {
	ID                 uuid.UUID       `json:"id"`
	UserID             uuid.UUID       `json:"user_id"`
	Kind               TaskKind        `json:"kind"`
	Payload            json.RawMessage `json:"payload"`
	Status             TaskStatus      `json:"status"`
	Cost               int64           `json:"cost"`
	RetryCount         int             `json:"retry_count"`
	Result             string          `json:"result,omitempty"`
	LastError          string          `json:"last_error,omitempty"`
	LastErrorRetryable bool            `json:"last_error_retryable"`
	Billed             bool            `json:"billed"`
	BillingSuppressed  bool            `json:"billing_suppressed"`
	BillingFailed      bool            `json:"billing_failed"`
	OriginTaskID       *uuid.UUID      `json:"origin_task_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewTask creates a new pending Task owned by the given user. The payload is
// serialized and frozen; cost comes from the pricing lookup performed by the
// caller. Returns an error if validation fails.
func NewTask(userID uuid.UUID, kind TaskKind, payload TaskPayload, cost int64) (*Task, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &Task{
		ID:        uuid.New(),
		UserID:    userID,
		Kind:      kind,
		Payload:   raw,
		Status:    TaskStatusPending,
		Cost:      cost,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// NewManualRetryTask creates a fresh task re-driving an abandoned one. The
// new record keeps the original's owner, kind, payload and cost, links back
// via OriginTaskID, and is born with billing suppressed so no retry path can
// debit the user a second time for work that may have been charged before
// the original was abandoned. It is not marked billed, so no failure path
// can refund a charge that never happened. It starts in
// pending_background_retry so the scheduler picks it up on the next tick.
func NewManualRetryTask(origin *Task) (*Task, error) {
	now := time.Now().UTC()
	originID := origin.ID
	t := &Task{
		ID:                uuid.New(),
		UserID:            origin.UserID,
		Kind:              origin.Kind,
		Payload:           origin.Payload,
		Status:            TaskStatusPendingBackgroundRetry,
		Cost:              origin.Cost,
		BillingSuppressed: true,
		OriginTaskID:      &originID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks if the Task has valid data.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return ErrEmptyTaskID
	}
	if t.UserID == uuid.Nil {
		return ErrEmptyTaskUserID
	}
	if !IsValidTaskKind(t.Kind) {
		return ErrInvalidTaskKind
	}
	if len(t.Payload) == 0 {
		return ErrEmptyTaskPayload
	}
	if t.Cost < 0 {
		return ErrNegativeTaskCost
	}
	if !isValidTaskStatus(t.Status) {
		return ErrInvalidTaskState
	}
	return nil
}

// Terminal reports whether the task has reached a terminal status.
func (t *Task) Terminal() bool {
	return t.Status == TaskStatusCompleted || t.Status == TaskStatusFailed
}

// DecodePayload unmarshals the frozen payload back into its structured form.
func (t *Task) DecodePayload() (TaskPayload, error) {
	var p TaskPayload
	if err := json.Unmarshal(t.Payload, &p); err != nil {
		return TaskPayload{}, err
	}
	return p, nil
}

// IsValidTaskKind checks if the given kind is one of the supported
// generation operations.
func IsValidTaskKind(kind TaskKind) bool {
	switch kind {
	case TaskKindRestore, TaskKindStylize, TaskKindEraTransform,
		TaskKindPoetComposite, TaskKindGenerate:
		return true
	default:
		return false
	}
}

func isValidTaskStatus(status TaskStatus) bool {
	switch status {
	case TaskStatusPending, TaskStatusProcessing, TaskStatusCompleted,
		TaskStatusFailed, TaskStatusPendingBackgroundRetry:
		return true
	default:
		return false
	}
}
