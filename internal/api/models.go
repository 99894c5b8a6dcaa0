package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/domain"
)

// RegisterRequest is the payload for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=12,max=72"`
}

// LoginRequest is the payload for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshRequest is the payload for POST /auth/refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse carries an issued token pair.
type TokenResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	UserID       uuid.UUID `json:"user_id"`
}

// SubmitTaskRequest is the payload for POST /tasks.
type SubmitTaskRequest struct {
	Kind           string `json:"kind"             validate:"required"`
	SourceImageRef string `json:"source_image_ref" validate:"omitempty,max=1024"`
	Prompt         string `json:"prompt"           validate:"omitempty,max=4096"`
	Style          string `json:"style"            validate:"omitempty,max=256"`
	Era            string `json:"era"              validate:"omitempty,max=256"`
}

// TaskResponse is the client-facing view of a task.
type TaskResponse struct {
	ID           uuid.UUID  `json:"id"`
	Kind         string     `json:"kind"`
	Status       string     `json:"status"`
	Cost         int64      `json:"cost"`
	RetryCount   int        `json:"retry_count"`
	Result       string     `json:"result,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
	OriginTaskID *uuid.UUID `json:"origin_task_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewTaskResponse converts a domain task to its API representation.
func NewTaskResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:           t.ID,
		Kind:         string(t.Kind),
		Status:       string(t.Status),
		Cost:         t.Cost,
		RetryCount:   t.RetryCount,
		Result:       t.Result,
		LastError:    t.LastError,
		OriginTaskID: t.OriginTaskID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

// NewTaskListResponse converts a slice of domain tasks.
func NewTaskListResponse(tasks []*domain.Task) []TaskResponse {
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, NewTaskResponse(t))
	}
	return out
}
