package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/api/middleware"
	"github.com/revivephoto/revive-api/internal/api/shared"
	"github.com/revivephoto/revive-api/internal/domain"
	"github.com/revivephoto/revive-api/internal/platform/logger"
	"github.com/revivephoto/revive-api/internal/task"
)

// TaskHandler handles task submission and retrieval.
type TaskHandler struct {
	svc *task.Service
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(svc *task.Service) *TaskHandler {
	return &TaskHandler{svc: svc}
}

// Submit handles POST /tasks. The request blocks while the foreground tier
// works. A completed task returns 200; a task handed to the background
// scheduler returns 202 so the client knows to poll.
func (h *TaskHandler) Submit(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	kind := domain.TaskKind(req.Kind)
	if !domain.IsValidTaskKind(kind) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unsupported task kind")
		return
	}

	payload := domain.TaskPayload{
		SourceImageRef: req.SourceImageRef,
		Prompt:         req.Prompt,
		Style:          req.Style,
		Era:            req.Era,
	}

	submitted, err := h.svc.Submit(r.Context(), userID, kind, payload)
	if err != nil {
		log.Warn("task submission rejected", "error", err, "user_id", userID)
		HandleAPIError(w, r, err)
		return
	}

	status := http.StatusOK
	if submitted.Status == domain.TaskStatusPendingBackgroundRetry {
		status = http.StatusAccepted
	}
	shared.RespondWithJSON(w, r, status, NewTaskResponse(submitted))
}

// Get handles GET /tasks/{id}.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	got, err := h.svc.Get(r.Context(), userID, middleware.IsAdmin(r), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(got))
}

// List handles GET /tasks.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "User not authenticated")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}

	tasks, err := h.svc.ListForUser(r.Context(), userID, limit)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskListResponse(tasks))
}
