package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/revivephoto/revive-api/internal/api/shared"
	"github.com/revivephoto/revive-api/internal/task"
)

// AdminHandler exposes the operator surface: stuck-task inspection,
// force-fail, manual re-drives and engine statistics.
type AdminHandler struct {
	reaper    *task.Reaper
	scheduler *task.Scheduler
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(reaper *task.Reaper, scheduler *task.Scheduler) *AdminHandler {
	return &AdminHandler{reaper: reaper, scheduler: scheduler}
}

// ListStuck handles GET /admin/tasks/stuck.
func (h *AdminHandler) ListStuck(w http.ResponseWriter, r *http.Request) {
	stuck, err := h.reaper.ListStuck(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskListResponse(stuck))
}

// ForceFail handles POST /admin/tasks/{id}/force-fail.
func (h *AdminHandler) ForceFail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	failed, err := h.reaper.ForceFail(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, NewTaskResponse(failed))
}

// ManualRetry handles POST /admin/tasks/{id}/retry.
func (h *AdminHandler) ManualRetry(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return
	}

	redrive, err := h.reaper.ManualRetry(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, NewTaskResponse(redrive))
}

// Stats handles GET /admin/engine/stats.
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.scheduler.Stats(r.Context())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, stats)
}
