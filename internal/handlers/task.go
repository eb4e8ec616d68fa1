package handlers

import (
	"net/http"
	"strings"

	"todoapp/internal/models"
)

// ListTasks returns one page of the user's tasks matching the query filter.
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseFilter(r.URL.Query())
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	tasks, err := h.store.ListTasks(r.Context(), userID(r), filter)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, tasks)
}

// GetTask returns a single task.
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	task, err := h.store.GetTask(r.Context(), userID(r), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, task)
}

// CreateTask creates a new task.
func (h *Handlers) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req models.NewTask
	if err := decodeJSON(w, r, &req); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.respondErr(w, r, err)
		return
	}

	task := &models.Task{
		UserID:      userID(r),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Priority:    req.Priority,
	}
	if err := h.store.CreateTask(r.Context(), task); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.invalidateStatistics(r)

	respondJSON(w, http.StatusCreated, task)
}

// UpdateTask applies a partial update.
func (h *Handlers) UpdateTask(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(r, "id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	var patch models.TaskPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.respondErr(w, r, err)
		return
	}
	if err := patch.Validate(); err != nil {
		h.respondErr(w, r, err)
		return
	}

	task, err := h.store.GetTask(ctx, userID(r), id)
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	task.ApplyPatch(patch, h.now())

	if err := h.store.UpdateTask(ctx, task); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.invalidateStatistics(r)

	respondJSON(w, http.StatusOK, task)
}

// DeleteTask deletes a task.
func (h *Handlers) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.store.DeleteTask(r.Context(), userID(r), id); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.invalidateStatistics(r)

	w.WriteHeader(http.StatusNoContent)
}

// ToggleTask flips the completion status of a task. The body carries only a
// message; clients re-fetch the task to see the result.
func (h *Handlers) ToggleTask(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	if err := h.store.ToggleTaskComplete(r.Context(), userID(r), id, h.now()); err != nil {
		h.respondErr(w, r, err)
		return
	}
	h.invalidateStatistics(r)

	respondJSON(w, http.StatusOK, messageResponse{Message: "Task completion status toggled successfully"})
}

// Statistics returns the user's task statistics for the current UTC day.
func (h *Handlers) Statistics(w http.ResponseWriter, r *http.Request) {
	var (
		stats models.Statistics
		err   error
	)
	if h.stats != nil {
		stats, err = h.stats.Get(r.Context(), userID(r))
	} else {
		stats, err = h.store.Statistics(r.Context(), userID(r), h.now())
	}
	if err != nil {
		h.respondErr(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) invalidateStatistics(r *http.Request) {
	if h.stats != nil {
		h.stats.Invalidate(r.Context(), userID(r))
	}
}
