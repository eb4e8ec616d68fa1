package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"todoapp/internal/auth"
	"todoapp/internal/models"
	"todoapp/internal/statscache"
	"todoapp/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	store  store.Store
	auth   *auth.Service
	stats  *statscache.Loader
	logger *slog.Logger
	now    func() time.Time
}

// New creates a new Handlers instance. A nil stats loader computes
// statistics on every request; a nil logger uses slog.Default().
func New(s store.Store, authSvc *auth.Service, stats *statscache.Loader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:  s,
		auth:   authSvc,
		stats:  stats,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Routes builds the API router.
func (h *Handlers) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.RequireAuth)
			r.Get("/me", h.Me)
			r.Post("/validate-token", h.ValidateToken)
		})
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Use(h.RequireAuth)

		r.Get("/", h.ListTasks)
		r.Post("/", h.CreateTask)
		r.Get("/statistics", h.Statistics)
		r.Get("/{id}", h.GetTask)
		r.Put("/{id}", h.UpdateTask)
		r.Delete("/{id}", h.DeleteTask)
		r.Patch("/{id}/toggle", h.ToggleTask)
	})

	return r
}

// parseID extracts and parses an integer ID from URL parameters.
func parseID(r *http.Request, param string) (int64, error) {
	idStr := chi.URLParam(r, param)
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, models.NewValidationError("invalid " + param)
	}
	return id, nil
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return models.NewValidationError("invalid json")
	}
	return nil
}

type messageResponse struct {
	Message string `json:"message"`
}

// respondJSON writes v as a JSON body with the given status.
func respondJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	respondJSON(w, code, messageResponse{Message: message})
}

// respondErr maps err onto a status code. Anything outside the shared
// taxonomy is logged and reported as a generic 500.
func (h *Handlers) respondErr(w http.ResponseWriter, r *http.Request, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		respondError(w, http.StatusBadRequest, ve.Message)
	case errors.Is(err, models.ErrValidation):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrUnauthorized):
		respondError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, models.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, models.ErrConflict):
		respondError(w, http.StatusConflict, "email is already registered")
	default:
		h.logger.Error("internal server error",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
