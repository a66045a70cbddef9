package activity

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/httpjson"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

// ActivityApp defines what the handler needs from the activity application
type ActivityApp interface {
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*models.ActivityLog, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.ActivityLog, error)
}

// Handler serves the activity REST routes
type Handler struct {
	app    ActivityApp
	logger zerolog.Logger
}

// NewHandler creates an activity REST handler
func NewHandler(app ActivityApp, logger zerolog.Logger) *Handler {
	return &Handler{app: app, logger: logger.With().Str("component", "activity_http").Logger()}
}

// RegisterRoutes registers the activity routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/activity/sessions/{id}", h.list(h.app.ListBySession))
	mux.HandleFunc("GET /api/activity/users/{id}", h.list(h.app.ListByUser))
}

func (h *Handler) list(fetch func(context.Context, uuid.UUID, int) ([]*models.ActivityLog, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(r.PathValue("id"))
		if err != nil {
			httpjson.Error(w, http.StatusBadRequest, "invalid id")
			return
		}

		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			if limit, err = strconv.Atoi(raw); err != nil || limit < 0 {
				httpjson.Error(w, http.StatusBadRequest, "invalid limit")
				return
			}
		}

		entries, err := fetch(r.Context(), id, limit)
		if err != nil {
			h.logger.Error().Err(err).Str("id", id.String()).Msg("failed to list activity")
			httpjson.Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		if entries == nil {
			entries = []*models.ActivityLog{}
		}
		httpjson.Write(w, http.StatusOK, entries)
	}
}
