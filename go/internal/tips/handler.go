package tips

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/activity"
	"github.com/mcdev12/focusflow/go/internal/httpjson"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

// TipRequest asks for a tip suited to a free-form context
type TipRequest struct {
	Context string     `json:"context"`
	UserID  *uuid.UUID `json:"userId,omitempty"`
}

// TipResponse carries one tip
type TipResponse struct {
	Tip string `json:"tip"`
}

// Recorder notes that a user asked for a tip
type Recorder interface {
	Record(ctx context.Context, e activity.Entry) (*models.ActivityLog, error)
}

// Handler serves the tips REST routes
type Handler struct {
	catalog  *Catalog
	recorder Recorder
	logger   zerolog.Logger
}

// NewHandler creates a tips handler. recorder may be nil.
func NewHandler(catalog *Catalog, recorder Recorder, logger zerolog.Logger) *Handler {
	return &Handler{
		catalog:  catalog,
		recorder: recorder,
		logger:   logger.With().Str("component", "tips_http").Logger(),
	}
}

// RegisterRoutes registers the tips routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/tips/random", h.random)
	mux.HandleFunc("POST /api/tips", h.contextual)
}

func (h *Handler) random(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, TipResponse{Tip: h.catalog.Random().Text})
}

func (h *Handler) contextual(w http.ResponseWriter, r *http.Request) {
	var req TipRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tip := h.catalog.Contextual(req.Context)

	if h.recorder != nil && req.UserID != nil {
		_, err := h.recorder.Record(r.Context(), activity.Entry{
			UserID:   *req.UserID,
			Type:     models.ActivityTipRequested,
			Message:  "Requested a focus tip",
			Metadata: map[string]any{"context": req.Context},
		})
		if err != nil {
			h.logger.Warn().Err(err).Msg("failed to record tip request")
		}
	}

	httpjson.Write(w, http.StatusOK, TipResponse{Tip: tip.Text})
}
