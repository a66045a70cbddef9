package sessions

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/httpjson"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

var errInternal = errors.New("internal error")

// Handler serves the sessions REST routes
type Handler struct {
	facade *Facade
	logger zerolog.Logger
}

// NewHandler creates a sessions REST handler
func NewHandler(facade *Facade, logger zerolog.Logger) *Handler {
	return &Handler{
		facade: facade,
		logger: logger.With().Str("component", "sessions_http").Logger(),
	}
}

// RegisterRoutes registers the sessions routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/sessions", h.createSession)
	mux.HandleFunc("GET /api/sessions/history", h.history)
	mux.HandleFunc("GET /api/sessions/code/{code}", h.getSessionByCode)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("PUT /api/sessions/{id}/status", h.setStatus)
	mux.HandleFunc("PUT /api/sessions/{id}/cycle", h.advanceCycle)
	mux.HandleFunc("POST /api/sessions/{id}/check-completion", h.checkCompletion)
	mux.HandleFunc("PUT /api/sessions/{id}/timer-state", h.updateTimerState)
	mux.HandleFunc("POST /api/sessions/{id}/join", h.join)
}

func (h *Handler) createSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.facade.CreateSession(r.Context(), req)
	h.respond(w, http.StatusCreated, session, err)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.facade.History(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, http.StatusOK, sessions)
}

func (h *Handler) getSessionByCode(w http.ResponseWriter, r *http.Request) {
	session, err := h.facade.GetSessionByCode(r.Context(), r.PathValue("code"))
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.facade.GetSession(r.Context(), id)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.facade.SetStatus(r.Context(), id, req)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) advanceCycle(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req AdvanceCycleRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.facade.AdvanceCycle(r.Context(), id, req)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) checkCompletion(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	session, err := h.facade.CheckCompletion(r.Context(), id)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) updateTimerState(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req UpdateTimerStateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.facade.UpdateTimerState(r.Context(), id, req)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) join(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	var req JoinSessionRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	session, err := h.facade.Join(r.Context(), id, req)
	h.respond(w, http.StatusOK, session, err)
}

func (h *Handler) respond(w http.ResponseWriter, status int, session *models.Session, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	httpjson.Write(w, status, session)
}

// fail writes the status for err. Unclassified errors are logged and
// reported without detail.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrValidation):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrConflict):
		httpjson.Error(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error().Err(err).Msg("session request failed")
		httpjson.Error(w, http.StatusInternalServerError, errInternal.Error())
	}
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
