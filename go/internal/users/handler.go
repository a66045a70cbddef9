package users

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/focusflow/go/internal/httpjson"
	"github.com/mcdev12/focusflow/go/internal/identity"
	"github.com/mcdev12/focusflow/go/internal/models"
	"github.com/rs/zerolog"
)

var errInternal = errors.New("internal error")

// AuthUserResponse reports who the caller is. User is omitted for anonymous callers.
type AuthUserResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *models.User `json:"user,omitempty"`
}

// Handler serves the users REST routes
type Handler struct {
	app    UsersApp
	logger zerolog.Logger
}

// NewHandler creates a users REST handler
func NewHandler(app UsersApp, logger zerolog.Logger) *Handler {
	return &Handler{
		app:    app,
		logger: logger.With().Str("component", "users_http").Logger(),
	}
}

// RegisterRoutes registers the users routes with an HTTP mux
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/users/anonymous", h.createAnonymousUser)
	mux.HandleFunc("GET /api/users/{id}", h.getUser)
	mux.HandleFunc("GET /api/auth/user", h.authUser)
	mux.HandleFunc("POST /api/auth/logout", h.logout)
}

func (h *Handler) createAnonymousUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.app.CreateAnonymousUser(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create anonymous user")
		httpjson.Error(w, http.StatusInternalServerError, errInternal.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, user)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.app.GetUser(r.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "user not found")
	case err != nil:
		h.logger.Error().Err(err).Str("user_id", id.String()).Msg("failed to get user")
		httpjson.Error(w, http.StatusInternalServerError, errInternal.Error())
	default:
		httpjson.Write(w, http.StatusOK, user)
	}
}

func (h *Handler) authUser(w http.ResponseWriter, r *http.Request) {
	id := identity.FromContext(r.Context())
	if id.Anonymous() {
		httpjson.Write(w, http.StatusOK, AuthUserResponse{})
		return
	}

	user, err := h.app.FindOrCreate(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("external_id", id.ExternalID).Msg("failed to resolve authenticated user")
		httpjson.Error(w, http.StatusInternalServerError, errInternal.Error())
		return
	}
	httpjson.Write(w, http.StatusOK, AuthUserResponse{Authenticated: true, User: user})
}

// logout has nothing to revoke: bearer tokens expire on their own.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}
