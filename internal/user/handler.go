package user

import (
	"context"
	"net/http"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/session"
	"github.com/frahmantamala/identity-service/internal/transport"
)

type ServiceAPI interface {
	GetProfile(ctx context.Context, userID string) (*Profile, error)
	ListActiveSessions(ctx context.Context, userID string) ([]*session.Session, error)
}

var errUnauthenticated = internal.NewAuthenticationError("Authentication required", internal.ErrCodeInvalidToken)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(base *transport.BaseHandler, svc ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: base,
		Service:     svc,
	}
}

// GetCurrentUser handles GET /users/me
func (h *Handler) GetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, errUnauthenticated)
		return
	}

	profile, err := h.Service.GetProfile(r.Context(), userID)
	if err != nil {
		h.WriteError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProfileResponse{User: profile.User, Company: profile.Company})
}

// ListSessions handles GET /users/me/sessions
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, errUnauthenticated)
		return
	}

	sessions, err := h.Service.ListActiveSessions(r.Context(), userID)
	if err != nil {
		h.WriteError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, NewSessionListResponse(sessions))
}
