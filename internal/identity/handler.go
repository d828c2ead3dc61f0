package identity

import (
	"context"
	"net/http"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/transport"
)

type ServiceAPI interface {
	Register(ctx context.Context, input RegisterInput) (*MessageResult, error)
	SignIn(ctx context.Context, input SignInInput) (*AuthResult, error)
	VerifyEmail(ctx context.Context, input VerifyEmailInput) (*AuthResult, error)
	SignInWithGoogle(ctx context.Context, input GoogleSignInInput) (*AuthResult, error)
	RefreshAccessToken(ctx context.Context, input RefreshInput) (*RefreshResult, error)
	RequestPasswordReset(ctx context.Context, input RequestPasswordResetInput) (*MessageResult, error)
	ResetPassword(ctx context.Context, input ResetPasswordInput) (*MessageResult, error)
	Logout(ctx context.Context, input LogoutInput, userID string) (*MessageResult, error)
	LogoutAll(ctx context.Context, userID string) (*MessageResult, error)
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

// Register handles POST /auth/register
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}

	result, err := h.Service.Register(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusCreated, result)
}

// SignIn handles POST /auth/signin
func (h *Handler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	client := h.ClientInfo(r)
	req.IPAddress, req.UserAgent = client.IPAddress, client.UserAgent

	result, err := h.Service.SignIn(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.writeAuthResult(w, result)
}

// VerifyEmail handles POST /auth/verify-email
func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req VerifyEmailInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	client := h.ClientInfo(r)
	req.IPAddress, req.UserAgent = client.IPAddress, client.UserAgent

	result, err := h.Service.VerifyEmail(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.writeAuthResult(w, result)
}

// SignInWithGoogle handles POST /auth/signin-with-google
func (h *Handler) SignInWithGoogle(w http.ResponseWriter, r *http.Request) {
	var req GoogleSignInInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	client := h.ClientInfo(r)
	req.IPAddress, req.UserAgent = client.IPAddress, client.UserAgent

	result, err := h.Service.SignInWithGoogle(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.writeAuthResult(w, result)
}

// RefreshAccessToken handles POST /auth/refresh-access-token
func (h *Handler) RefreshAccessToken(w http.ResponseWriter, r *http.Request) {
	var req RefreshInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}
	client := h.ClientInfo(r)
	req.IPAddress, req.UserAgent = client.IPAddress, client.UserAgent

	result, err := h.Service.RefreshAccessToken(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// RequestPasswordReset handles POST /auth/request-reset-password
func (h *Handler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req RequestPasswordResetInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}

	result, err := h.Service.RequestPasswordReset(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// ResetPassword handles POST /auth/reset-password
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}

	result, err := h.Service.ResetPassword(r.Context(), req)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// Logout handles POST /auth/logout
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, errUnauthenticated)
		return
	}

	var req LogoutInput
	if err := h.DecodeJSON(r, &req); err != nil {
		h.WriteError(w, err)
		return
	}

	result, err := h.Service.Logout(r.Context(), req, userID)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// LogoutAll handles POST /auth/logout-all
func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID := internal.UserIDFromContext(r.Context())
	if userID == "" {
		h.WriteError(w, errUnauthenticated)
		return
	}

	result, err := h.Service.LogoutAll(r.Context(), userID)
	if err != nil {
		h.WriteError(w, err)
		return
	}
	h.WriteJSON(w, http.StatusOK, result)
}

// An unverified sign-in is accepted but yields no session.
func (h *Handler) writeAuthResult(w http.ResponseWriter, result *AuthResult) {
	status := http.StatusOK
	if result.VerificationRequired {
		status = http.StatusAccepted
	}
	h.WriteJSON(w, status, result)
}
