package auth

import (
	"net/http"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/transport"
	"github.com/frahmantamala/identity-service/pkg/logger"
)

var errMissingToken = internal.NewAuthenticationError("Missing authorization token", internal.ErrCodeInvalidToken)

type Middleware struct {
	*transport.BaseHandler
	verifier AccessTokenVerifier
	sessions SessionCheckFunc
}

func NewMiddleware(base *transport.BaseHandler, verifier AccessTokenVerifier, sessions SessionCheckFunc) *Middleware {
	return &Middleware{BaseHandler: base, verifier: verifier, sessions: sessions}
}

// RequireAccessToken rejects requests without a valid bearer access token or
// whose session was revoked or expired, and stores the caller's user id in
// the request context.
func (m *Middleware) RequireAccessToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := m.ExtractTokenFromHeader(r)
		if token == "" {
			m.WriteError(w, errMissingToken)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			m.Logger.Debug("access token rejected", "error", err)
			m.WriteError(w, err)
			return
		}
		if claims.SessionID == "" {
			m.WriteError(w, ErrInvalidToken)
			return
		}
		if err := m.sessions(r.Context(), claims.SessionID, claims.UserID); err != nil {
			m.Logger.Debug("session rejected", "session_id", claims.SessionID, "error", err)
			m.WriteError(w, err)
			return
		}

		ctx := internal.ContextWithUserID(r.Context(), claims.UserID)
		ctx = logger.With(ctx, "user_id", claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
