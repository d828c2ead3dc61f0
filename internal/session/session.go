package session

import (
	"context"
	"time"

	"github.com/frahmantamala/identity-service/internal"
	sessionDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/session"
)

// RotationWindow is the remaining refresh validity below which a refresh
// call also rotates the refresh token.
const RotationWindow = 24 * time.Hour

var (
	ErrNoActiveSession = internal.NewAuthenticationError("No active session", internal.ErrCodeNoActiveSession)
	ErrSessionExpired  = internal.NewAuthenticationError("Session has expired", internal.ErrCodeTokenExpired)
	ErrRefreshMismatch = internal.NewAuthenticationError("Invalid refresh token", internal.ErrCodeInvalidToken)
)

type Session struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	AccessTokenHash       string    `json:"-"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenHash      string    `json:"-"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	Active                bool      `json:"active"`
	IsExpired             bool      `json:"is_expired"`
	IsCurrent             bool      `json:"is_current"`
	UserAgent             *string   `json:"user_agent,omitempty"`
	IPAddress             *string   `json:"ip_address,omitempty"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// RepositoryAPI persists sessions inside the caller's unit of work.
type RepositoryAPI interface {
	Create(ctx context.Context, s *Session) error
	ListActiveByUser(ctx context.Context, userID string) ([]*Session, error)
	// GetActive returns ErrNoActiveSession unless the session exists, belongs
	// to userID and is active.
	GetActive(ctx context.Context, sessionID, userID string) (*Session, error)
	// UpdateTokens writes the token hashes, expiries and client metadata of an
	// active session. It returns ErrNoActiveSession if the session was
	// deactivated in the meantime.
	UpdateTokens(ctx context.Context, s *Session) error
	// ClearCurrent unflags the current session of one login context.
	ClearCurrent(ctx context.Context, userID string, userAgent *string) error
	// Deactivate scopes to userID when it is non-empty.
	Deactivate(ctx context.Context, sessionID, userID string) (int64, error)
	DeactivateAllForUser(ctx context.Context, userID string) (int64, error)
}

// Sweeper flips active sessions whose refresh expiry has passed to expired.
type Sweeper interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.RefreshTokenExpiresAt)
}

func ToDataModel(s *Session) *sessionDatamodel.Session {
	return &sessionDatamodel.Session{
		ID:                    s.ID,
		UserID:                s.UserID,
		AccessTokenHash:       s.AccessTokenHash,
		AccessTokenExpiresAt:  s.AccessTokenExpiresAt,
		RefreshTokenHash:      s.RefreshTokenHash,
		RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
		Active:                s.Active,
		IsExpired:             s.IsExpired,
		IsCurrent:             s.IsCurrent,
		UserAgent:             s.UserAgent,
		IPAddress:             s.IPAddress,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func FromDataModel(s *sessionDatamodel.Session) *Session {
	return &Session{
		ID:                    s.ID,
		UserID:                s.UserID,
		AccessTokenHash:       s.AccessTokenHash,
		AccessTokenExpiresAt:  s.AccessTokenExpiresAt,
		RefreshTokenHash:      s.RefreshTokenHash,
		RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
		Active:                s.Active,
		IsExpired:             s.IsExpired,
		IsCurrent:             s.IsCurrent,
		UserAgent:             s.UserAgent,
		IPAddress:             s.IPAddress,
		CreatedAt:             s.CreatedAt,
		UpdatedAt:             s.UpdatedAt,
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
