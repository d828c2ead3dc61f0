package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/frahmantamala/identity-service/internal"
)

// ClaimsVersion is bumped whenever the claim layout changes.
const ClaimsVersion = 1

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the payload carried by every token this service signs.
type Claims struct {
	Version   int       `json:"ver"`
	UserID    string    `json:"uid"`
	SessionID string    `json:"sid,omitempty"`
	Type      TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// IssuedToken pairs a signed token with its single authoritative expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type TokenPair struct {
	Access  IssuedToken
	Refresh IssuedToken
}

// TokenIssuer mints and checks access and refresh tokens.
type TokenIssuer interface {
	IssueAccessToken(userID, sessionID string) (IssuedToken, error)
	IssueRefreshToken(userID, sessionID string) (IssuedToken, error)
	IssueTokenPair(userID, sessionID string) (TokenPair, error)
	VerifyAccessToken(token string) (*Claims, error)
	VerifyRefreshToken(token string) (*Claims, error)
	Decode(token string) (*Claims, error)
}

// AccessTokenVerifier is the narrow view used by the HTTP middleware.
type AccessTokenVerifier interface {
	VerifyAccessToken(token string) (*Claims, error)
}

// SessionCheckFunc reports whether the session a token was issued for is
// still usable. It returns nil for an active, unexpired session.
type SessionCheckFunc func(ctx context.Context, sessionID, userID string) error

var (
	ErrInvalidToken = internal.ErrInvalidToken
	ErrTokenExpired = internal.ErrTokenExpired
)
