package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JWTTokenIssuer struct {
	AccessTokenSecret  []byte
	RefreshTokenSecret []byte
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	Issuer             string

	now func() time.Time
}

type IssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// NewJWTTokenIssuer creates an HS256 issuer. Zero TTLs fall back to 15 minutes
// for access tokens and 7 days for refresh tokens.
func NewJWTTokenIssuer(cfg IssuerConfig) *JWTTokenIssuer {
	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = 7 * 24 * time.Hour
	}
	return &JWTTokenIssuer{
		AccessTokenSecret:  []byte(cfg.AccessSecret),
		RefreshTokenSecret: []byte(cfg.RefreshSecret),
		AccessTokenTTL:     accessTTL,
		RefreshTokenTTL:    refreshTTL,
		Issuer:             cfg.Issuer,
		now:                time.Now,
	}
}

// WithClock replaces the issuer's time source.
func (j *JWTTokenIssuer) WithClock(now func() time.Time) *JWTTokenIssuer {
	j.now = now
	return j
}

func (j *JWTTokenIssuer) IssueAccessToken(userID, sessionID string) (IssuedToken, error) {
	return j.issue(userID, sessionID, TokenTypeAccess, j.AccessTokenSecret, j.AccessTokenTTL)
}

func (j *JWTTokenIssuer) IssueRefreshToken(userID, sessionID string) (IssuedToken, error) {
	return j.issue(userID, sessionID, TokenTypeRefresh, j.RefreshTokenSecret, j.RefreshTokenTTL)
}

func (j *JWTTokenIssuer) IssueTokenPair(userID, sessionID string) (TokenPair, error) {
	access, err := j.IssueAccessToken(userID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := j.IssueRefreshToken(userID, sessionID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func (j *JWTTokenIssuer) issue(userID, sessionID string, typ TokenType, secret []byte, ttl time.Duration) (IssuedToken, error) {
	if userID == "" {
		return IssuedToken{}, errors.New("user id is required to issue a token")
	}

	now := j.now()
	// The JWT exp claim has second precision; the returned expiry is read
	// back from it so both always agree.
	expiresAt := jwt.NewNumericDate(now.Add(ttl))

	claims := &Claims{
		Version:   ClaimsVersion,
		UserID:    userID,
		SessionID: sessionID,
		Type:      typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    j.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: expiresAt,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign %s token: %w", typ, err)
	}

	return IssuedToken{Token: signed, ExpiresAt: expiresAt.Time}, nil
}

// VerifyAccessToken returns the claims of a valid access token, or
// ErrTokenExpired / ErrInvalidToken.
func (j *JWTTokenIssuer) VerifyAccessToken(tokenString string) (*Claims, error) {
	return j.verify(tokenString, TokenTypeAccess, j.AccessTokenSecret)
}

func (j *JWTTokenIssuer) VerifyRefreshToken(tokenString string) (*Claims, error) {
	return j.verify(tokenString, TokenTypeRefresh, j.RefreshTokenSecret)
}

func (j *JWTTokenIssuer) verify(tokenString string, typ TokenType, secret []byte) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	}
	if j.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.Issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Version != ClaimsVersion || claims.Type != typ {
		return nil, ErrInvalidToken
	}
	if claims.UserID == "" || claims.UserID != claims.Subject {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Decode reads claims without checking the signature or expiry. Use it for
// inspection only, never to authorize anything.
func (j *JWTTokenIssuer) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
