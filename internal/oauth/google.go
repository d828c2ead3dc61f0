package oauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"
)

const (
	DefaultGoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
)

var DefaultGoogleIssuers = []string{"accounts.google.com", "https://accounts.google.com"}

type googleClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	jwt.RegisteredClaims
}

// GoogleVerifier validates Google ID tokens against Google's published keys.
type GoogleVerifier struct {
	jwks    *keyfunc.JWKS
	issuers []string
	now     func() time.Time
}

// FetchGoogleJWKS downloads the key set and keeps it fresh in the background
// until ctx is cancelled.
func FetchGoogleJWKS(ctx context.Context, jwksURL string, logger *slog.Logger) (*keyfunc.JWKS, error) {
	if jwksURL == "" {
		jwksURL = DefaultGoogleJWKSURL
	}
	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx: ctx,
		RefreshErrorHandler: func(err error) {
			logger.Error("failed to refresh google jwks", "error", err)
		},
		RefreshInterval:   time.Hour,
		RefreshRateLimit:  time.Minute * 5,
		RefreshTimeout:    time.Second * 10,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch google jwks: %w", err)
	}
	return jwks, nil
}

func NewGoogleVerifier(jwks *keyfunc.JWKS, issuers []string) *GoogleVerifier {
	if len(issuers) == 0 {
		issuers = DefaultGoogleIssuers
	}
	return &GoogleVerifier{
		jwks:    jwks,
		issuers: issuers,
		now:     time.Now,
	}
}

func (v *GoogleVerifier) WithClock(now func() time.Time) *GoogleVerifier {
	v.now = now
	return v
}

func (v *GoogleVerifier) Verify(ctx context.Context, idToken, audience string) (*Identity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if audience == "" {
		return nil, errors.New("google client id is not configured")
	}

	claims := &googleClaims{}
	token, err := jwt.ParseWithClaims(idToken, claims, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil || !token.Valid {
		return nil, ErrInvalidIDToken.WithCause(err)
	}
	if !slices.Contains(v.issuers, claims.Issuer) {
		return nil, ErrInvalidIDToken
	}
	if claims.Email == "" {
		return nil, ErrMissingEmail
	}

	return &Identity{
		SubjectID:     claims.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
