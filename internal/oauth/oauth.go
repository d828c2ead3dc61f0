package oauth

import (
	"context"

	"github.com/frahmantamala/identity-service/internal"
)

// Identity is what a federated provider asserts about a user.
type Identity struct {
	SubjectID     string
	Email         string
	Name          string
	Picture       string
	EmailVerified bool
}

// Verifier checks a provider-issued ID token for the given audience.
type Verifier interface {
	Verify(ctx context.Context, idToken, audience string) (*Identity, error)
}

var (
	ErrInvalidIDToken = internal.NewAuthenticationError("Invalid Google ID token", internal.ErrCodeInvalidFederatedAuth)
	ErrMissingEmail   = internal.NewAuthenticationError("Google account has no email", internal.ErrCodeInvalidFederatedAuth)
	ErrNotConfigured  = internal.NewAuthenticationError("Google sign-in is not enabled", internal.ErrCodeInvalidFederatedAuth)
)

// DisabledVerifier rejects every token. It stands in when no Google client id
// is configured.
type DisabledVerifier struct{}

func (DisabledVerifier) Verify(ctx context.Context, idToken, audience string) (*Identity, error) {
	return nil, ErrNotConfigured
}
