package identity

import (
	"context"
	"time"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/session"
	"github.com/frahmantamala/identity-service/internal/user"
)

// Repositories are the stores bound to one unit of work.
type Repositories struct {
	Companies user.CompanyRepositoryAPI
	Users     user.RepositoryAPI
	Sessions  session.RepositoryAPI
}

// UnitOfWork runs fn in a single transaction. Returning an error from fn
// rolls back every write made through repos.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(repos Repositories) error) error
}

type SessionManager interface {
	Create(ctx context.Context, repo session.RepositoryAPI, userID string, client internal.ClientInfo) (*session.Issued, error)
	MatchRefreshToken(ctx context.Context, repo session.RepositoryAPI, userID, refreshToken string) (*session.Session, error)
	Refresh(ctx context.Context, repo session.RepositoryAPI, s *session.Session, client internal.ClientInfo) (*session.Refreshed, error)
	Deactivate(ctx context.Context, repo session.RepositoryAPI, sessionID, userID string) error
	DeactivateAll(ctx context.Context, repo session.RepositoryAPI, userID string) (int64, error)
}

var (
	ErrCompanyExists = internal.NewConflictError("A company with this email already exists", internal.ErrCodeCompanyExists)
	ErrUserExists    = internal.NewConflictError("A user with this email already exists", internal.ErrCodeUserExists)
	// ErrProviderCollision keeps password accounts from being taken over
	// through federated sign-in.
	ErrProviderCollision = internal.NewConflictError("An account with this email already exists. Sign in with your password", internal.ErrCodeProviderCollision)

	ErrInvalidVerificationToken = internal.NewAuthenticationError("Invalid verification token", internal.ErrCodeInvalidToken)
	ErrVerificationTokenExpired = internal.NewAuthenticationError("Verification token has expired", internal.ErrCodeTokenExpired)
	ErrInvalidResetToken        = internal.NewAuthenticationError("Invalid password reset token", internal.ErrCodeInvalidToken)
	ErrResetTokenExpired        = internal.NewAuthenticationError("Password reset token has expired", internal.ErrCodeTokenExpired)
)

const (
	MsgRegistered           = "User registered successfully. Please check your email to verify your account."
	MsgVerificationRequired = "Email not verified. Please verify your email before signing in."
	MsgSignedIn             = "User signed in successfully."
	MsgEmailVerified        = "Email verified successfully."
	MsgGoogleSignedIn       = "Sign in successfully."
	MsgResetRequested       = "If an account exists for this email, a password reset link has been sent."
	MsgPasswordReset        = "Password has been successfully reset"
	MsgLoggedOut            = "Logged out successfully"
	MsgLoggedOutAll         = "Logged out from all sessions"
)

type MessageResult struct {
	Message string `json:"message"`
}

type UserSummary struct {
	ID              string  `json:"id"`
	Email           string  `json:"email"`
	Name            string  `json:"name"`
	EmailVerified   bool    `json:"email_verified"`
	Role            string  `json:"role"`
	CompanyID       *string `json:"company_id,omitempty"`
	ProfileImageURL *string `json:"profile_image_url,omitempty"`
}

type SessionMaterial struct {
	ID                    string    `json:"id"`
	AccessToken           string    `json:"access_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
}

// AuthResult is returned by the sign-in style workflows. Session is nil when
// VerificationRequired is set.
type AuthResult struct {
	Message              string           `json:"message"`
	VerificationRequired bool             `json:"verification_required,omitempty"`
	User                 *UserSummary     `json:"user,omitempty"`
	Session              *SessionMaterial `json:"session,omitempty"`
}

type RefreshResult struct {
	AccessToken           string     `json:"access_token"`
	AccessTokenExpiresAt  time.Time  `json:"access_token_expires_at"`
	RefreshToken          string     `json:"refresh_token,omitempty"`
	RefreshTokenExpiresAt *time.Time `json:"refresh_token_expires_at,omitempty"`
}

func newUserSummary(u *user.User) *UserSummary {
	return &UserSummary{
		ID:              u.ID,
		Email:           u.Email,
		Name:            u.Name,
		EmailVerified:   u.EmailVerified,
		Role:            u.Role,
		CompanyID:       u.CompanyID,
		ProfileImageURL: u.ProfileImageURL,
	}
}

func newAuthResult(message string, u *user.User, issued *session.Issued) *AuthResult {
	return &AuthResult{
		Message: message,
		User:    newUserSummary(u),
		Session: &SessionMaterial{
			ID:                    issued.Session.ID,
			AccessToken:           issued.Tokens.Access.Token,
			AccessTokenExpiresAt:  issued.Tokens.Access.ExpiresAt,
			RefreshToken:          issued.Tokens.Refresh.Token,
			RefreshTokenExpiresAt: issued.Tokens.Refresh.ExpiresAt,
		},
	}
}

func newRefreshResult(r *session.Refreshed) *RefreshResult {
	result := &RefreshResult{
		AccessToken:          r.Access.Token,
		AccessTokenExpiresAt: r.Access.ExpiresAt,
	}
	if r.Refresh != nil {
		expiresAt := r.Refresh.ExpiresAt
		result.RefreshToken = r.Refresh.Token
		result.RefreshTokenExpiresAt = &expiresAt
	}
	return result
}
