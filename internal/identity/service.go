package identity

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
	"github.com/frahmantamala/identity-service/internal/core/datamodel"
	"github.com/frahmantamala/identity-service/internal/core/events"
	"github.com/frahmantamala/identity-service/internal/notification"
	"github.com/frahmantamala/identity-service/internal/oauth"
	"github.com/frahmantamala/identity-service/internal/session"
	"github.com/frahmantamala/identity-service/internal/user"
)

const (
	defaultNotifyTimeout = 5 * time.Second

	methodPassword          = "password"
	methodEmailVerification = "email_verification"
	methodGoogle            = "google"
)

type Config struct {
	FrontendURL    string
	GoogleClientID string
	NotifyTimeout  time.Duration
}

type Dependencies struct {
	UnitOfWork UnitOfWork
	Tokens     auth.TokenIssuer
	Passwords  auth.Hasher
	Sessions   SessionManager
	OAuth      oauth.Verifier
	Notifier   notification.Notifier
	Events     events.Publisher
	Config     Config
	Logger     *slog.Logger
}

// Service runs the identity workflows. Each workflow is one unit of work;
// notifications and events are sent only after it commits.
type Service struct {
	uow       UnitOfWork
	tokens    auth.TokenIssuer
	passwords auth.Hasher
	sessions  SessionManager
	oauth     oauth.Verifier
	notifier  notification.Notifier
	events    events.Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultNotifyTimeout
	}
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return &Service{
		uow:       deps.UnitOfWork,
		tokens:    deps.Tokens,
		passwords: deps.Passwords,
		sessions:  deps.Sessions,
		oauth:     deps.OAuth,
		notifier:  deps.Notifier,
		events:    deps.Events,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Register(ctx context.Context, input RegisterInput) (*MessageResult, error) {
	input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := s.passwords.Hash(input.Password)
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	now := s.now()
	var (
		owner   *user.User
		company *user.Company
		token   string
	)
	err = s.uow.Do(ctx, func(repos Repositories) error {
		exists, err := repos.Companies.ExistsByEmail(ctx, input.CompanyEmail)
		if err != nil {
			return err
		}
		if exists {
			return ErrCompanyExists
		}
		exists, err = repos.Users.ExistsByEmail(ctx, input.AdminEmail)
		if err != nil {
			return err
		}
		if exists {
			return ErrUserExists
		}

		company = &user.Company{Name: input.CompanyName, Email: input.CompanyEmail}
		if err := repos.Companies.Create(ctx, company); err != nil {
			if datamodel.IsUniqueViolation(err) {
				return ErrCompanyExists.WithCause(err)
			}
			return err
		}

		owner = user.NewOwner(company.ID, input.AdminName, input.AdminEmail, passwordHash)
		token, err = owner.IssueEmailVerificationToken(now)
		if err != nil {
			return err
		}
		if err := repos.Users.Create(ctx, owner); err != nil {
			if datamodel.IsUniqueViolation(err) {
				return ErrUserExists.WithCause(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "register", err)
	}

	s.logger.InfoContext(ctx, "company registered", "company_id", company.ID, "user_id", owner.ID)
	s.notify(ctx, notification.TypeVerification, s.verificationPayload(owner, token))
	s.publish(ctx, events.NewUserRegisteredEvent(owner.ID, company.ID))

	return &MessageResult{Message: MsgRegistered}, nil
}

func (s *Service) SignIn(ctx context.Context, input SignInInput) (*AuthResult, error) {
	input.Email = user.NormalizeEmail(input.Email)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		u      *user.User
		issued *session.Issued
		token  string
	)
	err := s.uow.Do(ctx, func(repos Repositories) error {
		var err error
		u, err = repos.Users.GetByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return internal.ErrInvalidCredentials
			}
			return err
		}
		if !u.UsesPassword() || !s.passwords.Compare(u.PasswordHash, input.Password) {
			return internal.ErrInvalidCredentials
		}
		if !u.CanAuthenticate() {
			return internal.ErrAccountDisabled
		}

		if !u.EmailVerified {
			token, err = u.IssueEmailVerificationToken(now)
			if err != nil {
				return err
			}
			return repos.Users.SetEmailVerificationToken(ctx, u.ID, token, *u.EmailVerificationExpiresAt)
		}

		issued, err = s.sessions.Create(ctx, repos.Sessions, u.ID, input.client())
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "sign in", err)
	}

	if issued == nil {
		s.notify(ctx, notification.TypeVerification, s.verificationPayload(u, token))
		return &AuthResult{
			Message:              MsgVerificationRequired,
			VerificationRequired: true,
			User:                 newUserSummary(u),
		}, nil
	}

	s.publish(ctx, events.NewSessionCreatedEvent(u.ID, issued.Session.ID, methodPassword))
	return newAuthResult(MsgSignedIn, u, issued), nil
}

func (s *Service) VerifyEmail(ctx context.Context, input VerifyEmailInput) (*AuthResult, error) {
	input.Token = strings.TrimSpace(input.Token)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		u      *user.User
		issued *session.Issued
	)
	err := s.uow.Do(ctx, func(repos Repositories) error {
		var err error
		u, err = repos.Users.GetByVerificationToken(ctx, input.Token)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrInvalidVerificationToken
			}
			return err
		}
		if !u.VerificationTokenValid(now) {
			return ErrVerificationTokenExpired
		}
		if !u.CanAuthenticate() {
			return internal.ErrAccountDisabled
		}

		consumed, err := repos.Users.ConsumeEmailVerificationToken(ctx, u.ID, input.Token, now)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidVerificationToken
		}
		u.EmailVerified = true
		u.EmailVerificationToken = nil
		u.EmailVerificationExpiresAt = nil

		issued, err = s.sessions.Create(ctx, repos.Sessions, u.ID, input.client())
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "verify email", err)
	}

	s.notify(ctx, notification.TypeWelcome, notification.Payload{
		To:             u.Email,
		Name:           u.Name,
		URL:            s.cfg.FrontendURL + "/dashboard",
		IdempotencyKey: "welcome:" + u.ID,
	})
	s.publish(ctx, events.NewEmailVerifiedEvent(u.ID))
	s.publish(ctx, events.NewSessionCreatedEvent(u.ID, issued.Session.ID, methodEmailVerification))

	return newAuthResult(MsgEmailVerified, u, issued), nil
}

func (s *Service) SignInWithGoogle(ctx context.Context, input GoogleSignInInput) (*AuthResult, error) {
	input.IDToken = strings.TrimSpace(input.IDToken)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.oauth.Verify(ctx, input.IDToken, s.cfg.GoogleClientID)
	if err != nil {
		return nil, s.fail(ctx, "google sign in", err)
	}
	email := user.NormalizeEmail(identity.Email)
	if email == "" {
		return nil, oauth.ErrMissingEmail
	}

	var (
		u      *user.User
		issued *session.Issued
	)
	err = s.uow.Do(ctx, func(repos Repositories) error {
		var err error
		u, err = repos.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			if u.UsesPassword() {
				return ErrProviderCollision
			}
			if !u.CanAuthenticate() {
				return internal.ErrAccountDisabled
			}
		case errors.Is(err, user.ErrNotFound):
			u = user.NewFederated(email, identity.Name, identity.Picture)
			if err := repos.Users.Create(ctx, u); err != nil {
				if datamodel.IsUniqueViolation(err) {
					return ErrUserExists.WithCause(err)
				}
				return err
			}
			s.logger.InfoContext(ctx, "federated user created", "user_id", u.ID)
		default:
			return err
		}

		issued, err = s.sessions.Create(ctx, repos.Sessions, u.ID, input.client())
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "google sign in", err)
	}

	s.publish(ctx, events.NewSessionCreatedEvent(u.ID, issued.Session.ID, methodGoogle))
	return newAuthResult(MsgGoogleSignedIn, u, issued), nil
}

func (s *Service) RefreshAccessToken(ctx context.Context, input RefreshInput) (*RefreshResult, error) {
	input.UserID = strings.TrimSpace(input.UserID)
	input.RefreshToken = strings.TrimSpace(input.RefreshToken)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	claims, err := s.tokens.VerifyRefreshToken(input.RefreshToken)
	if err != nil {
		return nil, s.fail(ctx, "refresh access token", err)
	}
	if claims.UserID != input.UserID {
		return nil, internal.ErrInvalidToken
	}

	var refreshed *session.Refreshed
	err = s.uow.Do(ctx, func(repos Repositories) error {
		current, err := s.sessions.MatchRefreshToken(ctx, repos.Sessions, input.UserID, input.RefreshToken)
		if err != nil {
			return err
		}
		refreshed, err = s.sessions.Refresh(ctx, repos.Sessions, current, input.client())
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "refresh access token", err)
	}

	if refreshed.Refresh != nil {
		s.logger.InfoContext(ctx, "refresh token rotated", "user_id", input.UserID, "session_id", refreshed.Session.ID)
	}
	return newRefreshResult(refreshed), nil
}

// RequestPasswordReset answers the same way whether or not the account
// exists. Federated and disabled accounts are not sent a link.
func (s *Service) RequestPasswordReset(ctx context.Context, input RequestPasswordResetInput) (*MessageResult, error) {
	input.Email = user.NormalizeEmail(input.Email)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	var (
		u     *user.User
		token string
	)
	err := s.uow.Do(ctx, func(repos Repositories) error {
		found, err := repos.Users.GetByEmail(ctx, input.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return nil
			}
			return err
		}
		if !found.UsesPassword() || !found.CanAuthenticate() {
			s.logger.InfoContext(ctx, "password reset skipped", "user_id", found.ID, "provider", found.AuthProvider)
			return nil
		}

		token, err = found.IssuePasswordResetToken(now)
		if err != nil {
			return err
		}
		if err := repos.Users.SetPasswordResetToken(ctx, found.ID, token, *found.PasswordResetExpiresAt); err != nil {
			return err
		}
		u = found
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, "request password reset", err)
	}

	if u != nil {
		s.notify(ctx, notification.TypePasswordReset, notification.Payload{
			To:             u.Email,
			Name:           u.Name,
			URL:            s.link("/reset-password", token),
			IdempotencyKey: "password_reset:" + auth.SHA256Hex(token),
		})
	}
	return &MessageResult{Message: MsgResetRequested}, nil
}

// ResetPassword replaces the password and revokes every session of the user.
func (s *Service) ResetPassword(ctx context.Context, input ResetPasswordInput) (*MessageResult, error) {
	input.Token = strings.TrimSpace(input.Token)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	passwordHash, err := s.passwords.Hash(input.NewPassword)
	if err != nil {
		return nil, s.fail(ctx, "reset password", err)
	}

	now := s.now()
	var (
		userID  string
		revoked int64
	)
	err = s.uow.Do(ctx, func(repos Repositories) error {
		u, err := repos.Users.GetByPasswordResetToken(ctx, input.Token)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return ErrInvalidResetToken
			}
			return err
		}
		if !u.ResetTokenValid(now) {
			return ErrResetTokenExpired
		}

		consumed, err := repos.Users.ConsumePasswordResetToken(ctx, u.ID, input.Token, passwordHash, now)
		if err != nil {
			return err
		}
		if !consumed {
			return ErrInvalidResetToken
		}

		revoked, err = s.sessions.DeactivateAll(ctx, repos.Sessions, u.ID)
		userID = u.ID
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "reset password", err)
	}

	s.logger.InfoContext(ctx, "password reset", "user_id", userID, "revoked_sessions", revoked)
	s.publish(ctx, events.NewPasswordResetEvent(userID, revoked))

	return &MessageResult{Message: MsgPasswordReset}, nil
}

// Logout deactivates one session. When userID is set only that user's
// sessions match.
func (s *Service) Logout(ctx context.Context, input LogoutInput, userID string) (*MessageResult, error) {
	input.SessionID = strings.TrimSpace(input.SessionID)
	if err := input.Validate(); err != nil {
		return nil, err
	}

	err := s.uow.Do(ctx, func(repos Repositories) error {
		return s.sessions.Deactivate(ctx, repos.Sessions, input.SessionID, userID)
	})
	if err != nil {
		return nil, s.fail(ctx, "logout", err)
	}
	return &MessageResult{Message: MsgLoggedOut}, nil
}

func (s *Service) LogoutAll(ctx context.Context, userID string) (*MessageResult, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, internal.NewValidationFieldError("user_id", "user_id is required", internal.ErrCodeMissingField)
	}

	var revoked int64
	err := s.uow.Do(ctx, func(repos Repositories) error {
		var err error
		revoked, err = s.sessions.DeactivateAll(ctx, repos.Sessions, userID)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "logout all", err)
	}

	s.publish(ctx, events.NewSessionsRevokedEvent(userID, revoked, "logout_all"))
	return &MessageResult{Message: MsgLoggedOutAll}, nil
}

func (s *Service) verificationPayload(u *user.User, token string) notification.Payload {
	return notification.Payload{
		To:             u.Email,
		Name:           u.Name,
		URL:            s.link("/verify-email", token),
		IdempotencyKey: "verification:" + auth.SHA256Hex(token),
	}
}

func (s *Service) link(path, token string) string {
	return s.cfg.FrontendURL + path + "?token=" + url.QueryEscape(token)
}

// notify runs after commit. A failure here never undoes the workflow.
func (s *Service) notify(ctx context.Context, typ notification.Type, payload notification.Payload) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := internal.WithTimeout(context.WithoutCancel(ctx), s.cfg.NotifyTimeout)
	defer cancel()

	if err := s.notifier.SendEmail(ctx, typ, payload); err != nil {
		s.logger.ErrorContext(ctx, "failed to dispatch notification",
			"type", typ,
			"idempotency_key", payload.IdempotencyKey,
			"error", err)
	}
}

func (s *Service) publish(ctx context.Context, event events.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

// fail passes known errors through and hides everything else behind a
// generic internal error.
func (s *Service) fail(ctx context.Context, op string, err error) error {
	if internal.IsKnown(err) {
		return err
	}
	s.logger.ErrorContext(ctx, "identity workflow failed", "op", op, "error", err)
	return internal.NewInternalError("An unexpected error occurred", err)
}
