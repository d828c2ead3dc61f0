package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
)

// Issued is a freshly created session together with the raw tokens, which
// are handed to the client once and never stored.
type Issued struct {
	Session *Session
	Tokens  auth.TokenPair
}

// Refreshed carries a new access token and, when the refresh token was
// rotated, the new refresh token.
type Refreshed struct {
	Session *Session
	Access  auth.IssuedToken
	Refresh *auth.IssuedToken
}

type Manager struct {
	tokens auth.TokenIssuer
	hasher auth.Hasher
	logger *slog.Logger
	now    func() time.Time
}

func NewManager(tokens auth.TokenIssuer, hasher auth.Hasher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		tokens: tokens,
		hasher: hasher,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Create issues a token pair for userID and stores a new current session.
func (m *Manager) Create(ctx context.Context, repo RepositoryAPI, userID string, client internal.ClientInfo) (*Issued, error) {
	sessionID := uuid.NewString()
	pair, err := m.tokens.IssueTokenPair(userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("issue token pair: %w", err)
	}

	accessHash, err := m.hasher.Hash(pair.Access.Token)
	if err != nil {
		return nil, err
	}
	refreshHash, err := m.hasher.Hash(pair.Refresh.Token)
	if err != nil {
		return nil, err
	}

	userAgent := optional(client.UserAgent)
	if err := repo.ClearCurrent(ctx, userID, userAgent); err != nil {
		return nil, fmt.Errorf("clear current session: %w", err)
	}

	s := &Session{
		ID:                    sessionID,
		UserID:                userID,
		AccessTokenHash:       accessHash,
		AccessTokenExpiresAt:  pair.Access.ExpiresAt.UTC(),
		RefreshTokenHash:      refreshHash,
		RefreshTokenExpiresAt: pair.Refresh.ExpiresAt.UTC(),
		Active:                true,
		IsCurrent:             true,
		UserAgent:             userAgent,
		IPAddress:             optional(client.IPAddress),
	}
	if err := repo.Create(ctx, s); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Issued{Session: s, Tokens: pair}, nil
}

// MatchRefreshToken finds the active session of userID whose stored refresh
// hash matches refreshToken.
func (m *Manager) MatchRefreshToken(ctx context.Context, repo RepositoryAPI, userID, refreshToken string) (*Session, error) {
	sessions, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil, ErrNoActiveSession
	}

	for _, s := range sessions {
		if m.hasher.Compare(s.RefreshTokenHash, refreshToken) {
			return s, nil
		}
	}
	return nil, ErrRefreshMismatch
}

// Refresh mints a new access token for s. The refresh token is rotated only
// when less than RotationWindow of its validity remains.
func (m *Manager) Refresh(ctx context.Context, repo RepositoryAPI, s *Session, client internal.ClientInfo) (*Refreshed, error) {
	now := m.now()
	if s.Expired(now) {
		return nil, ErrSessionExpired
	}

	access, err := m.tokens.IssueAccessToken(s.UserID, s.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}
	accessHash, err := m.hasher.Hash(access.Token)
	if err != nil {
		return nil, err
	}
	s.AccessTokenHash = accessHash
	s.AccessTokenExpiresAt = access.ExpiresAt.UTC()

	result := &Refreshed{Session: s, Access: access}

	if s.RefreshTokenExpiresAt.Sub(now) < RotationWindow {
		refresh, err := m.tokens.IssueRefreshToken(s.UserID, s.ID)
		if err != nil {
			return nil, fmt.Errorf("issue refresh token: %w", err)
		}
		refreshHash, err := m.hasher.Hash(refresh.Token)
		if err != nil {
			return nil, err
		}
		s.RefreshTokenHash = refreshHash
		s.RefreshTokenExpiresAt = refresh.ExpiresAt.UTC()
		result.Refresh = &refresh
	}

	if client.IPAddress != "" {
		s.IPAddress = optional(client.IPAddress)
	}
	if client.UserAgent != "" {
		s.UserAgent = optional(client.UserAgent)
	}

	if err := repo.UpdateTokens(ctx, s); err != nil {
		return nil, err
	}
	return result, nil
}

// Validate backs the access token check: the session must still be active
// and its refresh lifetime not yet over.
func (m *Manager) Validate(ctx context.Context, repo RepositoryAPI, sessionID, userID string) error {
	s, err := repo.GetActive(ctx, sessionID, userID)
	if err != nil {
		return err
	}
	if s.Expired(m.now()) {
		return ErrSessionExpired
	}
	return nil
}

// Deactivate is idempotent: deactivating an unknown or inactive session is
// not an error.
func (m *Manager) Deactivate(ctx context.Context, repo RepositoryAPI, sessionID, userID string) error {
	affected, err := repo.Deactivate(ctx, sessionID, userID)
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	m.logger.Debug("session deactivated", "session_id", sessionID, "affected", affected)
	return nil
}

func (m *Manager) DeactivateAll(ctx context.Context, repo RepositoryAPI, userID string) (int64, error) {
	affected, err := repo.DeactivateAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("deactivate sessions: %w", err)
	}
	return affected, nil
}

func (m *Manager) FindActive(ctx context.Context, repo RepositoryAPI, userID string) ([]*Session, error) {
	sessions, err := repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	return sessions, nil
}

func (m *Manager) ExpireStale(ctx context.Context, sweeper Sweeper) (int64, error) {
	return sweeper.ExpireStale(ctx, m.now())
}

// RunSweeper expires stale sessions every interval until ctx is done.
func (m *Manager) RunSweeper(ctx context.Context, sweeper Sweeper, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.logger.Info("session sweeper started", "interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("session sweeper stopped")
			return
		case <-ticker.C:
			expired, err := m.ExpireStale(ctx, sweeper)
			if err != nil {
				m.logger.Error("session sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				m.logger.Info("expired stale sessions", "count", expired)
			}
		}
	}
}
