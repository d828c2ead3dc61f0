package user

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/session"
)

type ActiveSessionFinder interface {
	FindActive(ctx context.Context, repo session.RepositoryAPI, userID string) ([]*session.Session, error)
}

// Service serves read-only views of the signed-in user.
type Service struct {
	users       RepositoryAPI
	companies   CompanyRepositoryAPI
	sessionRepo session.RepositoryAPI
	sessions    ActiveSessionFinder
	logger      *slog.Logger
}

func NewService(users RepositoryAPI, companies CompanyRepositoryAPI, sessionRepo session.RepositoryAPI, sessions ActiveSessionFinder, logger *slog.Logger) *Service {
	return &Service{
		users:       users,
		companies:   companies,
		sessionRepo: sessionRepo,
		sessions:    sessions,
		logger:      logger,
	}
}

func (s *Service) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, s.mapError("get user", userID, err)
	}

	profile := &Profile{User: u}
	if u.CompanyID != nil {
		company, err := s.companies.GetByID(ctx, *u.CompanyID)
		if err != nil {
			return nil, s.mapError("get company", userID, err)
		}
		profile.Company = company
	}
	return profile, nil
}

func (s *Service) ListActiveSessions(ctx context.Context, userID string) ([]*session.Session, error) {
	sessions, err := s.sessions.FindActive(ctx, s.sessionRepo, userID)
	if err != nil {
		return nil, s.mapError("list sessions", userID, err)
	}
	return sessions, nil
}

func (s *Service) mapError(op, userID string, err error) error {
	if internal.IsKnown(err) {
		return err
	}
	s.logger.Error("user query failed", "op", op, "user_id", userID, "error", err)
	return internal.NewInternalError("An unexpected error occurred", err)
}
