package postgres

import (
	"context"
	"errors"

	sessionDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/session"
	"github.com/frahmantamala/identity-service/internal/session"
	"gorm.io/gorm"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) session.RepositoryAPI {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	dm := session.ToDataModel(s)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	s.ID = dm.ID
	s.CreatedAt = dm.CreatedAt
	s.UpdatedAt = dm.UpdatedAt
	return nil
}

func (r *SessionRepository) ListActiveByUser(ctx context.Context, userID string) ([]*session.Session, error) {
	var rows []*sessionDatamodel.Session
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	sessions := make([]*session.Session, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, session.FromDataModel(row))
	}
	return sessions, nil
}

func (r *SessionRepository) GetActive(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	var row sessionDatamodel.Session
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND active = ?", sessionID, userID, true).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, session.ErrNoActiveSession
	}
	if err != nil {
		return nil, err
	}
	return session.FromDataModel(&row), nil
}

func (r *SessionRepository) UpdateTokens(ctx context.Context, s *session.Session) error {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("id = ? AND active = ?", s.ID, true).
		Updates(map[string]interface{}{
			"access_token_hash":        s.AccessTokenHash,
			"access_token_expires_at":  s.AccessTokenExpiresAt,
			"refresh_token_hash":       s.RefreshTokenHash,
			"refresh_token_expires_at": s.RefreshTokenExpiresAt,
			"user_agent":               s.UserAgent,
			"ip_address":               s.IPAddress,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return session.ErrNoActiveSession
	}
	return nil
}

func (r *SessionRepository) ClearCurrent(ctx context.Context, userID string, userAgent *string) error {
	q := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("user_id = ? AND is_current = ?", userID, true)
	if userAgent == nil {
		q = q.Where("user_agent IS NULL")
	} else {
		q = q.Where("user_agent = ?", *userAgent)
	}
	return q.Update("is_current", false).Error
}

func (r *SessionRepository) Deactivate(ctx context.Context, sessionID, userID string) (int64, error) {
	q := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("id = ?", sessionID)
	if userID != "" {
		q = q.Where("user_id = ?", userID)
	}
	res := q.Updates(map[string]interface{}{"active": false, "is_current": false})
	return res.RowsAffected, res.Error
}

func (r *SessionRepository) DeactivateAllForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&sessionDatamodel.Session{}).
		Where("user_id = ? AND active = ?", userID, true).
		Updates(map[string]interface{}{"active": false, "is_current": false})
	return res.RowsAffected, res.Error
}
