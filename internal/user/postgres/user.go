package postgres

import (
	"context"
	"time"

	"github.com/frahmantamala/identity-service/internal/core/datamodel"
	userDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/user"
	"github.com/frahmantamala/identity-service/internal/user"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) error {
	dm := user.ToDataModel(u)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	u.ID = dm.ID
	u.CreatedAt = dm.CreatedAt
	u.UpdatedAt = dm.UpdatedAt
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.first(ctx, "email = ?", user.NormalizeEmail(email))
}

func (r *UserRepository) GetByVerificationToken(ctx context.Context, token string) (*user.User, error) {
	return r.first(ctx, "email_verification_token = ?", token)
}

func (r *UserRepository) GetByPasswordResetToken(ctx context.Context, token string) (*user.User, error) {
	return r.first(ctx, "password_reset_token = ?", token)
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("email = ?", user.NormalizeEmail(email)).
		Count(&count).Error
	return count > 0, err
}

func (r *UserRepository) SetEmailVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.update(ctx, userID, map[string]interface{}{
		"email_verification_token":      token,
		"email_verification_expires_at": expiresAt,
	})
}

func (r *UserRepository) SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	return r.update(ctx, userID, map[string]interface{}{
		"password_reset_token":      token,
		"password_reset_expires_at": expiresAt,
	})
}

func (r *UserRepository) ConsumeEmailVerificationToken(ctx context.Context, userID, token string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND email_verification_token = ? AND email_verification_expires_at > ?", userID, token, now).
		Updates(map[string]interface{}{
			"email_verified":                true,
			"email_verification_token":      nil,
			"email_verification_expires_at": nil,
			"updated_at":                    now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) ConsumePasswordResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ? AND password_reset_token = ? AND password_reset_expires_at > ?", userID, token, now).
		Updates(map[string]interface{}{
			"password_hash":             passwordHash,
			"password_reset_token":      nil,
			"password_reset_expires_at": nil,
			"updated_at":                now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *UserRepository) first(ctx context.Context, query string, args ...interface{}) (*user.User, error) {
	var dm userDatamodel.User
	err := r.db.WithContext(ctx).Where(query, args...).First(&dm).Error
	if err != nil {
		if datamodel.IsNotFound(err) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	return user.FromDataModel(&dm), nil
}

func (r *UserRepository) update(ctx context.Context, userID string, values map[string]interface{}) error {
	res := r.db.WithContext(ctx).
		Model(&userDatamodel.User{}).
		Where("id = ?", userID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return user.ErrNotFound
	}
	return nil
}
