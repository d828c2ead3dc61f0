package user

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                         string     `gorm:"column:id;primaryKey"`
	CompanyID                  *string    `gorm:"column:company_id;index"`
	Name                       string     `gorm:"column:name;not null"`
	Email                      string     `gorm:"column:email;uniqueIndex;not null"`
	PasswordHash               *string    `gorm:"column:password_hash"`
	ProfileImageURL            *string    `gorm:"column:profile_image_url"`
	EmailVerified              bool       `gorm:"column:email_verified;not null"`
	AuthProvider               string     `gorm:"column:auth_provider;not null"`
	EmailVerificationToken     *string    `gorm:"column:email_verification_token;index"`
	EmailVerificationExpiresAt *time.Time `gorm:"column:email_verification_expires_at"`
	PasswordResetToken         *string    `gorm:"column:password_reset_token;index"`
	PasswordResetExpiresAt     *time.Time `gorm:"column:password_reset_expires_at"`
	Role                       string     `gorm:"column:role;not null"`
	Department                 *string    `gorm:"column:department"`
	IsActive                   bool       `gorm:"column:is_active;not null"`
	IsSuspended                bool       `gorm:"column:is_suspended;not null"`
	CreatedAt                  time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
