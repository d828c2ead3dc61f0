package session

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Session stores hashes of the issued tokens, never the tokens themselves.
type Session struct {
	ID                    string    `gorm:"column:id;primaryKey"`
	UserID                string    `gorm:"column:user_id;not null;index"`
	AccessTokenHash       string    `gorm:"column:access_token_hash;not null"`
	AccessTokenExpiresAt  time.Time `gorm:"column:access_token_expires_at;not null"`
	RefreshTokenHash      string    `gorm:"column:refresh_token_hash;not null;index"`
	RefreshTokenExpiresAt time.Time `gorm:"column:refresh_token_expires_at;not null"`
	Active                bool      `gorm:"column:active;not null"`
	IsExpired             bool      `gorm:"column:is_expired;not null"`
	IsCurrent             bool      `gorm:"column:is_current;not null"`
	UserAgent             *string   `gorm:"column:user_agent"`
	IPAddress             *string   `gorm:"column:ip_address"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
