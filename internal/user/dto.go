package user

import (
	"time"

	"github.com/frahmantamala/identity-service/internal/session"
)

type Profile struct {
	User    *User
	Company *Company
}

type ProfileResponse struct {
	User    *User    `json:"user"`
	Company *Company `json:"company,omitempty"`
}

type SessionResponse struct {
	ID                    string    `json:"id"`
	IsCurrent             bool      `json:"is_current"`
	UserAgent             *string   `json:"user_agent,omitempty"`
	IPAddress             *string   `json:"ip_address,omitempty"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	CreatedAt             time.Time `json:"created_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

func NewSessionListResponse(sessions []*session.Session) SessionListResponse {
	resp := SessionListResponse{Sessions: make([]SessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:                    s.ID,
			IsCurrent:             s.IsCurrent,
			UserAgent:             s.UserAgent,
			IPAddress:             s.IPAddress,
			AccessTokenExpiresAt:  s.AccessTokenExpiresAt,
			RefreshTokenExpiresAt: s.RefreshTokenExpiresAt,
			CreatedAt:             s.CreatedAt,
		})
	}
	return resp
}
