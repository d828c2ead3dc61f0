package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeUserRegistered  = "identity.user_registered"
	EventTypeEmailVerified   = "identity.email_verified"
	EventTypeSessionCreated  = "identity.session_created"
	EventTypePasswordReset   = "identity.password_reset"
	EventTypeSessionsRevoked = "identity.sessions_revoked"
)

var IdentityEventTypes = []string{
	EventTypeUserRegistered,
	EventTypeEmailVerified,
	EventTypeSessionCreated,
	EventTypePasswordReset,
	EventTypeSessionsRevoked,
}

type IdentityEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

func newIdentityEvent(eventType, userID string, data map[string]interface{}) *IdentityEvent {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["user_id"] = userID
	return &IdentityEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Data:      data,
		},
		UserID: userID,
	}
}

func NewUserRegisteredEvent(userID, companyID string) *IdentityEvent {
	return newIdentityEvent(EventTypeUserRegistered, userID, map[string]interface{}{
		"company_id": companyID,
	})
}

func NewEmailVerifiedEvent(userID string) *IdentityEvent {
	return newIdentityEvent(EventTypeEmailVerified, userID, nil)
}

// NewSessionCreatedEvent records how the session was obtained: password,
// email_verification or google.
func NewSessionCreatedEvent(userID, sessionID, method string) *IdentityEvent {
	return newIdentityEvent(EventTypeSessionCreated, userID, map[string]interface{}{
		"session_id": sessionID,
		"method":     method,
	})
}

func NewPasswordResetEvent(userID string, revokedSessions int64) *IdentityEvent {
	return newIdentityEvent(EventTypePasswordReset, userID, map[string]interface{}{
		"revoked_sessions": revokedSessions,
	})
}

func NewSessionsRevokedEvent(userID string, count int64, reason string) *IdentityEvent {
	return newIdentityEvent(EventTypeSessionsRevoked, userID, map[string]interface{}{
		"count":  count,
		"reason": reason,
	})
}

// RegisterAuditLog writes every identity event to the audit logger.
func RegisterAuditLog(bus *EventBus, audit *slog.Logger) {
	handler := func(ctx context.Context, event Event) error {
		audit.InfoContext(ctx, "audit",
			"event_type", event.EventType(),
			"event_id", event.EventID(),
			"occurred_at", event.OccurredAt(),
			"data", event.Payload())
		return nil
	}
	for _, eventType := range IdentityEventTypes {
		bus.Subscribe(eventType, handler)
	}
}
