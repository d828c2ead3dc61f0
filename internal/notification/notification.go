package notification

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	appvalidation "github.com/frahmantamala/identity-service/internal/core/common/validation"
)

type Type string

const (
	TypeVerification  Type = "verification"
	TypePasswordReset Type = "password_reset"
	TypeWelcome       Type = "welcome"
	TypeCustom        Type = "custom"
)

// Payload is the data needed to render one email.
type Payload struct {
	To             string `json:"to"`
	Name           string `json:"name,omitempty"`
	URL            string `json:"url,omitempty"`
	Subject        string `json:"subject,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// Job is the unit stored on the queue.
type Job struct {
	ID         string    `json:"id"`
	Type       Type      `json:"type"`
	Payload    Payload   `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Notifier is what the identity workflows depend on.
type Notifier interface {
	SendEmail(ctx context.Context, typ Type, payload Payload) error
}

func (t Type) Valid() bool {
	switch t {
	case TypeVerification, TypePasswordReset, TypeWelcome, TypeCustom:
		return true
	}
	return false
}

func (t Type) Subject(p Payload) string {
	switch t {
	case TypeVerification:
		return "Verify Your Account"
	case TypePasswordReset:
		return "Reset Your Password"
	case TypeWelcome:
		return "Welcome"
	}
	if p.Subject != "" {
		return p.Subject
	}
	return "Notification"
}

func (p Payload) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&p,
		validation.Field(&p.To, validation.Required, is.Email),
	))
}
