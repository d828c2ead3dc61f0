package identity

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/frahmantamala/identity-service/internal"
	appvalidation "github.com/frahmantamala/identity-service/internal/core/common/validation"
	"github.com/frahmantamala/identity-service/internal/user"
)

const (
	minPasswordLength = 8
	// bcrypt ignores input past 72 bytes.
	maxPasswordLength = 72
)

type RegisterInput struct {
	CompanyEmail string `json:"company_email"`
	CompanyName  string `json:"company_name"`
	AdminEmail   string `json:"admin_email"`
	Password     string `json:"password"`
	AdminName    string `json:"admin_name"`
}

type SignInInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type VerifyEmailInput struct {
	Token     string `json:"token"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type GoogleSignInInput struct {
	IDToken   string `json:"id_token"`
	IPAddress string `json:"-"`
	UserAgent string `json:"-"`
}

type RefreshInput struct {
	UserID       string `json:"user_id"`
	RefreshToken string `json:"refresh_token"`
	IPAddress    string `json:"-"`
	UserAgent    string `json:"-"`
}

type RequestPasswordResetInput struct {
	Email string `json:"email"`
}

type ResetPasswordInput struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

type LogoutInput struct {
	SessionID string `json:"session_id"`
}

func (in *RegisterInput) normalize() {
	in.CompanyEmail = user.NormalizeEmail(in.CompanyEmail)
	in.AdminEmail = user.NormalizeEmail(in.AdminEmail)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.AdminName = strings.TrimSpace(in.AdminName)
}

func (in RegisterInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.CompanyEmail, validation.Required, is.Email),
		validation.Field(&in.CompanyName, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.AdminEmail, validation.Required, is.Email),
		validation.Field(&in.Password, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
		validation.Field(&in.AdminName, validation.Required, validation.Length(2, 255)),
	))
}

func (in SignInInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required),
		validation.Field(&in.Password, validation.Required),
	))
}

func (in VerifyEmailInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
	))
}

func (in GoogleSignInInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.IDToken, validation.Required),
	))
}

func (in RefreshInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.UserID, validation.Required),
		validation.Field(&in.RefreshToken, validation.Required),
	))
}

func (in RequestPasswordResetInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.Email),
	))
}

func (in ResetPasswordInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.Token, validation.Required),
		validation.Field(&in.NewPassword, validation.Required, validation.Length(minPasswordLength, maxPasswordLength)),
	))
}

func (in LogoutInput) Validate() error {
	return appvalidation.Check(validation.ValidateStruct(&in,
		validation.Field(&in.SessionID, validation.Required, is.UUID),
	))
}

func (in SignInInput) client() internal.ClientInfo {
	return internal.ClientInfo{IPAddress: in.IPAddress, UserAgent: in.UserAgent}
}

func (in VerifyEmailInput) client() internal.ClientInfo {
	return internal.ClientInfo{IPAddress: in.IPAddress, UserAgent: in.UserAgent}
}

func (in GoogleSignInInput) client() internal.ClientInfo {
	return internal.ClientInfo{IPAddress: in.IPAddress, UserAgent: in.UserAgent}
}

func (in RefreshInput) client() internal.ClientInfo {
	return internal.ClientInfo{IPAddress: in.IPAddress, UserAgent: in.UserAgent}
}
