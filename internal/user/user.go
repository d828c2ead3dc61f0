package user

import (
	"context"
	"strings"
	"time"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/auth"
	companyDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/company"
	userDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/user"
)

type AuthProvider string

const (
	ProviderPassword  AuthProvider = "password"
	ProviderFederated AuthProvider = "federated"
)

const (
	RoleOwner  = "owner"
	RoleMember = "member"

	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = 30 * time.Minute

	defaultFederatedName = "Unnamed User"
)

var (
	ErrNotFound        = internal.NewNotFoundError("User not found", internal.ErrCodeUserNotFound)
	ErrCompanyNotFound = internal.NewNotFoundError("Company not found", internal.ErrCodeCompanyNotFound)
)

type User struct {
	ID                         string       `json:"id"`
	CompanyID                  *string      `json:"company_id,omitempty"`
	Name                       string       `json:"name"`
	Email                      string       `json:"email"`
	PasswordHash               string       `json:"-"`
	ProfileImageURL            *string      `json:"profile_image_url,omitempty"`
	EmailVerified              bool         `json:"email_verified"`
	AuthProvider               AuthProvider `json:"auth_provider"`
	EmailVerificationToken     *string      `json:"-"`
	EmailVerificationExpiresAt *time.Time   `json:"-"`
	PasswordResetToken         *string      `json:"-"`
	PasswordResetExpiresAt     *time.Time   `json:"-"`
	Role                       string       `json:"role"`
	Department                 *string      `json:"department,omitempty"`
	IsActive                   bool         `json:"is_active"`
	IsSuspended                bool         `json:"is_suspended"`
	CreatedAt                  time.Time    `json:"created_at"`
	UpdatedAt                  time.Time    `json:"updated_at"`
}

type Company struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RepositoryAPI is the user half of the credential store. Implementations
// are bound to a single unit of work.
type RepositoryAPI interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByPasswordResetToken(ctx context.Context, token string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	SetEmailVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	SetPasswordResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error
	// ConsumeEmailVerificationToken marks the email verified and clears the
	// token only if the token is still stored and unexpired at now.
	ConsumeEmailVerificationToken(ctx context.Context, userID, token string, now time.Time) (bool, error)
	// ConsumePasswordResetToken swaps the password hash and clears the token
	// under the same condition.
	ConsumePasswordResetToken(ctx context.Context, userID, token, passwordHash string, now time.Time) (bool, error)
}

type CompanyRepositoryAPI interface {
	Create(ctx context.Context, c *Company) error
	GetByID(ctx context.Context, id string) (*Company, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// NormalizeEmail trims and lowercases an address before any lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NewOwner builds the administrator created together with a company.
func NewOwner(companyID, name, email, passwordHash string) *User {
	return &User{
		CompanyID:    &companyID,
		Name:         strings.TrimSpace(name),
		Email:        NormalizeEmail(email),
		PasswordHash: passwordHash,
		AuthProvider: ProviderPassword,
		Role:         RoleOwner,
		IsActive:     true,
	}
}

// NewFederated builds a user whose identity was asserted by a third party.
// The provider already verified the address.
func NewFederated(email, name, picture string) *User {
	u := &User{
		Name:          strings.TrimSpace(name),
		Email:         NormalizeEmail(email),
		EmailVerified: true,
		AuthProvider:  ProviderFederated,
		Role:          RoleMember,
		IsActive:      true,
	}
	if u.Name == "" {
		u.Name = defaultFederatedName
	}
	if picture != "" {
		u.ProfileImageURL = &picture
	}
	return u
}

// IssueEmailVerificationToken replaces any previous verification token.
func (u *User) IssueEmailVerificationToken(now time.Time) (string, error) {
	token, err := auth.GenerateRandomToken()
	if err != nil {
		return "", err
	}
	expiresAt := now.Add(EmailVerificationTTL)
	u.EmailVerificationToken = &token
	u.EmailVerificationExpiresAt = &expiresAt
	return token, nil
}

func (u *User) IssuePasswordResetToken(now time.Time) (string, error) {
	token, err := auth.GenerateRandomToken()
	if err != nil {
		return "", err
	}
	expiresAt := now.Add(PasswordResetTTL)
	u.PasswordResetToken = &token
	u.PasswordResetExpiresAt = &expiresAt
	return token, nil
}

func (u *User) VerificationTokenValid(now time.Time) bool {
	return u.EmailVerificationToken != nil && u.EmailVerificationExpiresAt != nil && now.Before(*u.EmailVerificationExpiresAt)
}

func (u *User) ResetTokenValid(now time.Time) bool {
	return u.PasswordResetToken != nil && u.PasswordResetExpiresAt != nil && now.Before(*u.PasswordResetExpiresAt)
}

func (u *User) UsesPassword() bool {
	return u.AuthProvider == ProviderPassword
}

// CanAuthenticate is false for deactivated or suspended accounts.
func (u *User) CanAuthenticate() bool {
	return u.IsActive && !u.IsSuspended
}

func ToDataModel(u *User) *userDatamodel.User {
	dm := &userDatamodel.User{
		ID:                         u.ID,
		CompanyID:                  u.CompanyID,
		Name:                       u.Name,
		Email:                      u.Email,
		ProfileImageURL:            u.ProfileImageURL,
		EmailVerified:              u.EmailVerified,
		AuthProvider:               string(u.AuthProvider),
		EmailVerificationToken:     u.EmailVerificationToken,
		EmailVerificationExpiresAt: u.EmailVerificationExpiresAt,
		PasswordResetToken:         u.PasswordResetToken,
		PasswordResetExpiresAt:     u.PasswordResetExpiresAt,
		Role:                       u.Role,
		Department:                 u.Department,
		IsActive:                   u.IsActive,
		IsSuspended:                u.IsSuspended,
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
	if u.PasswordHash != "" {
		hash := u.PasswordHash
		dm.PasswordHash = &hash
	}
	return dm
}

func FromDataModel(u *userDatamodel.User) *User {
	domainUser := &User{
		ID:                         u.ID,
		CompanyID:                  u.CompanyID,
		Name:                       u.Name,
		Email:                      u.Email,
		ProfileImageURL:            u.ProfileImageURL,
		EmailVerified:              u.EmailVerified,
		AuthProvider:               AuthProvider(u.AuthProvider),
		EmailVerificationToken:     u.EmailVerificationToken,
		EmailVerificationExpiresAt: u.EmailVerificationExpiresAt,
		PasswordResetToken:         u.PasswordResetToken,
		PasswordResetExpiresAt:     u.PasswordResetExpiresAt,
		Role:                       u.Role,
		Department:                 u.Department,
		IsActive:                   u.IsActive,
		IsSuspended:                u.IsSuspended,
		CreatedAt:                  u.CreatedAt,
		UpdatedAt:                  u.UpdatedAt,
	}
	if u.PasswordHash != nil {
		domainUser.PasswordHash = *u.PasswordHash
	}
	return domainUser
}

func CompanyToDataModel(c *Company) *companyDatamodel.Company {
	return &companyDatamodel.Company{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func CompanyFromDataModel(c *companyDatamodel.Company) *Company {
	return &Company{
		ID:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		Phone:     c.Phone,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
