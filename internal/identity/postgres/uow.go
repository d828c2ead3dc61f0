package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/frahmantamala/identity-service/internal"
	"github.com/frahmantamala/identity-service/internal/core/datamodel"
	"github.com/frahmantamala/identity-service/internal/identity"
	sessionPostgres "github.com/frahmantamala/identity-service/internal/session/postgres"
	userPostgres "github.com/frahmantamala/identity-service/internal/user/postgres"
)

// conflicts maps unique indexes to the conflict the workflows report for them.
var conflicts = map[string]*internal.AppError{
	"idx_companies_email":      identity.ErrCompanyExists,
	"idx_companies_name_email": identity.ErrCompanyExists,
	"idx_users_email":          identity.ErrUserExists,
}

type UnitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) identity.UnitOfWork {
	return &UnitOfWork{db: db}
}

// Do runs fn inside a gorm transaction with repositories bound to it. A
// unique violation fn did not handle itself, including one raised on commit,
// is reported as the conflict of its index, or ErrDuplicate when the index
// is unknown.
func (u *UnitOfWork) Do(ctx context.Context, fn func(repos identity.Repositories) error) error {
	err := u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(identity.Repositories{
			Companies: userPostgres.NewCompanyRepository(tx),
			Users:     userPostgres.NewUserRepository(tx),
			Sessions:  sessionPostgres.NewSessionRepository(tx),
		})
	})
	if err == nil {
		return nil
	}
	if _, ok := internal.IsAppError(err); ok || !datamodel.IsUniqueViolation(err) {
		return err
	}
	if conflict, ok := conflicts[datamodel.UniqueConstraint(err)]; ok {
		return conflict.WithCause(err)
	}
	return internal.ErrDuplicate.WithCause(err)
}
