package postgres

import (
	"context"

	"github.com/frahmantamala/identity-service/internal/core/datamodel"
	companyDatamodel "github.com/frahmantamala/identity-service/internal/core/datamodel/company"
	"github.com/frahmantamala/identity-service/internal/user"
	"gorm.io/gorm"
)

type CompanyRepository struct {
	db *gorm.DB
}

func NewCompanyRepository(db *gorm.DB) user.CompanyRepositoryAPI {
	return &CompanyRepository{db: db}
}

func (r *CompanyRepository) Create(ctx context.Context, c *user.Company) error {
	dm := user.CompanyToDataModel(c)
	if err := r.db.WithContext(ctx).Create(dm).Error; err != nil {
		return err
	}
	c.ID = dm.ID
	c.CreatedAt = dm.CreatedAt
	c.UpdatedAt = dm.UpdatedAt
	return nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*user.Company, error) {
	var dm companyDatamodel.Company
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dm).Error; err != nil {
		if datamodel.IsNotFound(err) {
			return nil, user.ErrCompanyNotFound
		}
		return nil, err
	}
	return user.CompanyFromDataModel(&dm), nil
}

func (r *CompanyRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&companyDatamodel.Company{}).
		Where("email = ?", user.NormalizeEmail(email)).
		Count(&count).Error
	return count > 0, err
}
