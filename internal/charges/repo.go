package charges

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

// Repository handles charge mirror persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, charge *models.Charge) error
	Update(ctx context.Context, charge *models.Charge) error
	FindByGatewayID(ctx context.Context, gatewayID string) (*models.Charge, error)
	List(ctx context.Context, query ListQuery) ([]models.Charge, *pagination.Cursor, error)
}

type ListQuery struct {
	UserID     string
	Pagination pagination.Params
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, charge *models.Charge) error {
	return r.db.WithContext(ctx).Create(charge).Error
}

func (r *repository) Update(ctx context.Context, charge *models.Charge) error {
	return r.db.WithContext(ctx).Save(charge).Error
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Charge, error) {
	var charge models.Charge
	if err := r.db.WithContext(ctx).Where("gateway_charge_id = ?", gatewayID).First(&charge).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &charge, nil
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Charge, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.Charge{})
	if query.UserID != "" {
		q = q.Where("user_id = ?", query.UserID)
	}
	q, limit, err := pagination.Apply(q, query.Pagination)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.Charge
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(c models.Charge) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return rows, next, nil
}
