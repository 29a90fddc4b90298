package cards

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

// Repository handles card mirror persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, card *models.Card) error
	Update(ctx context.Context, card *models.Card) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	FindByGatewayID(ctx context.Context, gatewayID string) (*models.Card, error)
	// FindOwned returns the card only when it belongs to a customer of userID.
	FindOwned(ctx context.Context, userID, gatewayID string) (*models.Card, error)
	List(ctx context.Context, query ListQuery) ([]models.Card, *pagination.Cursor, error)
}

// ListQuery filters card listings by the owning user.
type ListQuery struct {
	UserID     string
	ActiveOnly bool
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

func (r *repository) Create(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

func (r *repository) Update(ctx context.Context, card *models.Card) error {
	return r.db.WithContext(ctx).Save(card).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	return r.first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Card, error) {
	return r.first(r.db.WithContext(ctx).Where("gateway_card_id = ?", gatewayID))
}

func (r *repository) FindOwned(ctx context.Context, userID, gatewayID string) (*models.Card, error) {
	return r.first(r.db.WithContext(ctx).
		Where("gateway_card_id = ?", gatewayID).
		Where("customer_id IN (?)", r.customerIDs(ctx, userID)))
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Card, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.Card{})
	if query.UserID != "" {
		q = q.Where("customer_id IN (?)", r.customerIDs(ctx, query.UserID))
	}
	if query.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	q, limit, err := pagination.Apply(q, query.Pagination)
	if err != nil {
		return nil, nil, err
	}

	var rows []models.Card
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(c models.Card) pagination.Cursor {
		return pagination.Cursor{CreatedAt: c.CreatedAt, ID: c.ID}
	})
	return rows, next, nil
}

func (r *repository) customerIDs(ctx context.Context, userID string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Customer{}).Select("id").Where("user_id = ?", userID)
}

func (r *repository) first(q *gorm.DB) (*models.Card, error) {
	var card models.Card
	if err := q.First(&card).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}
