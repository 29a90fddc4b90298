package plans

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

// GatewayIDPrefix marks remote plan ids; anything else is treated as a code.
const GatewayIDPrefix = "pln_"

// Repository handles plan mirror persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, plan *models.Plan) error
	Update(ctx context.Context, plan *models.Plan) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	FindByCode(ctx context.Context, code string) (*models.Plan, error)
	// FindByRef resolves either a pln_ gateway id or a plan code.
	FindByRef(ctx context.Context, ref string) (*models.Plan, error)
	List(ctx context.Context, query ListQuery) ([]models.Plan, *pagination.Cursor, error)
	// Recount stores the number of active subscriptions on the plan and returns it.
	Recount(ctx context.Context, planID uuid.UUID) (int64, error)
	// ActiveIDs lists the ids of plans that still accept subscriptions.
	ActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type ListQuery struct {
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

func (r *repository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

// Update saves every column except total_subscriptions, which only Recount writes.
func (r *repository) Update(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Omit("total_subscriptions").Save(plan).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	return first(r.db.WithContext(ctx).Where("id = ?", id))
}

func (r *repository) FindByCode(ctx context.Context, code string) (*models.Plan, error) {
	return first(r.db.WithContext(ctx).Where("code = ?", NormalizeCode(code)))
}

func (r *repository) FindByRef(ctx context.Context, ref string) (*models.Plan, error) {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, GatewayIDPrefix) {
		return first(r.db.WithContext(ctx).Where("gateway_plan_id = ?", ref))
	}
	return r.FindByCode(ctx, ref)
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Plan, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.Plan{})
	if query.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	q, limit, err := pagination.Apply(q, query.Pagination)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.Plan
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(p models.Plan) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})
	return rows, next, nil
}

func (r *repository) Recount(ctx context.Context, planID uuid.UUID) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Subscription{}).
			Where("plan_id = ? AND status = ? AND is_active = ?", planID, enums.SubscriptionStatusActive, true).
			Count(&total).Error; err != nil {
			return err
		}
		return tx.Model(&models.Plan{}).
			Where("id = ?", planID).
			Update("total_subscriptions", total).Error
	})
	return total, err
}

func (r *repository) ActiveIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.Plan{}).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// NormalizeCode trims and upper-cases a plan code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func first(q *gorm.DB) (*models.Plan, error) {
	var plan models.Plan
	if err := q.First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}
