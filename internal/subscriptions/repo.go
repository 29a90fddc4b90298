package subscriptions

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

// Repository handles subscription mirror persistence and the summary reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, sub *models.Subscription) error
	Update(ctx context.Context, sub *models.Subscription) error
	FindByGatewayID(ctx context.Context, gatewayID string) (*models.Subscription, error)
	FindActiveForUserPlan(ctx context.Context, userID string, planID uuid.UUID) (*models.Subscription, error)
	List(ctx context.Context, query ListQuery) ([]models.Subscription, *pagination.Cursor, error)
	// ListOpen returns non-terminal subscriptions with id greater than after,
	// in id order. uuid.Nil starts from the beginning.
	ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Subscription, error)

	CountByStatus(ctx context.Context) (map[enums.SubscriptionStatus]int64, error)
	CountInTrial(ctx context.Context, now time.Time) (int64, error)
	ActivePlanAmounts(ctx context.Context, from, to time.Time) ([]PlanAmount, error)
	UpcomingBillings(ctx context.Context, from, to time.Time) ([]UpcomingBilling, error)
}

type ListQuery struct {
	UserID     string
	PlanID     uuid.UUID
	Statuses   []enums.SubscriptionStatus
	Pagination pagination.Params
}

// PlanAmount is the plan price attached to one active subscription.
type PlanAmount struct {
	Currency enums.Currency
	Amount   decimal.Decimal
}

type UpcomingBilling struct {
	GatewaySubscriptionID string          `json:"gateway_subscription_id"`
	UserID                string          `json:"user_id"`
	PlanCode              string          `json:"plan_code"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              enums.Currency  `json:"currency"`
	NextBillingDate       time.Time       `json:"next_billing_date"`
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

func (r *repository) Create(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *repository) Update(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Save(sub).Error
}

func (r *repository) FindByGatewayID(ctx context.Context, gatewayID string) (*models.Subscription, error) {
	return first(r.db.WithContext(ctx).Where("gateway_subscription_id = ?", gatewayID))
}

func (r *repository) FindActiveForUserPlan(ctx context.Context, userID string, planID uuid.UUID) (*models.Subscription, error) {
	return first(r.db.WithContext(ctx).
		Where("user_id = ? AND plan_id = ? AND status = ? AND is_active = ?", userID, planID, enums.SubscriptionStatusActive, true))
}

func (r *repository) List(ctx context.Context, query ListQuery) ([]models.Subscription, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.Subscription{})
	if query.UserID != "" {
		q = q.Where("user_id = ?", query.UserID)
	}
	if query.PlanID != uuid.Nil {
		q = q.Where("plan_id = ?", query.PlanID)
	}
	if len(query.Statuses) > 0 {
		q = q.Where("status IN ?", query.Statuses)
	}
	q, limit, err := pagination.Apply(q, query.Pagination)
	if err != nil {
		return nil, nil, err
	}
	var rows []models.Subscription
	if err := q.Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	rows, next := pagination.Trim(rows, limit, func(s models.Subscription) pagination.Cursor {
		return pagination.Cursor{CreatedAt: s.CreatedAt, ID: s.ID}
	})
	return rows, next, nil
}

func (r *repository) ListOpen(ctx context.Context, after uuid.UUID, limit int) ([]models.Subscription, error) {
	var rows []models.Subscription
	q := r.db.WithContext(ctx).
		Where("is_active = ? AND status IN ?", true, openStatuses())
	if after != uuid.Nil {
		q = q.Where("id > ?", after)
	}
	err := q.Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountByStatus(ctx context.Context) (map[enums.SubscriptionStatus]int64, error) {
	var rows []struct {
		Status enums.SubscriptionStatus
		Total  int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.SubscriptionStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}

func (r *repository) CountInTrial(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("trial_start IS NOT NULL AND trial_end IS NOT NULL").
		Where("trial_start <= ? AND trial_end >= ?", now, now).
		Count(&total).Error
	return total, err
}

func (r *repository) ActivePlanAmounts(ctx context.Context, from, to time.Time) ([]PlanAmount, error) {
	var rows []PlanAmount
	err := r.db.WithContext(ctx).
		Table("gateway_subscriptions AS s").
		Select("p.currency AS currency, p.amount AS amount").
		Joins("JOIN gateway_plans p ON p.id = s.plan_id").
		Where("s.status = ? AND s.is_active = ?", enums.SubscriptionStatusActive, true).
		Where("s.created_at >= ? AND s.created_at < ?", from, to).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) UpcomingBillings(ctx context.Context, from, to time.Time) ([]UpcomingBilling, error) {
	var rows []UpcomingBilling
	err := r.db.WithContext(ctx).
		Table("gateway_subscriptions AS s").
		Select("s.gateway_subscription_id AS gateway_subscription_id, s.user_id AS user_id, " +
			"p.code AS plan_code, p.amount AS amount, p.currency AS currency, s.next_billing_date AS next_billing_date").
		Joins("JOIN gateway_plans p ON p.id = s.plan_id").
		Where("s.status = ? AND s.is_active = ?", enums.SubscriptionStatusActive, true).
		Where("s.next_billing_date >= ? AND s.next_billing_date <= ?", from, to).
		Order("s.next_billing_date ASC").
		Scan(&rows).Error
	return rows, err
}

func openStatuses() []enums.SubscriptionStatus {
	var out []enums.SubscriptionStatus
	for _, status := range enums.SubscriptionStatuses() {
		if status.Cancellable() {
			out = append(out, status)
		}
	}
	return out
}

func first(q *gorm.DB) (*models.Subscription, error) {
	var sub models.Subscription
	if err := q.First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}
