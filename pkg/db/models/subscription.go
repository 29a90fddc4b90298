package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
)

// Subscription binds a customer, card and plan. Status carries whatever the
// gateway reported last.
type Subscription struct {
	ID                    uuid.UUID                `gorm:"type:uuid;primaryKey"`
	GatewaySubscriptionID string                   `gorm:"column:gateway_subscription_id;not null;uniqueIndex"`
	UserID                string                   `gorm:"column:user_id;not null;index"`
	CustomerID            uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	CardID                uuid.UUID                `gorm:"column:card_id;type:uuid;not null"`
	PlanID                uuid.UUID                `gorm:"column:plan_id;type:uuid;not null;index"`
	Status                enums.SubscriptionStatus `gorm:"column:status;not null"`
	CurrentPeriod         int                      `gorm:"column:current_period;not null"`
	NextBillingDate       *time.Time               `gorm:"column:next_billing_date"`
	TrialStart            *time.Time               `gorm:"column:trial_start"`
	TrialEnd              *time.Time               `gorm:"column:trial_end"`
	CancelledAt           *time.Time               `gorm:"column:cancelled_at"`
	IsActive              bool                     `gorm:"column:is_active;not null"`
	Metadata              datatypes.JSONMap        `gorm:"column:metadata"`
	CreatedAt             time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (Subscription) TableName() string { return "gateway_subscriptions" }

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// InTrial reports whether now falls inside [TrialStart, TrialEnd], whatever the
// stored status says.
func (s *Subscription) InTrial(now time.Time) bool {
	if s.TrialStart == nil || s.TrialEnd == nil {
		return false
	}
	return !now.Before(*s.TrialStart) && !now.After(*s.TrialEnd)
}
