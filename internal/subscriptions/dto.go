package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
)

// SourceLocalMirror marks reports computed from local rows only, with no
// gateway round trip.
const SourceLocalMirror = "local_mirror"

// CreateInput subscribes the user's active customer to a plan. Plan takes the
// plan code or its pln_ id; AcceptTerms must be true.
type CreateInput struct {
	CardID      string         `json:"card_id" validate:"required,startswith=crd_"`
	Plan        string         `json:"plan" validate:"required"`
	AcceptTerms bool           `json:"tyc" validate:"required"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateInput swaps the billing card and/or patches metadata.
type UpdateInput struct {
	CardID   *string        `json:"card_id,omitempty" validate:"omitempty,startswith=crd_"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type SubscriptionResponse struct {
	ID                    uuid.UUID                `json:"id"`
	GatewaySubscriptionID string                   `json:"gateway_subscription_id"`
	UserID                string                   `json:"user_id"`
	CustomerID            uuid.UUID                `json:"customer_id"`
	CardID                uuid.UUID                `json:"card_id"`
	PlanID                uuid.UUID                `json:"plan_id"`
	Status                enums.SubscriptionStatus `json:"status"`
	StatusName            string                   `json:"status_name"`
	CurrentPeriod         int                      `json:"current_period"`
	NextBillingDate       *time.Time               `json:"next_billing_date,omitempty"`
	TrialStart            *time.Time               `json:"trial_start,omitempty"`
	TrialEnd              *time.Time               `json:"trial_end,omitempty"`
	InTrial               bool                     `json:"in_trial"`
	CancelledAt           *time.Time               `json:"cancelled_at,omitempty"`
	IsActive              bool                     `json:"is_active"`
	Metadata              map[string]any           `json:"metadata,omitempty"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
}

// Summary is a point-in-time snapshot of the local mirror.
type Summary struct {
	GeneratedAt         time.Time                          `json:"generated_at"`
	Source              string                             `json:"source"`
	Total               int64                              `json:"total"`
	ByStatus            map[string]int64                   `json:"by_status"`
	InTrial             int64                              `json:"in_trial"`
	CurrentMonthRevenue map[enums.Currency]decimal.Decimal `json:"current_month_revenue"`
	UpcomingWindow      string                             `json:"upcoming_window"`
	UpcomingBillings    []UpcomingBilling                  `json:"upcoming_billings"`
}
