package plans

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
)

// InitialCyclesInput configures introductory cycles billed before the
// regular amount applies.
type InitialCyclesInput struct {
	Count            int             `json:"count" validate:"gte=0"`
	HasInitialCharge bool            `json:"has_initial_charge"`
	Amount           decimal.Decimal `json:"amount" validate:"gte=0"`
	IntervalUnit     int             `json:"interval_unit_time" validate:"omitempty,oneof=1 2 3 4"`
}

type CreateInput struct {
	Code          string             `json:"code" validate:"required,alphanum,min=2,max=40"`
	Name          string             `json:"name" validate:"required,min=5,max=50"`
	ShortName     string             `json:"short_name" validate:"required,min=5,max=50"`
	Description   string             `json:"description" validate:"max=250"`
	Amount        decimal.Decimal    `json:"amount" validate:"gt=0"`
	Currency      string             `json:"currency" validate:"required,currency"`
	IntervalUnit  int                `json:"interval_unit_time" validate:"required,oneof=1 2 3 4"`
	IntervalCount int                `json:"interval_count" validate:"required,gte=1"`
	Limit         int                `json:"limit" validate:"gte=0"`
	InitialCycles InitialCyclesInput `json:"initial_cycles"`
	Metadata      map[string]any     `json:"metadata,omitempty"`
}

type UpdateInput struct {
	Name        *string        `json:"name,omitempty" validate:"omitempty,min=5,max=50"`
	ShortName   *string        `json:"short_name,omitempty" validate:"omitempty,min=5,max=50"`
	Description *string        `json:"description,omitempty" validate:"omitempty,max=250"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

type InitialCyclesResponse struct {
	Count            int                `json:"count"`
	HasInitialCharge bool               `json:"has_initial_charge"`
	Amount           decimal.Decimal    `json:"amount"`
	IntervalUnit     enums.IntervalUnit `json:"interval_unit_time"`
}

type PlanResponse struct {
	ID                 uuid.UUID             `json:"id"`
	GatewayPlanID      string                `json:"gateway_plan_id"`
	Code               string                `json:"code"`
	Name               string                `json:"name"`
	ShortName          string                `json:"short_name"`
	Description        string                `json:"description,omitempty"`
	Amount             decimal.Decimal       `json:"amount"`
	Currency           enums.Currency        `json:"currency"`
	IntervalUnit       enums.IntervalUnit    `json:"interval_unit_time"`
	IntervalCount      int                   `json:"interval_count"`
	Limit              int                   `json:"limit"`
	InitialCycles      InitialCyclesResponse `json:"initial_cycles"`
	Status             enums.PlanStatus      `json:"status"`
	TotalSubscriptions int64                 `json:"total_subscriptions"`
	IsActive           bool                  `json:"is_active"`
	Metadata           map[string]any        `json:"metadata,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}
