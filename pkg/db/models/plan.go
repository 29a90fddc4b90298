package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
)

// Plan mirrors a recurring-billing plan. Code is the upper-case local alias;
// Amount is held in major units.
type Plan struct {
	ID                       uuid.UUID          `gorm:"type:uuid;primaryKey"`
	GatewayPlanID            string             `gorm:"column:gateway_plan_id;not null;uniqueIndex"`
	Code                     string             `gorm:"column:code;not null;uniqueIndex"`
	Name                     string             `gorm:"column:name;not null"`
	ShortName                string             `gorm:"column:short_name;not null"`
	Description              string             `gorm:"column:description"`
	Amount                   decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency                 enums.Currency     `gorm:"column:currency;not null"`
	IntervalUnit             enums.IntervalUnit `gorm:"column:interval_unit;not null"`
	IntervalCount            int                `gorm:"column:interval_count;not null"`
	Limit                    int                `gorm:"column:billing_limit;not null"`
	InitialCycleCount        int                `gorm:"column:initial_cycle_count;not null"`
	InitialCycleHasCharge    bool               `gorm:"column:initial_cycle_has_charge;not null"`
	InitialCycleAmount       decimal.Decimal    `gorm:"column:initial_cycle_amount;type:numeric(12,2);not null"`
	InitialCycleIntervalUnit enums.IntervalUnit `gorm:"column:initial_cycle_interval_unit;not null"`
	Status                   enums.PlanStatus   `gorm:"column:status;not null"`
	TotalSubscriptions       int64              `gorm:"column:total_subscriptions;not null"`
	IsActive                 bool               `gorm:"column:is_active;not null"`
	Metadata                 datatypes.JSONMap  `gorm:"column:metadata"`
	CreatedAt                time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (Plan) TableName() string { return "gateway_plans" }

func (p *Plan) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
