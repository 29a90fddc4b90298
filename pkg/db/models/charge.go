package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
)

// Charge mirrors a one-time charge. Amounts are major units; the capture,
// paid and dispute flags are owned by the gateway.
type Charge struct {
	ID              uuid.UUID         `gorm:"type:uuid;primaryKey"`
	GatewayChargeID string            `gorm:"column:gateway_charge_id;not null;uniqueIndex"`
	UserID          string            `gorm:"column:user_id;not null;index"`
	SourceID        string            `gorm:"column:source_id;not null"`
	SourceKind      enums.SourceKind  `gorm:"column:source_kind;not null"`
	Amount          decimal.Decimal   `gorm:"column:amount;type:numeric(12,2);not null"`
	AmountRefunded  decimal.Decimal   `gorm:"column:amount_refunded;type:numeric(12,2);not null"`
	Currency        enums.Currency    `gorm:"column:currency;not null"`
	Email           string            `gorm:"column:email;not null"`
	Description     string            `gorm:"column:description"`
	Captured        bool              `gorm:"column:captured;not null"`
	Paid            bool              `gorm:"column:paid;not null"`
	Disputed        bool              `gorm:"column:disputed;not null"`
	CapturedAt      *time.Time        `gorm:"column:captured_at"`
	IsActive        bool              `gorm:"column:is_active;not null"`
	Metadata        datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Charge) TableName() string { return "gateway_charges" }

// Validate enforces the amount bounds: 0 <= AmountRefunded <= Amount.
func (c *Charge) Validate() error {
	if c.Amount.IsNegative() {
		return fmt.Errorf("charge amount %s is negative", c.Amount.String())
	}
	if c.AmountRefunded.IsNegative() {
		return fmt.Errorf("charge amount refunded %s is negative", c.AmountRefunded.String())
	}
	if c.AmountRefunded.GreaterThan(c.Amount) {
		return fmt.Errorf("charge amount refunded %s exceeds amount %s", c.AmountRefunded.String(), c.Amount.String())
	}
	return nil
}

func (c *Charge) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (c *Charge) BeforeSave(*gorm.DB) error {
	return c.Validate()
}
