package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Card mirrors a stored card. LastFour, Brand and CardType cache the remote
// card; TokenID keeps the token the card was created from.
type Card struct {
	ID            uuid.UUID         `gorm:"type:uuid;primaryKey"`
	GatewayCardID string            `gorm:"column:gateway_card_id;not null;uniqueIndex"`
	CustomerID    uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	TokenID       string            `gorm:"column:token_id;not null"`
	LastFour      string            `gorm:"column:last_four;not null"`
	Brand         string            `gorm:"column:brand;not null"`
	CardType      string            `gorm:"column:card_type;not null"`
	IsActive      bool              `gorm:"column:is_active;not null"`
	Metadata      datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt     time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Card) TableName() string { return "gateway_cards" }

func (c *Card) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
