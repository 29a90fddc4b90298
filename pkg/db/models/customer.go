package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Customer mirrors a gateway customer. At most one active row exists per user.
type Customer struct {
	ID                uuid.UUID         `gorm:"type:uuid;primaryKey"`
	GatewayCustomerID string            `gorm:"column:gateway_customer_id;not null;uniqueIndex"`
	UserID            string            `gorm:"column:user_id;not null;index"`
	FirstName         string            `gorm:"column:first_name;not null"`
	LastName          string            `gorm:"column:last_name;not null"`
	Email             string            `gorm:"column:email;not null"`
	Address           string            `gorm:"column:address;not null"`
	AddressCity       string            `gorm:"column:address_city;not null"`
	CountryCode       string            `gorm:"column:country_code;not null"`
	PhoneNumber       string            `gorm:"column:phone_number;not null"`
	IsActive          bool              `gorm:"column:is_active;not null"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Customer) TableName() string { return "gateway_customers" }

func (c *Customer) BeforeCreate(*gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
