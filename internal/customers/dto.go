package customers

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateInput carries the antifraud profile the gateway requires for a customer.
type CreateInput struct {
	FirstName   string         `json:"first_name" validate:"required,min=2,max=50"`
	LastName    string         `json:"last_name" validate:"required,min=2,max=50"`
	Email       string         `json:"email" validate:"required,email,max=50"`
	Address     string         `json:"address" validate:"required,min=5,max=100"`
	AddressCity string         `json:"address_city" validate:"required,min=2,max=30"`
	CountryCode string         `json:"country_code" validate:"required,iso3166_1_alpha2"`
	PhoneNumber string         `json:"phone_number" validate:"required,min=5,max=15"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UpdateInput patches a customer; nil fields are left untouched. A nil value
// inside Metadata removes that key.
type UpdateInput struct {
	FirstName   *string        `json:"first_name,omitempty" validate:"omitempty,min=2,max=50"`
	LastName    *string        `json:"last_name,omitempty" validate:"omitempty,min=2,max=50"`
	Email       *string        `json:"email,omitempty" validate:"omitempty,email,max=50"`
	Address     *string        `json:"address,omitempty" validate:"omitempty,min=5,max=100"`
	AddressCity *string        `json:"address_city,omitempty" validate:"omitempty,min=2,max=30"`
	CountryCode *string        `json:"country_code,omitempty" validate:"omitempty,iso3166_1_alpha2"`
	PhoneNumber *string        `json:"phone_number,omitempty" validate:"omitempty,min=5,max=15"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// normalized upper-cases the country code so validation and storage see the
// ISO form regardless of how the caller typed it.
func (in CreateInput) normalized() CreateInput {
	in.CountryCode = strings.ToUpper(strings.TrimSpace(in.CountryCode))
	return in
}

func (in UpdateInput) normalized() UpdateInput {
	if in.CountryCode != nil {
		code := strings.ToUpper(strings.TrimSpace(*in.CountryCode))
		in.CountryCode = &code
	}
	return in
}

func (in UpdateInput) empty() bool {
	return in.FirstName == nil && in.LastName == nil && in.Email == nil && in.Address == nil &&
		in.AddressCity == nil && in.CountryCode == nil && in.PhoneNumber == nil && len(in.Metadata) == 0
}

type CustomerResponse struct {
	ID                uuid.UUID      `json:"id"`
	GatewayCustomerID string         `json:"gateway_customer_id"`
	UserID            string         `json:"user_id"`
	FirstName         string         `json:"first_name"`
	LastName          string         `json:"last_name"`
	Email             string         `json:"email"`
	Address           string         `json:"address"`
	AddressCity       string         `json:"address_city"`
	CountryCode       string         `json:"country_code"`
	PhoneNumber       string         `json:"phone_number"`
	IsActive          bool           `json:"is_active"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}
