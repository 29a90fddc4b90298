package charges

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
)

// CreateInput describes a one-time charge in major units. SourceID is either a
// token (tkn_) or a stored card (crd_). Capture defaults to true.
type CreateInput struct {
	Amount            decimal.Decimal            `json:"amount" validate:"gt=0"`
	Currency          string                     `json:"currency_code" validate:"omitempty,currency"`
	Email             string                     `json:"email" validate:"required,email,max=50"`
	SourceID          string                     `json:"source_id" validate:"required"`
	Capture           *bool                      `json:"capture,omitempty"`
	Description       string                     `json:"description,omitempty" validate:"max=80"`
	Installments      int                        `json:"installments,omitempty" validate:"gte=0,lte=48"`
	Authentication3DS *gateway.Authentication3DS `json:"authentication_3DS,omitempty"`
	Metadata          map[string]any             `json:"metadata,omitempty"`
}

type UpdateInput struct {
	Metadata map[string]any `json:"metadata" validate:"required"`
}

type ChargeResponse struct {
	ID              uuid.UUID        `json:"id"`
	GatewayChargeID string           `json:"gateway_charge_id"`
	UserID          string           `json:"user_id"`
	SourceID        string           `json:"source_id"`
	SourceKind      enums.SourceKind `json:"source_kind"`
	Amount          decimal.Decimal  `json:"amount"`
	AmountRefunded  decimal.Decimal  `json:"amount_refunded"`
	Currency        enums.Currency   `json:"currency_code"`
	Email           string           `json:"email"`
	Description     string           `json:"description,omitempty"`
	Captured        bool             `json:"captured"`
	Paid            bool             `json:"paid"`
	Disputed        bool             `json:"disputed"`
	CapturedAt      *time.Time       `json:"captured_at,omitempty"`
	IsActive        bool             `json:"is_active"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

// CreateResponse carries either the mirrored charge or the 3DS challenge.
type CreateResponse struct {
	Outcome    string             `json:"outcome"`
	Charge     *ChargeResponse    `json:"charge,omitempty"`
	Challenge  *gateway.Challenge `json:"challenge,omitempty"`
	TrackingID string             `json:"tracking_id,omitempty"`
}
