package cards

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gatewaysync/pkg/gateway"
)

// CreateInput attaches a tokenized card to the user's active customer. Send
// Authentication3DS when resubmitting after a challenge.
type CreateInput struct {
	TokenID           string                     `json:"token_id" validate:"required,startswith=tkn_"`
	Validate          *bool                      `json:"validate,omitempty"`
	Authentication3DS *gateway.Authentication3DS `json:"authentication_3DS,omitempty"`
	Metadata          map[string]any             `json:"metadata,omitempty"`
}

// UpdateInput swaps the card's token and/or patches metadata.
type UpdateInput struct {
	TokenID  *string        `json:"token_id,omitempty" validate:"omitempty,startswith=tkn_"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CardResponse struct {
	ID            uuid.UUID      `json:"id"`
	GatewayCardID string         `json:"gateway_card_id"`
	CustomerID    uuid.UUID      `json:"customer_id"`
	TokenID       string         `json:"token_id"`
	LastFour      string         `json:"last_four"`
	Brand         string         `json:"brand"`
	CardType      string         `json:"card_type"`
	IsActive      bool           `json:"is_active"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// CreateResponse carries either the mirrored card or the 3DS challenge.
type CreateResponse struct {
	Outcome    string             `json:"outcome"`
	Card       *CardResponse      `json:"card,omitempty"`
	Challenge  *gateway.Challenge `json:"challenge,omitempty"`
	TrackingID string             `json:"tracking_id,omitempty"`
}
