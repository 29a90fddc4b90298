package cards

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
)

func newMirror(customerID uuid.UUID, tokenID string, token *gateway.Token, remote *gateway.Card, metadata map[string]any) *models.Card {
	row := &models.Card{
		GatewayCardID: remote.ID,
		CustomerID:    customerID,
		TokenID:       tokenID,
		IsActive:      true,
		Metadata:      metadata,
	}
	applyToken(row, token)
	applyRemote(row, remote)
	return row
}

// applyRemote copies the card details the gateway owns and reports whether
// the row changed.
func applyRemote(row *models.Card, remote *gateway.Card) bool {
	if row == nil || remote == nil {
		return false
	}
	return applyToken(row, &remote.Source)
}

func applyToken(row *models.Card, token *gateway.Token) bool {
	if token == nil {
		return false
	}
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&row.LastFour, token.LastFour)
	set(&row.Brand, token.IIN.CardBrand)
	set(&row.CardType, token.IIN.CardType)
	return changed
}

func toResponse(row models.Card) CardResponse {
	return CardResponse{
		ID:            row.ID,
		GatewayCardID: row.GatewayCardID,
		CustomerID:    row.CustomerID,
		TokenID:       row.TokenID,
		LastFour:      row.LastFour,
		Brand:         row.Brand,
		CardType:      row.CardType,
		IsActive:      row.IsActive,
		Metadata:      row.Metadata,
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
}
