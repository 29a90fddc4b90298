package charges

import (
	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/money"
)

func newMirror(userID string, kind enums.SourceKind, input CreateInput, currency enums.Currency, remote *gateway.Charge) *models.Charge {
	row := &models.Charge{
		GatewayChargeID: remote.ID,
		UserID:          userID,
		SourceID:        input.SourceID,
		SourceKind:      kind,
		Amount:          money.ToMajorUnits(remote.Amount),
		AmountRefunded:  money.ToMajorUnits(remote.AmountRefunded),
		Currency:        currency,
		Email:           input.Email,
		Description:     input.Description,
		IsActive:        true,
		Metadata:        input.Metadata,
	}
	if parsed, err := enums.ParseCurrency(remote.CurrencyCode); err == nil {
		row.Currency = parsed
	}
	applyRemote(row, remote)
	return row
}

// applyRemote merges the gateway-owned settlement state onto row and reports
// whether anything changed. The caller validates the refund bound afterwards.
func applyRemote(row *models.Charge, remote *gateway.Charge) bool {
	if row == nil || remote == nil {
		return false
	}
	changed := false
	if refunded := money.ToMajorUnits(remote.AmountRefunded); !refunded.Equal(row.AmountRefunded) {
		row.AmountRefunded = refunded
		changed = true
	}
	if row.Captured != remote.Capture {
		row.Captured = remote.Capture
		changed = true
	}
	if row.Paid != remote.Paid {
		row.Paid = remote.Paid
		changed = true
	}
	if row.Disputed != remote.Dispute {
		row.Disputed = remote.Dispute
		changed = true
	}
	if capturedAt := remote.CaptureDate.Time(); capturedAt != nil && !reconcile.SameTime(row.CapturedAt, capturedAt) {
		row.CapturedAt = capturedAt
		changed = true
	}
	return changed
}

func toResponse(row models.Charge) ChargeResponse {
	return ChargeResponse{
		ID:              row.ID,
		GatewayChargeID: row.GatewayChargeID,
		UserID:          row.UserID,
		SourceID:        row.SourceID,
		SourceKind:      row.SourceKind,
		Amount:          row.Amount,
		AmountRefunded:  row.AmountRefunded,
		Currency:        row.Currency,
		Email:           row.Email,
		Description:     row.Description,
		Captured:        row.Captured,
		Paid:            row.Paid,
		Disputed:        row.Disputed,
		CapturedAt:      row.CapturedAt,
		IsActive:        row.IsActive,
		Metadata:        row.Metadata,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
