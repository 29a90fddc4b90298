package subscriptions

import (
	"time"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
)

// applyRemote merges status, current period, next billing date and the trial
// window from the gateway and reports whether anything changed. Unknown
// remote statuses leave the stored status alone.
func applyRemote(row *models.Subscription, remote *gateway.Subscription) bool {
	if row == nil || remote == nil {
		return false
	}
	changed := false
	if status, err := enums.ParseSubscriptionStatus(remote.Status); err == nil && status != row.Status {
		row.Status = status
		changed = true
	}
	if row.CurrentPeriod != remote.CurrentPeriod {
		row.CurrentPeriod = remote.CurrentPeriod
		changed = true
	}
	setTime := func(dst **time.Time, v gateway.UnixTime) {
		t := v.Time()
		if !reconcile.SameTime(*dst, t) {
			*dst = t
			changed = true
		}
	}
	setTime(&row.NextBillingDate, remote.NextBillingDate)
	setTime(&row.TrialStart, remote.TrialStart)
	setTime(&row.TrialEnd, remote.TrialEnd)
	return changed
}

func toResponse(row models.Subscription, now time.Time) SubscriptionResponse {
	return SubscriptionResponse{
		ID:                    row.ID,
		GatewaySubscriptionID: row.GatewaySubscriptionID,
		UserID:                row.UserID,
		CustomerID:            row.CustomerID,
		CardID:                row.CardID,
		PlanID:                row.PlanID,
		Status:                row.Status,
		StatusName:            row.Status.String(),
		CurrentPeriod:         row.CurrentPeriod,
		NextBillingDate:       row.NextBillingDate,
		TrialStart:            row.TrialStart,
		TrialEnd:              row.TrialEnd,
		InTrial:               row.InTrial(now),
		CancelledAt:           row.CancelledAt,
		IsActive:              row.IsActive,
		Metadata:              row.Metadata,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
}
