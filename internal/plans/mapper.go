package plans

import (
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/money"
)

func newMirror(code string, input CreateInput, currency enums.Currency, remote *gateway.Plan) *models.Plan {
	row := &models.Plan{
		GatewayPlanID:            remote.ID,
		Code:                     code,
		Name:                     input.Name,
		ShortName:                input.ShortName,
		Description:              input.Description,
		Amount:                   input.Amount,
		Currency:                 currency,
		IntervalUnit:             enums.IntervalUnit(input.IntervalUnit),
		IntervalCount:            input.IntervalCount,
		Limit:                    input.Limit,
		InitialCycleCount:        input.InitialCycles.Count,
		InitialCycleHasCharge:    input.InitialCycles.HasInitialCharge,
		InitialCycleAmount:       input.InitialCycles.Amount,
		InitialCycleIntervalUnit: enums.IntervalUnit(input.InitialCycles.IntervalUnit),
		Status:                   enums.PlanStatusActive,
		IsActive:                 true,
		Metadata:                 input.Metadata,
	}
	applyRemote(row, remote)
	return row
}

// applyRemote merges name, short name, description, amount and status from
// the gateway and reports whether anything changed.
func applyRemote(row *models.Plan, remote *gateway.Plan) bool {
	if row == nil || remote == nil {
		return false
	}
	changed := false
	set := func(dst *string, v string) {
		if v != "" && *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&row.Name, remote.Name)
	set(&row.ShortName, remote.ShortName)
	set(&row.Description, remote.Description)
	if remote.Amount > 0 {
		if amount := money.ToMajorUnits(remote.Amount); !amount.Equal(row.Amount) {
			row.Amount = amount
			changed = true
		}
	}
	if status, err := enums.ParsePlanStatus(remote.Status); err == nil && status != row.Status {
		row.Status = status
		changed = true
	}
	return changed
}

func toResponse(row models.Plan) PlanResponse {
	return PlanResponse{
		ID:            row.ID,
		GatewayPlanID: row.GatewayPlanID,
		Code:          row.Code,
		Name:          row.Name,
		ShortName:     row.ShortName,
		Description:   row.Description,
		Amount:        row.Amount,
		Currency:      row.Currency,
		IntervalUnit:  row.IntervalUnit,
		IntervalCount: row.IntervalCount,
		Limit:         row.Limit,
		InitialCycles: InitialCyclesResponse{
			Count:            row.InitialCycleCount,
			HasInitialCharge: row.InitialCycleHasCharge,
			Amount:           row.InitialCycleAmount,
			IntervalUnit:     row.InitialCycleIntervalUnit,
		},
		Status:             row.Status,
		TotalSubscriptions: row.TotalSubscriptions,
		IsActive:           row.IsActive,
		Metadata:           row.Metadata,
		CreatedAt:          row.CreatedAt,
		UpdatedAt:          row.UpdatedAt,
	}
}
