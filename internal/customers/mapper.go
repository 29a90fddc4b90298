package customers

import (
	"strings"

	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
)

func newMirror(userID string, remote *gateway.Customer, input CreateInput) *models.Customer {
	row := &models.Customer{
		GatewayCustomerID: remote.ID,
		UserID:            userID,
		FirstName:         input.FirstName,
		LastName:          input.LastName,
		Email:             input.Email,
		Address:           input.Address,
		AddressCity:       input.AddressCity,
		CountryCode:       input.CountryCode,
		PhoneNumber:       input.PhoneNumber,
		IsActive:          true,
		Metadata:          input.Metadata,
	}
	applyRemote(row, remote)
	return row
}

// applyRemote copies the gateway-owned profile onto row and reports whether
// anything changed. Empty remote values never blank out the mirror.
func applyRemote(row *models.Customer, remote *gateway.Customer) bool {
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
	details := remote.AntifraudDetails
	set(&row.FirstName, details.FirstName)
	set(&row.LastName, details.LastName)
	set(&row.Email, remote.Email)
	set(&row.Address, details.Address)
	set(&row.AddressCity, details.AddressCity)
	set(&row.CountryCode, strings.ToUpper(details.CountryCode))
	set(&row.PhoneNumber, details.Phone)
	return changed
}

func toResponse(row models.Customer) CustomerResponse {
	return CustomerResponse{
		ID:                row.ID,
		GatewayCustomerID: row.GatewayCustomerID,
		UserID:            row.UserID,
		FirstName:         row.FirstName,
		LastName:          row.LastName,
		Email:             row.Email,
		Address:           row.Address,
		AddressCity:       row.AddressCity,
		CountryCode:       row.CountryCode,
		PhoneNumber:       row.PhoneNumber,
		IsActive:          row.IsActive,
		Metadata:          row.Metadata,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

func updateParams(in UpdateInput) gateway.CustomerUpdateParams {
	return gateway.CustomerUpdateParams{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       in.Email,
		Address:     in.Address,
		AddressCity: in.AddressCity,
		CountryCode: in.CountryCode,
		PhoneNumber: in.PhoneNumber,
		Metadata:    in.Metadata,
	}
}
