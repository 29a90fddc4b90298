package customers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gatewaysync/pkg/db"
	"github.com/angelmondragon/gatewaysync/pkg/db/dbtest"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

func mirrorRow(gatewayID, userID string, active bool) *models.Customer {
	return &models.Customer{
		GatewayCustomerID: gatewayID,
		UserID:            userID,
		FirstName:         "Ana",
		LastName:          "Quispe",
		Email:             gatewayID + "@example.com",
		Address:           "Av. Larco 123",
		AddressCity:       "Lima",
		CountryCode:       "PE",
		PhoneNumber:       "987654321",
		IsActive:          active,
	}
}

func TestRepositoryOneActiveCustomerPerUser(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, mirrorRow("cus_a", "user-1", false)))
	require.NoError(t, repo.Create(ctx, mirrorRow("cus_b", "user-1", true)))

	err := repo.Create(ctx, mirrorRow("cus_c", "user-1", true))
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, ""))

	active, err := repo.FindActiveByUser(ctx, "user-1")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "cus_b", active.GatewayCustomerID)

	byID, err := repo.FindByID(ctx, active.ID)
	require.NoError(t, err)
	assert.Equal(t, "cus_b", byID.GatewayCustomerID)

	missing, err := repo.FindByGatewayID(ctx, "cus_missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryListPagesNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"cus_1", "cus_2", "cus_3"} {
		row := mirrorRow(id, "user-"+id, true)
		row.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Create(ctx, row))
	}

	page, next, err := repo.List(ctx, ListQuery{Pagination: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "cus_3", page[0].GatewayCustomerID)
	assert.Equal(t, "cus_2", page[1].GatewayCustomerID)
	require.NotNil(t, next)

	rest, next, err := repo.List(ctx, ListQuery{Pagination: pagination.Params{Limit: 2, Cursor: pagination.EncodeCursor(*next)}})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "cus_1", rest[0].GatewayCustomerID)
	assert.Nil(t, next)

	filtered, _, err := repo.List(ctx, ListQuery{UserID: "user-cus_2"})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
}
