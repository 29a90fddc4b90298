package plans

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/pkg/db/dbtest"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
)

type stubGateway struct {
	mu         sync.Mutex
	plans      map[string]*gateway.Plan
	creates    int
	gets       int
	updates    int
	deletes    int
	lastCreate gateway.PlanCreateParams
}

func newStubGateway() *stubGateway {
	return &stubGateway{plans: map[string]*gateway.Plan{}}
}

func (g *stubGateway) CreatePlan(ctx context.Context, p gateway.PlanCreateParams) (*gateway.Plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.creates++
	g.lastCreate = p
	plan := &gateway.Plan{
		ID:          fmt.Sprintf("pln_test_%04d", g.creates),
		Name:        p.Name,
		ShortName:   p.ShortName,
		Description: p.Description,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      1,
	}
	g.plans[plan.ID] = plan
	cp := *plan
	return &cp, nil
}

func (g *stubGateway) GetPlan(ctx context.Context, id string) (*gateway.Plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gets++
	cp := *g.plans[id]
	return &cp, nil
}

func (g *stubGateway) UpdatePlan(ctx context.Context, id string, p gateway.PlanUpdateParams) (*gateway.Plan, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updates++
	plan := g.plans[id]
	if p.Name != nil {
		plan.Name = *p.Name
	}
	if p.Status != nil {
		plan.Status = *p.Status
	}
	cp := *plan
	return &cp, nil
}

func (g *stubGateway) DeletePlan(ctx context.Context, id string) (*gateway.Deleted, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes++
	return &gateway.Deleted{ID: id, Deleted: true}, nil
}

func newTestService(t *testing.T) (Service, *stubGateway, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	gw := newStubGateway()
	svc, err := NewService(ServiceParams{
		Repo:    NewRepository(conn),
		Gateway: gw,
		Logger:  logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, gw, conn
}

func planInput(code string) CreateInput {
	return CreateInput{
		Code:          code,
		Name:          "Premium monthly",
		ShortName:     "premium-m",
		Description:   "Premium tier billed monthly",
		Amount:        decimal.RequireFromString("49.90"),
		Currency:      "pen",
		IntervalUnit:  int(enums.IntervalUnitMonth),
		IntervalCount: 1,
		InitialCycles: InitialCyclesInput{Count: 1, Amount: decimal.RequireFromString("9.90"), IntervalUnit: 3},
	}
}

func TestCreateNormalizesCodeAndRejectsDuplicates(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()

	plan, err := svc.Create(ctx, planInput("premium01"))
	require.NoError(t, err)
	assert.Equal(t, "PREMIUM01", plan.Code)
	assert.Equal(t, int64(4990), gw.lastCreate.Amount, "gateway receives minor units")
	assert.Equal(t, int64(990), gw.lastCreate.InitialCycles.Amount)
	assert.Equal(t, "PEN", gw.lastCreate.Currency)
	assert.True(t, decimal.RequireFromString("49.90").Equal(plan.Amount))
	assert.Equal(t, enums.PlanStatusActive, plan.Status)

	_, err = svc.Create(ctx, planInput("Premium01"))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))
	assert.Equal(t, 1, gw.creates, "duplicate code must not reach the gateway")
}

func TestGetAcceptsCodeOrGatewayID(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	plan, err := svc.Create(ctx, planInput("BASIC"))
	require.NoError(t, err)

	byCode, err := svc.Get(ctx, "basic")
	require.NoError(t, err)
	byID, err := svc.Get(ctx, plan.GatewayPlanID)
	require.NoError(t, err)
	assert.Equal(t, byCode.ID, byID.ID)

	_, err = svc.Get(ctx, "MISSING")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestActivateDeactivate(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, planInput("BASIC"))
	require.NoError(t, err)

	off, err := svc.Deactivate(ctx, "BASIC")
	require.NoError(t, err)
	assert.Equal(t, enums.PlanStatusInactive, off.Status)

	on, err := svc.Activate(ctx, "BASIC")
	require.NoError(t, err)
	assert.Equal(t, enums.PlanStatusActive, on.Status)
	assert.Equal(t, 2, gw.updates)
}

func TestDeleteBlockedWhileSubscriptionsActive(t *testing.T) {
	svc, gw, conn := newTestService(t)
	ctx := context.Background()
	plan, err := svc.Create(ctx, planInput("BASIC"))
	require.NoError(t, err)

	sub := &models.Subscription{
		GatewaySubscriptionID: "sxn_test_0001",
		UserID:                "user-1",
		CustomerID:            uuid.New(),
		CardID:                uuid.New(),
		PlanID:                plan.ID,
		Status:                enums.SubscriptionStatusActive,
		IsActive:              true,
	}
	require.NoError(t, conn.Create(sub).Error)

	total, err := svc.RecountSubscriptions(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	err = svc.Delete(ctx, "BASIC")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidRequest))
	assert.Zero(t, gw.deletes)

	require.NoError(t, conn.Model(sub).Updates(map[string]any{"status": enums.SubscriptionStatusCancelled, "is_active": false}).Error)
	require.NoError(t, svc.Delete(ctx, "BASIC"))
	assert.Equal(t, 1, gw.deletes)

	var row models.Plan
	require.NoError(t, conn.First(&row, "id = ?", plan.ID).Error)
	assert.False(t, row.IsActive)
	assert.Zero(t, row.TotalSubscriptions)
}

func TestUpdateDoesNotClobberRecount(t *testing.T) {
	svc, _, conn := newTestService(t)
	ctx := context.Background()
	plan, err := svc.Create(ctx, planInput("BASIC"))
	require.NoError(t, err)
	require.NoError(t, conn.Model(&models.Plan{}).Where("id = ?", plan.ID).Update("total_subscriptions", 7).Error)

	name := "Basic renamed"
	updated, err := svc.Update(ctx, "BASIC", UpdateInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, name, updated.Name)

	var row models.Plan
	require.NoError(t, conn.First(&row, "id = ?", plan.ID).Error)
	assert.Equal(t, int64(7), row.TotalSubscriptions)
}

func TestListReconcilesBoundedPrefix(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < 11; i++ {
		_, err := svc.Create(ctx, planInput(fmt.Sprintf("PLAN%02d", i)))
		require.NoError(t, err)
	}
	res, err := svc.List(ctx, true, pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, res.Items, 11)
	assert.Equal(t, 10, res.ReconciledThrough)
	assert.Equal(t, 10, gw.gets)
}

func TestDeletedPlanIsServedFromMirror(t *testing.T) {
	svc, gw, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, planInput("LEGACY"))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, "LEGACY"))

	res, err := svc.List(ctx, false, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.False(t, res.Items[0].IsActive)
	assert.Empty(t, res.Stale)

	got, err := svc.Get(ctx, "LEGACY")
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Zero(t, gw.gets, "deleted plans are final and never fetched")
}
