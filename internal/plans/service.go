package plans

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/money"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
	"github.com/angelmondragon/gatewaysync/pkg/validate"
)

const resourceKind = "plan"

// Gateway is the slice of the gateway client the plan manager uses.
type Gateway interface {
	CreatePlan(ctx context.Context, params gateway.PlanCreateParams) (*gateway.Plan, error)
	GetPlan(ctx context.Context, id string) (*gateway.Plan, error)
	UpdatePlan(ctx context.Context, id string, params gateway.PlanUpdateParams) (*gateway.Plan, error)
	DeletePlan(ctx context.Context, id string) (*gateway.Deleted, error)
}

// Service manages recurring-billing plans. Every method taking ref accepts
// either the plan code or its pln_ gateway id.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*PlanResponse, error)
	Get(ctx context.Context, ref string) (*PlanResponse, error)
	List(ctx context.Context, activeOnly bool, params pagination.Params) (reconcile.ListResult[PlanResponse], error)
	Update(ctx context.Context, ref string, input UpdateInput) (*PlanResponse, error)
	Activate(ctx context.Context, ref string) (*PlanResponse, error)
	Deactivate(ctx context.Context, ref string) (*PlanResponse, error)
	Delete(ctx context.Context, ref string) error
	RecountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error)
}

// ServiceParams groups dependencies for the plan service.
type ServiceParams struct {
	Repo               Repository
	Gateway            Gateway
	Logger             *logger.Logger
	ListReconcileLimit int
}

type service struct {
	repo      Repository
	gateway   Gateway
	logg      *logger.Logger
	listLimit int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("plan repository required")
	}
	if params.Gateway == nil {
		return nil, errors.New("plan gateway required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	limit := params.ListReconcileLimit
	if limit <= 0 {
		limit = reconcile.DefaultLimit
	}
	return &service{repo: params.Repo, gateway: params.Gateway, logg: params.Logger, listLimit: limit}, nil
}

// Create registers the plan remotely under an upper-case local code. A code
// already taken locally is rejected before the gateway is called.
func (s *service) Create(ctx context.Context, input CreateInput) (*PlanResponse, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	code := NormalizeCode(input.Code)

	existing, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup plan code")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan code already exists").
			WithDetails(map[string]string{"code": code})
	}

	currency, err := enums.ParseCurrency(input.Currency)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid currency")
	}
	amount, err := money.ToMinorUnits(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid amount")
	}
	initialAmount, err := money.ToMinorUnits(input.InitialCycles.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid initial cycle amount")
	}

	metadata := reconcile.MergeMetadata(input.Metadata, map[string]any{"code": code})
	remote, err := s.gateway.CreatePlan(ctx, gateway.PlanCreateParams{
		Name:             input.Name,
		ShortName:        input.ShortName,
		Description:      input.Description,
		Amount:           amount,
		Currency:         currency.String(),
		IntervalUnitTime: input.IntervalUnit,
		IntervalCount:    input.IntervalCount,
		Limit:            input.Limit,
		InitialCycles: gateway.InitialCycles{
			Count:            input.InitialCycles.Count,
			HasInitialCharge: input.InitialCycles.HasInitialCharge,
			Amount:           initialAmount,
			IntervalUnitTime: input.InitialCycles.IntervalUnit,
		},
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	row := newMirror(code, input, currency, remote)
	if err := s.repo.Create(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, remote.ID, remote, err)
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "plan code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist plan")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayPlanID), "plan created")
	resp := toResponse(*row)
	return &resp, nil
}

func (s *service) Get(ctx context.Context, ref string) (*PlanResponse, error) {
	row, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.refresh(ctx, *row)
	if err != nil {
		if !reconcile.Transient(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithResource(ctx, resourceKind, row.GatewayPlanID), "serving cached plan: "+err.Error())
		refreshed = *row
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

func (s *service) List(ctx context.Context, activeOnly bool, params pagination.Params) (reconcile.ListResult[PlanResponse], error) {
	rows, next, err := s.repo.List(ctx, ListQuery{ActiveOnly: activeOnly, Pagination: params})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return reconcile.ListResult[PlanResponse]{}, err
		}
		return reconcile.ListResult[PlanResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list plans")
	}

	res, refreshErr := reconcile.Prefix(ctx, rows, s.listLimit,
		func(p models.Plan) string { return p.GatewayPlanID },
		s.refresh)
	if refreshErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stale", res.Stale), "plan list served partially from cache: "+refreshErr.Error())
	}

	out := reconcile.ListResult[PlanResponse]{
		Items:             make([]PlanResponse, 0, len(res.Items)),
		ReconciledThrough: res.ReconciledThrough,
		Stale:             res.Stale,
		NextCursor:        pagination.EncodeNext(next),
	}
	for _, row := range res.Items {
		out.Items = append(out.Items, toResponse(row))
	}
	return out, nil
}

func (s *service) Update(ctx context.Context, ref string, input UpdateInput) (*PlanResponse, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.Name == nil && input.ShortName == nil && input.Description == nil && len(input.Metadata) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "nothing to update")
	}
	return s.update(ctx, ref, gateway.PlanUpdateParams{
		Name:        input.Name,
		ShortName:   input.ShortName,
		Description: input.Description,
		Metadata:    input.Metadata,
	})
}

func (s *service) Activate(ctx context.Context, ref string) (*PlanResponse, error) {
	return s.setStatus(ctx, ref, enums.PlanStatusActive)
}

func (s *service) Deactivate(ctx context.Context, ref string) (*PlanResponse, error) {
	return s.setStatus(ctx, ref, enums.PlanStatusInactive)
}

func (s *service) setStatus(ctx context.Context, ref string, status enums.PlanStatus) (*PlanResponse, error) {
	value := int(status)
	return s.update(ctx, ref, gateway.PlanUpdateParams{Status: &value})
}

func (s *service) update(ctx context.Context, ref string, params gateway.PlanUpdateParams) (*PlanResponse, error) {
	row, err := s.find(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan is deleted")
	}

	remote, err := s.gateway.UpdatePlan(ctx, row.GatewayPlanID, params)
	if err != nil {
		return nil, err
	}

	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&row.Name, params.Name)
	assign(&row.ShortName, params.ShortName)
	assign(&row.Description, params.Description)
	if params.Status != nil {
		row.Status = enums.PlanStatus(*params.Status)
	}
	applyRemote(row, remote)
	if params.Metadata != nil {
		row.Metadata = reconcile.MergeMetadata(row.Metadata, params.Metadata)
	}
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayPlanID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist plan update")
	}
	resp := toResponse(*row)
	return &resp, nil
}

// Delete removes the plan remotely and deactivates the mirror. Plans that
// still carry active subscriptions cannot be deleted.
func (s *service) Delete(ctx context.Context, ref string) error {
	row, err := s.find(ctx, ref)
	if err != nil {
		return err
	}
	if !row.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	total, err := s.repo.Recount(ctx, row.ID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count plan subscriptions")
	}
	row.TotalSubscriptions = total
	if total > 0 {
		return pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan has active subscriptions").
			WithDetails(map[string]int64{"total_subscriptions": total})
	}

	deleted, err := s.gateway.DeletePlan(ctx, row.GatewayPlanID)
	if err != nil {
		return err
	}
	row.IsActive = false
	row.Status = enums.PlanStatusInactive
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayPlanID, deleted, err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate plan")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayPlanID), "plan deleted")
	return nil
}

// RecountSubscriptions stores the plan's active subscription count. It only
// reads the local mirror.
func (s *service) RecountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error) {
	if planID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan id is required")
	}
	total, err := s.repo.Recount(ctx, planID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "recount plan subscriptions")
	}
	return total, nil
}

func (s *service) find(ctx context.Context, ref string) (*models.Plan, error) {
	if NormalizeCode(ref) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan code or id is required")
	}
	row, err := s.repo.FindByRef(ctx, ref)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	return row, nil
}

func (s *service) refresh(ctx context.Context, row models.Plan) (models.Plan, error) {
	if !row.IsActive {
		return row, nil
	}
	remote, err := s.gateway.GetPlan(ctx, row.GatewayPlanID)
	if err != nil {
		return row, err
	}
	if !applyRemote(&row, remote) {
		return row, nil
	}
	if err := s.repo.Update(ctx, &row); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled plan")
	}
	return row, nil
}
