package customers

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
	"github.com/angelmondragon/gatewaysync/pkg/validate"
)

const resourceKind = "customer"

// Gateway is the slice of the gateway client the customer synchronizer uses.
type Gateway interface {
	CreateCustomer(ctx context.Context, params gateway.CustomerCreateParams) (*gateway.Customer, error)
	GetCustomer(ctx context.Context, id string) (*gateway.Customer, error)
	UpdateCustomer(ctx context.Context, id string, params gateway.CustomerUpdateParams) (*gateway.Customer, error)
	DeleteCustomer(ctx context.Context, id string) (*gateway.Deleted, error)
}

// Service keeps the local customer mirror in step with the gateway.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (*CustomerResponse, error)
	Get(ctx context.Context, userID, gatewayID string) (*CustomerResponse, error)
	GetForUser(ctx context.Context, userID string) (*CustomerResponse, error)
	List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[CustomerResponse], error)
	// ListAll pages every user's customers. It is an operator view, not
	// scoped to a caller.
	ListAll(ctx context.Context, params pagination.Params) (reconcile.ListResult[CustomerResponse], error)
	Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*CustomerResponse, error)
	Delete(ctx context.Context, userID, gatewayID string) error
}

// ServiceParams groups dependencies for the customer service.
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
		return nil, errors.New("customer repository required")
	}
	if params.Gateway == nil {
		return nil, errors.New("customer gateway required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	limit := params.ListReconcileLimit
	if limit <= 0 {
		limit = reconcile.DefaultLimit
	}
	return &service{
		repo:      params.Repo,
		gateway:   params.Gateway,
		logg:      params.Logger,
		listLimit: limit,
	}, nil
}

// Create registers the user with the gateway and mirrors the result. A user
// holds at most one active customer.
func (s *service) Create(ctx context.Context, userID string, input CreateInput) (*CustomerResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active customer")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user already has an active customer").
			WithDetails(map[string]string{"gateway_customer_id": existing.GatewayCustomerID})
	}

	remote, err := s.gateway.CreateCustomer(ctx, gateway.CustomerCreateParams{
		FirstName:   input.FirstName,
		LastName:    input.LastName,
		Email:       input.Email,
		Address:     input.Address,
		AddressCity: input.AddressCity,
		CountryCode: input.CountryCode,
		PhoneNumber: input.PhoneNumber,
		Metadata:    input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	row := newMirror(userID, remote, input)
	if err := s.repo.Create(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, remote.ID, remote, err)
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "user already has an active customer")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist customer")
	}

	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayCustomerID), "customer created")
	resp := toResponse(*row)
	return &resp, nil
}

// Get returns the reconciled customer owned by userID.
func (s *service) Get(ctx context.Context, userID, gatewayID string) (*CustomerResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	return s.reconcileOne(ctx, row)
}

// GetForUser returns the user's active customer, reconciled.
func (s *service) GetForUser(ctx context.Context, userID string) (*CustomerResponse, error) {
	row, err := s.repo.FindActiveByUser(ctx, strings.TrimSpace(userID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active customer")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return s.reconcileOne(ctx, row)
}

// List pages the user's customers newest first and refreshes the leading
// rows from the gateway.
func (s *service) List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[CustomerResponse], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return reconcile.ListResult[CustomerResponse]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	return s.list(ctx, ListQuery{UserID: userID, Pagination: params})
}

func (s *service) ListAll(ctx context.Context, params pagination.Params) (reconcile.ListResult[CustomerResponse], error) {
	return s.list(ctx, ListQuery{Pagination: params})
}

func (s *service) list(ctx context.Context, query ListQuery) (reconcile.ListResult[CustomerResponse], error) {
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return reconcile.ListResult[CustomerResponse]{}, err
		}
		return reconcile.ListResult[CustomerResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list customers")
	}

	res, refreshErr := reconcile.Prefix(ctx, rows, s.listLimit,
		func(c models.Customer) string { return c.GatewayCustomerID },
		s.refresh)
	if refreshErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stale", res.Stale), "customer list served partially from cache: "+refreshErr.Error())
	}

	out := reconcile.ListResult[CustomerResponse]{
		Items:             make([]CustomerResponse, 0, len(res.Items)),
		ReconciledThrough: res.ReconciledThrough,
		Stale:             res.Stale,
		NextCursor:        pagination.EncodeNext(next),
	}
	for _, row := range res.Items {
		out.Items = append(out.Items, toResponse(row))
	}
	return out, nil
}

// Update patches the customer remotely, then merges the result into the mirror.
func (s *service) Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*CustomerResponse, error) {
	input = input.normalized()
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.empty() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "nothing to update")
	}
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "customer is deleted")
	}

	remote, err := s.gateway.UpdateCustomer(ctx, row.GatewayCustomerID, updateParams(input))
	if err != nil {
		return nil, err
	}

	applyInput(row, input)
	applyRemote(row, remote)
	if input.Metadata != nil {
		row.Metadata = reconcile.MergeMetadata(row.Metadata, input.Metadata)
	}
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayCustomerID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist customer update")
	}
	resp := toResponse(*row)
	return &resp, nil
}

// Delete removes the customer remotely and deactivates the mirror row.
func (s *service) Delete(ctx context.Context, userID, gatewayID string) error {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return err
	}
	if !row.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	deleted, err := s.gateway.DeleteCustomer(ctx, row.GatewayCustomerID)
	if err != nil {
		return err
	}

	row.IsActive = false
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayCustomerID, deleted, err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate customer")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayCustomerID), "customer deleted")
	return nil
}

func (s *service) owned(ctx context.Context, userID, gatewayID string) (*models.Customer, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "customer id is required")
	}
	row, err := s.repo.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	if row == nil || row.UserID != strings.TrimSpace(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
	}
	return row, nil
}

// reconcileOne refreshes a single row. Temporary gateway failures fall back
// to the cached row.
func (s *service) reconcileOne(ctx context.Context, row *models.Customer) (*CustomerResponse, error) {
	refreshed, err := s.refresh(ctx, *row)
	if err != nil {
		if !reconcile.Transient(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithResource(ctx, resourceKind, row.GatewayCustomerID), "serving cached customer: "+err.Error())
		refreshed = *row
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

// refresh leaves deleted rows alone: the gateway no longer has them and the
// mirror holds their final state.
func (s *service) refresh(ctx context.Context, row models.Customer) (models.Customer, error) {
	if !row.IsActive {
		return row, nil
	}
	remote, err := s.gateway.GetCustomer(ctx, row.GatewayCustomerID)
	if err != nil {
		return row, err
	}
	if !applyRemote(&row, remote) {
		return row, nil
	}
	if err := s.repo.Update(ctx, &row); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled customer")
	}
	return row, nil
}

func applyInput(row *models.Customer, in UpdateInput) {
	assign := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	assign(&row.FirstName, in.FirstName)
	assign(&row.LastName, in.LastName)
	assign(&row.Email, in.Email)
	assign(&row.Address, in.Address)
	assign(&row.AddressCity, in.AddressCity)
	assign(&row.PhoneNumber, in.PhoneNumber)
	assign(&row.CountryCode, in.CountryCode)
}
