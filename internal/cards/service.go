package cards

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
	"github.com/angelmondragon/gatewaysync/pkg/validate"
)

const resourceKind = "card"

// Gateway is the slice of the gateway client the card synchronizer uses.
type Gateway interface {
	CreateCard(ctx context.Context, params gateway.CardCreateParams) (gateway.CreateResult[gateway.Card], error)
	GetCard(ctx context.Context, id string) (*gateway.Card, error)
	UpdateCard(ctx context.Context, id string, params gateway.CardUpdateParams) (*gateway.Card, error)
	DeleteCard(ctx context.Context, id string) (*gateway.Deleted, error)
}

type tokenValidator interface {
	Require(ctx context.Context, tokenID string) (*gateway.Token, error)
}

type customerLookup interface {
	FindActiveByUser(ctx context.Context, userID string) (*models.Customer, error)
}

// Service keeps the local card mirror in step with the gateway.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (*CreateResponse, error)
	Get(ctx context.Context, userID, gatewayID string) (*CardResponse, error)
	List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[CardResponse], error)
	Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*CardResponse, error)
	Delete(ctx context.Context, userID, gatewayID string) error
}

// ServiceParams groups dependencies for the card service.
type ServiceParams struct {
	Repo               Repository
	Customers          customerLookup
	Tokens             tokenValidator
	Gateway            Gateway
	Logger             *logger.Logger
	ListReconcileLimit int
}

type service struct {
	repo      Repository
	customers customerLookup
	tokens    tokenValidator
	gateway   Gateway
	logg      *logger.Logger
	listLimit int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("card repository required")
	}
	if params.Customers == nil {
		return nil, errors.New("customer lookup required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token validator required")
	}
	if params.Gateway == nil {
		return nil, errors.New("card gateway required")
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
		customers: params.Customers,
		tokens:    params.Tokens,
		gateway:   params.Gateway,
		logg:      params.Logger,
		listLimit: limit,
	}, nil
}

// Create validates the token, attaches it to the user's active customer and
// mirrors the card. A 3DS challenge is returned as-is and nothing is stored.
func (s *service) Create(ctx context.Context, userID string, input CreateInput) (*CreateResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	token, err := s.tokens.Require(ctx, input.TokenID)
	if err != nil {
		return nil, err
	}
	customer, err := s.customers.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active customer")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no active customer")
	}

	res, err := s.gateway.CreateCard(ctx, gateway.CardCreateParams{
		CustomerID:        customer.GatewayCustomerID,
		TokenID:           input.TokenID,
		Validate:          input.Validate,
		Authentication3DS: input.Authentication3DS,
		Metadata:          input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if res.Challenged() {
		s.logg.Info(s.logg.WithResource(ctx, "token", input.TokenID), "card creation requires 3ds challenge")
		return &CreateResponse{Outcome: res.Outcome.String(), Challenge: res.Challenge, TrackingID: res.TrackingID}, nil
	}

	row := newMirror(customer.ID, input.TokenID, token, res.Resource, input.Metadata)
	if err := s.repo.Create(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, res.Resource.ID, res.Resource, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist card")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayCardID), "card created")

	card := toResponse(*row)
	return &CreateResponse{Outcome: res.Outcome.String(), Card: &card, TrackingID: res.TrackingID}, nil
}

func (s *service) Get(ctx context.Context, userID, gatewayID string) (*CardResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.refresh(ctx, *row)
	if err != nil {
		if !reconcile.Transient(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithResource(ctx, resourceKind, row.GatewayCardID), "serving cached card: "+err.Error())
		refreshed = *row
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

// List pages the user's cards newest first, refreshing the leading rows.
func (s *service) List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[CardResponse], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return reconcile.ListResult[CardResponse]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	rows, next, err := s.repo.List(ctx, ListQuery{UserID: userID, Pagination: params})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return reconcile.ListResult[CardResponse]{}, err
		}
		return reconcile.ListResult[CardResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list cards")
	}

	res, refreshErr := reconcile.Prefix(ctx, rows, s.listLimit,
		func(c models.Card) string { return c.GatewayCardID },
		s.refresh)
	if refreshErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stale", res.Stale), "card list served partially from cache: "+refreshErr.Error())
	}

	out := reconcile.ListResult[CardResponse]{
		Items:             make([]CardResponse, 0, len(res.Items)),
		ReconciledThrough: res.ReconciledThrough,
		Stale:             res.Stale,
		NextCursor:        pagination.EncodeNext(next),
	}
	for _, row := range res.Items {
		out.Items = append(out.Items, toResponse(row))
	}
	return out, nil
}

// Update swaps the token and/or merges metadata. A new token is validated
// before the gateway is touched.
func (s *service) Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*CardResponse, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.TokenID == nil && len(input.Metadata) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "nothing to update")
	}
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	if !row.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "card is deleted")
	}

	var token *gateway.Token
	if input.TokenID != nil {
		if token, err = s.tokens.Require(ctx, *input.TokenID); err != nil {
			return nil, err
		}
	}

	remote, err := s.gateway.UpdateCard(ctx, row.GatewayCardID, gateway.CardUpdateParams{
		TokenID:  input.TokenID,
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	if input.TokenID != nil {
		row.TokenID = *input.TokenID
		applyToken(row, token)
	}
	applyRemote(row, remote)
	if input.Metadata != nil {
		row.Metadata = reconcile.MergeMetadata(row.Metadata, input.Metadata)
	}
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayCardID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist card update")
	}
	resp := toResponse(*row)
	return &resp, nil
}

func (s *service) Delete(ctx context.Context, userID, gatewayID string) error {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return err
	}
	if !row.IsActive {
		return pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
	}
	deleted, err := s.gateway.DeleteCard(ctx, row.GatewayCardID)
	if err != nil {
		return err
	}
	row.IsActive = false
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayCardID, deleted, err)
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate card")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayCardID), "card deleted")
	return nil
}

func (s *service) owned(ctx context.Context, userID, gatewayID string) (*models.Card, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "card id is required")
	}
	row, err := s.repo.FindOwned(ctx, strings.TrimSpace(userID), gatewayID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card")
	}
	if row == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
	}
	return row, nil
}

func (s *service) refresh(ctx context.Context, row models.Card) (models.Card, error) {
	if !row.IsActive {
		return row, nil
	}
	remote, err := s.gateway.GetCard(ctx, row.GatewayCardID)
	if err != nil {
		return row, err
	}
	if !applyRemote(&row, remote) {
		return row, nil
	}
	if err := s.repo.Update(ctx, &row); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled card")
	}
	return row, nil
}
