package charges

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/money"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
	"github.com/angelmondragon/gatewaysync/pkg/validate"
)

const (
	resourceKind = "charge"

	// DefaultMinAmount is the smallest charge the gateway accepts, in minor units.
	DefaultMinAmount int64 = 100
)

// Gateway is the slice of the gateway client the charge synchronizer uses.
type Gateway interface {
	CreateCharge(ctx context.Context, params gateway.ChargeCreateParams) (gateway.CreateResult[gateway.Charge], error)
	GetCharge(ctx context.Context, id string) (*gateway.Charge, error)
	UpdateCharge(ctx context.Context, id string, params gateway.ChargeUpdateParams) (*gateway.Charge, error)
	CaptureCharge(ctx context.Context, id string) (*gateway.Charge, error)
}

type tokenValidator interface {
	Require(ctx context.Context, tokenID string) (*gateway.Token, error)
}

type cardLookup interface {
	FindOwned(ctx context.Context, userID, gatewayID string) (*models.Card, error)
}

// Service keeps the local charge mirror in step with the gateway.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (*CreateResponse, error)
	Get(ctx context.Context, userID, gatewayID string) (*ChargeResponse, error)
	List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[ChargeResponse], error)
	Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*ChargeResponse, error)
	Capture(ctx context.Context, userID, gatewayID string) (*ChargeResponse, error)
}

// ServiceParams groups dependencies for the charge service.
type ServiceParams struct {
	Repo               Repository
	Cards              cardLookup
	Tokens             tokenValidator
	Gateway            Gateway
	Logger             *logger.Logger
	MinAmount          int64
	DefaultCurrency    string
	ListReconcileLimit int
}

type service struct {
	repo            Repository
	cards           cardLookup
	tokens          tokenValidator
	gateway         Gateway
	logg            *logger.Logger
	minAmount       int64
	defaultCurrency enums.Currency
	listLimit       int
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, errors.New("charge repository required")
	}
	if params.Cards == nil {
		return nil, errors.New("card lookup required")
	}
	if params.Tokens == nil {
		return nil, errors.New("token validator required")
	}
	if params.Gateway == nil {
		return nil, errors.New("charge gateway required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	currency := enums.CurrencyPEN
	if strings.TrimSpace(params.DefaultCurrency) != "" {
		parsed, err := enums.ParseCurrency(params.DefaultCurrency)
		if err != nil {
			return nil, err
		}
		currency = parsed
	}
	minAmount := params.MinAmount
	if minAmount <= 0 {
		minAmount = DefaultMinAmount
	}
	limit := params.ListReconcileLimit
	if limit <= 0 {
		limit = reconcile.DefaultLimit
	}
	return &service{
		repo:            params.Repo,
		cards:           params.Cards,
		tokens:          params.Tokens,
		gateway:         params.Gateway,
		logg:            params.Logger,
		minAmount:       minAmount,
		defaultCurrency: currency,
		listLimit:       limit,
	}, nil
}

// Create checks the amount and the source locally, then charges it. A 3DS
// challenge is returned as-is and nothing is stored.
func (s *service) Create(ctx context.Context, userID string, input CreateInput) (*CreateResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	minor, err := money.ToMinorUnits(input.Amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid amount").
			WithDetails(map[string]string{"amount": err.Error()})
	}
	if minor < s.minAmount {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "amount below minimum").
			WithDetails(map[string]string{"amount": fmt.Sprintf("must be at least %s", money.ToMajorUnits(s.minAmount).StringFixed(2))})
	}

	currency := s.defaultCurrency
	if input.Currency != "" {
		if currency, err = enums.ParseCurrency(input.Currency); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid currency")
		}
	}

	kind, err := s.checkSource(ctx, userID, input.SourceID)
	if err != nil {
		return nil, err
	}

	capture := true
	if input.Capture != nil {
		capture = *input.Capture
	}
	res, err := s.gateway.CreateCharge(ctx, gateway.ChargeCreateParams{
		Amount:            minor,
		CurrencyCode:      currency.String(),
		Email:             input.Email,
		SourceID:          input.SourceID,
		Capture:           capture,
		Description:       input.Description,
		Installments:      input.Installments,
		Authentication3DS: input.Authentication3DS,
		Metadata:          input.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if res.Challenged() {
		s.logg.Info(s.logg.WithField(ctx, "source_id", input.SourceID), "charge requires 3ds challenge")
		return &CreateResponse{Outcome: res.Outcome.String(), Challenge: res.Challenge, TrackingID: res.TrackingID}, nil
	}

	row := newMirror(userID, kind, input, currency, res.Resource)
	if err := row.Validate(); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, res.Resource.ID, res.Resource, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnknownGateway, err, "gateway reported inconsistent charge amounts")
	}
	if err := s.repo.Create(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, res.Resource.ID, res.Resource, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist charge")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayChargeID), "charge created")

	charge := toResponse(*row)
	return &CreateResponse{Outcome: res.Outcome.String(), Charge: &charge, TrackingID: res.TrackingID}, nil
}

// checkSource confirms the user may draw on sourceID: tokens must validate,
// cards must be active and belong to one of the user's customers.
func (s *service) checkSource(ctx context.Context, userID, sourceID string) (enums.SourceKind, error) {
	kind, err := enums.SourceKindOf(sourceID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid source").
			WithDetails(map[string]string{"source_id": "must start with tkn_ or crd_"})
	}
	switch kind {
	case enums.SourceKindToken:
		if _, err := s.tokens.Require(ctx, sourceID); err != nil {
			return "", err
		}
	case enums.SourceKindCard:
		card, err := s.cards.FindOwned(ctx, userID, sourceID)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card")
		}
		if card == nil {
			return "", pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
		}
		if !card.IsActive {
			return "", pkgerrors.New(pkgerrors.CodeInvalidRequest, "card is deleted")
		}
	}
	return kind, nil
}

func (s *service) Get(ctx context.Context, userID, gatewayID string) (*ChargeResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.refresh(ctx, *row)
	if err != nil {
		if !reconcile.Transient(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithResource(ctx, resourceKind, row.GatewayChargeID), "serving cached charge: "+err.Error())
		refreshed = *row
	}
	resp := toResponse(refreshed)
	return &resp, nil
}

func (s *service) List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[ChargeResponse], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return reconcile.ListResult[ChargeResponse]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	rows, next, err := s.repo.List(ctx, ListQuery{UserID: userID, Pagination: params})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return reconcile.ListResult[ChargeResponse]{}, err
		}
		return reconcile.ListResult[ChargeResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list charges")
	}

	res, refreshErr := reconcile.Prefix(ctx, rows, s.listLimit,
		func(c models.Charge) string { return c.GatewayChargeID },
		s.refresh)
	if refreshErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stale", res.Stale), "charge list served partially from cache: "+refreshErr.Error())
	}

	out := reconcile.ListResult[ChargeResponse]{
		Items:             make([]ChargeResponse, 0, len(res.Items)),
		ReconciledThrough: res.ReconciledThrough,
		Stale:             res.Stale,
		NextCursor:        pagination.EncodeNext(next),
	}
	for _, row := range res.Items {
		out.Items = append(out.Items, toResponse(row))
	}
	return out, nil
}

// Update merges metadata. Nothing else on a charge is mutable.
func (s *service) Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*ChargeResponse, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}

	remote, err := s.gateway.UpdateCharge(ctx, row.GatewayChargeID, gateway.ChargeUpdateParams{Metadata: input.Metadata})
	if err != nil {
		return nil, err
	}
	row.Metadata = reconcile.MergeMetadata(row.Metadata, input.Metadata)
	return s.persist(ctx, row, remote, "persist charge update")
}

// Capture settles an authorized charge and merges the capture state.
func (s *service) Capture(ctx context.Context, userID, gatewayID string) (*ChargeResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	if row.Captured {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "charge already captured")
	}

	remote, err := s.gateway.CaptureCharge(ctx, row.GatewayChargeID)
	if err != nil {
		return nil, err
	}
	applyRemote(row, remote)
	resp, err := s.persist(ctx, row, remote, "persist charge capture")
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewayChargeID), "charge captured")
	return resp, nil
}

func (s *service) persist(ctx context.Context, row *models.Charge, remote *gateway.Charge, action string) (*ChargeResponse, error) {
	if err := row.Validate(); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayChargeID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnknownGateway, err, "gateway reported inconsistent charge amounts")
	}
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewayChargeID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, action)
	}
	resp := toResponse(*row)
	return &resp, nil
}

func (s *service) owned(ctx context.Context, userID, gatewayID string) (*models.Charge, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "charge id is required")
	}
	row, err := s.repo.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load charge")
	}
	if row == nil || row.UserID != strings.TrimSpace(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "charge not found")
	}
	return row, nil
}

// refresh keeps the cached row when the gateway reports a refund larger than
// the charge.
func (s *service) refresh(ctx context.Context, row models.Charge) (models.Charge, error) {
	remote, err := s.gateway.GetCharge(ctx, row.GatewayChargeID)
	if err != nil {
		return row, err
	}
	merged := row
	if !applyRemote(&merged, remote) {
		return row, nil
	}
	if err := merged.Validate(); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeUnknownGateway, err, "gateway reported inconsistent charge amounts")
	}
	if err := s.repo.Update(ctx, &merged); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled charge")
	}
	return merged, nil
}
