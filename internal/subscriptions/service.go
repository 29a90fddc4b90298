package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/pkg/db"
	"github.com/angelmondragon/gatewaysync/pkg/db/models"
	"github.com/angelmondragon/gatewaysync/pkg/enums"
	pkgerrors "github.com/angelmondragon/gatewaysync/pkg/errors"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/lock"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/pagination"
	"github.com/angelmondragon/gatewaysync/pkg/validate"
)

const (
	resourceKind = "subscription"

	// DefaultUpcomingWindow bounds the upcoming-billing report.
	DefaultUpcomingWindow = 7 * 24 * time.Hour
)

// Gateway is the slice of the gateway client the orchestrator uses.
type Gateway interface {
	CreateSubscription(ctx context.Context, params gateway.SubscriptionCreateParams) (*gateway.Subscription, error)
	GetSubscription(ctx context.Context, id string) (*gateway.Subscription, error)
	UpdateSubscription(ctx context.Context, id string, params gateway.SubscriptionUpdateParams) (*gateway.Subscription, error)
	CancelSubscription(ctx context.Context, id string) (*gateway.Deleted, error)
}

type customerLookup interface {
	FindActiveByUser(ctx context.Context, userID string) (*models.Customer, error)
}

type cardLookup interface {
	FindOwned(ctx context.Context, userID, gatewayID string) (*models.Card, error)
}

type planLookup interface {
	FindByRef(ctx context.Context, ref string) (*models.Plan, error)
}

type planCounter interface {
	RecountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error)
}

// Service orchestrates subscriptions across customers, cards and plans.
type Service interface {
	Create(ctx context.Context, userID string, input CreateInput) (*SubscriptionResponse, error)
	Get(ctx context.Context, userID, gatewayID string) (*SubscriptionResponse, error)
	List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[SubscriptionResponse], error)
	Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*SubscriptionResponse, error)
	Cancel(ctx context.Context, userID, gatewayID string) (*SubscriptionResponse, error)
	Summary(ctx context.Context) (*Summary, error)
	// ReconcileOpen refreshes up to limit non-terminal subscriptions that
	// follow the after cursor, wrapping to the first open row when the tail
	// runs short. The result's NextCursor feeds the next sweep.
	ReconcileOpen(ctx context.Context, after string, limit int) (reconcile.ListResult[SubscriptionResponse], error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo               Repository
	Customers          customerLookup
	Cards              cardLookup
	Plans              planLookup
	PlanCounter        planCounter
	Gateway            Gateway
	Locker             lock.Locker
	Logger             *logger.Logger
	Now                func() time.Time
	UpcomingWindow     time.Duration
	ListReconcileLimit int
}

type service struct {
	repo      Repository
	customers customerLookup
	cards     cardLookup
	plans     planLookup
	counter   planCounter
	gateway   Gateway
	locker    lock.Locker
	logg      *logger.Logger
	now       func() time.Time
	window    time.Duration
	listLimit int
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, errors.New("subscription repository required")
	case params.Customers == nil:
		return nil, errors.New("customer lookup required")
	case params.Cards == nil:
		return nil, errors.New("card lookup required")
	case params.Plans == nil:
		return nil, errors.New("plan lookup required")
	case params.PlanCounter == nil:
		return nil, errors.New("plan counter required")
	case params.Gateway == nil:
		return nil, errors.New("subscription gateway required")
	case params.Locker == nil:
		return nil, errors.New("locker required")
	case params.Logger == nil:
		return nil, errors.New("logger required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	window := params.UpcomingWindow
	if window <= 0 {
		window = DefaultUpcomingWindow
	}
	limit := params.ListReconcileLimit
	if limit <= 0 {
		limit = reconcile.DefaultLimit
	}
	return &service{
		repo:      params.Repo,
		customers: params.Customers,
		cards:     params.Cards,
		plans:     params.Plans,
		counter:   params.PlanCounter,
		gateway:   params.Gateway,
		locker:    params.Locker,
		logg:      params.Logger,
		now:       now,
		window:    window,
		listLimit: limit,
	}, nil
}

// LockKey names the advisory lock serializing creation per (user, plan).
func LockKey(userID string, planID uuid.UUID) string {
	return fmt.Sprintf("subscription:%s:%s", userID, planID)
}

// Create runs the gates in order (customer, card, plan, existing active
// subscription) and only then calls the gateway.
func (s *service) Create(ctx context.Context, userID string, input CreateInput) (*SubscriptionResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	if err := validate.Struct(input); err != nil {
		return nil, err
	}

	customer, err := s.customers.FindActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active customer")
	}
	if customer == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user has no active customer")
	}

	card, err := s.ownedCard(ctx, userID, input.CardID, customer)
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.FindByRef(ctx, input.Plan)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load plan")
	}
	if plan == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if !plan.IsActive || plan.Status != enums.PlanStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "plan is not accepting subscriptions")
	}

	l, err := s.locker.NewLock(LockKey(userID, plan.ID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build subscription lock")
	}
	acquired, err := l.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "acquire subscription lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "a subscription to this plan is already being created")
	}
	defer func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Warn(ctx, "release subscription lock: "+err.Error())
		}
	}()

	existing, err := s.repo.FindActiveForUserPlan(ctx, userID, plan.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active subscription")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user already has an active subscription to this plan").
			WithDetails(map[string]string{"gateway_subscription_id": existing.GatewaySubscriptionID})
	}

	remote, err := s.gateway.CreateSubscription(ctx, gateway.SubscriptionCreateParams{
		CardID:   card.GatewayCardID,
		PlanID:   plan.GatewayPlanID,
		TyC:      input.AcceptTerms,
		Metadata: input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	row := &models.Subscription{
		GatewaySubscriptionID: remote.ID,
		UserID:                userID,
		CustomerID:            customer.ID,
		CardID:                card.ID,
		PlanID:                plan.ID,
		Status:                enums.SubscriptionStatusCreated,
		IsActive:              true,
		Metadata:              input.Metadata,
	}
	applyRemote(row, remote)
	if err := s.repo.Create(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, remote.ID, remote, err)
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "user already has an active subscription to this plan")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewaySubscriptionID), "subscription created")

	s.recount(ctx, plan.ID)
	resp := toResponse(*row, s.now())
	return &resp, nil
}

func (s *service) Get(ctx context.Context, userID, gatewayID string) (*SubscriptionResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	refreshed, err := s.refresh(ctx, *row)
	if err != nil {
		if !reconcile.Transient(err) {
			return nil, err
		}
		s.logg.Warn(s.logg.WithResource(ctx, resourceKind, row.GatewaySubscriptionID), "serving cached subscription: "+err.Error())
		refreshed = *row
	}
	resp := toResponse(refreshed, s.now())
	return &resp, nil
}

func (s *service) List(ctx context.Context, userID string, params pagination.Params) (reconcile.ListResult[SubscriptionResponse], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return reconcile.ListResult[SubscriptionResponse]{}, pkgerrors.New(pkgerrors.CodeInvalidRequest, "user id is required")
	}
	rows, next, err := s.repo.List(ctx, ListQuery{UserID: userID, Pagination: params})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return reconcile.ListResult[SubscriptionResponse]{}, err
		}
		return reconcile.ListResult[SubscriptionResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list subscriptions")
	}
	out := s.reconcileRows(ctx, rows, s.listLimit)
	out.NextCursor = pagination.EncodeNext(next)
	return out, nil
}

func (s *service) ReconcileOpen(ctx context.Context, after string, limit int) (reconcile.ListResult[SubscriptionResponse], error) {
	if limit <= 0 {
		limit = pagination.MaxLimit
	}
	cursor := uuid.Nil
	if after != "" {
		parsed, err := uuid.Parse(after)
		if err != nil {
			return reconcile.ListResult[SubscriptionResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInvalidRequest, err, "invalid reconcile cursor")
		}
		cursor = parsed
	}
	rows, err := s.openAfter(ctx, cursor, limit)
	if err != nil {
		return reconcile.ListResult[SubscriptionResponse]{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list open subscriptions")
	}
	out := s.reconcileRows(ctx, rows, len(rows))
	if len(rows) > 0 {
		out.NextCursor = rows[len(rows)-1].ID.String()
	}
	return out, nil
}

// openAfter reads the open rows past cursor and tops the batch up from the
// start of the keyspace so every open row is visited within a few sweeps.
func (s *service) openAfter(ctx context.Context, cursor uuid.UUID, limit int) ([]models.Subscription, error) {
	rows, err := s.repo.ListOpen(ctx, cursor, limit)
	if err != nil || cursor == uuid.Nil || len(rows) >= limit {
		return rows, err
	}
	head, err := s.repo.ListOpen(ctx, uuid.Nil, limit-len(rows))
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]struct{}, len(rows))
	for _, row := range rows {
		seen[row.ID] = struct{}{}
	}
	for _, row := range head {
		if _, ok := seen[row.ID]; !ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *service) reconcileRows(ctx context.Context, rows []models.Subscription, limit int) reconcile.ListResult[SubscriptionResponse] {
	res, refreshErr := reconcile.Prefix(ctx, rows, limit,
		func(sub models.Subscription) string { return sub.GatewaySubscriptionID },
		s.refresh)
	if refreshErr != nil {
		s.logg.Warn(s.logg.WithField(ctx, "stale", res.Stale), "subscriptions served partially from cache: "+refreshErr.Error())
	}

	now := s.now()
	out := reconcile.ListResult[SubscriptionResponse]{
		Items:             make([]SubscriptionResponse, 0, len(res.Items)),
		ReconciledThrough: res.ReconciledThrough,
		Stale:             res.Stale,
	}
	for _, row := range res.Items {
		out.Items = append(out.Items, toResponse(row, now))
	}
	return out
}

// Update swaps the card and/or merges metadata on a live subscription.
func (s *service) Update(ctx context.Context, userID, gatewayID string, input UpdateInput) (*SubscriptionResponse, error) {
	if err := validate.Struct(input); err != nil {
		return nil, err
	}
	if input.CardID == nil && len(input.Metadata) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "nothing to update")
	}
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	if !row.Status.Cancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "subscription is "+row.Status.String())
	}

	params := gateway.SubscriptionUpdateParams{Metadata: input.Metadata}
	var card *models.Card
	if input.CardID != nil {
		customer, err := s.customers.FindActiveByUser(ctx, row.UserID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup active customer")
		}
		if customer == nil || customer.ID != row.CustomerID {
			return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "subscription customer is no longer active")
		}
		if card, err = s.ownedCard(ctx, row.UserID, *input.CardID, customer); err != nil {
			return nil, err
		}
		params.CardID = &card.GatewayCardID
	}

	remote, err := s.gateway.UpdateSubscription(ctx, row.GatewaySubscriptionID, params)
	if err != nil {
		return nil, err
	}
	if card != nil {
		row.CardID = card.ID
	}
	applyRemote(row, remote)
	if input.Metadata != nil {
		row.Metadata = reconcile.MergeMetadata(row.Metadata, input.Metadata)
	}
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewaySubscriptionID, remote, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription update")
	}
	resp := toResponse(*row, s.now())
	return &resp, nil
}

// Cancel ends the subscription remotely, then marks the mirror cancelled.
func (s *service) Cancel(ctx context.Context, userID, gatewayID string) (*SubscriptionResponse, error) {
	row, err := s.owned(ctx, userID, gatewayID)
	if err != nil {
		return nil, err
	}
	if !row.Status.Cancellable() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "subscription is already "+row.Status.String())
	}

	deleted, err := s.gateway.CancelSubscription(ctx, row.GatewaySubscriptionID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	row.IsActive = false
	row.Status = enums.SubscriptionStatusCancelled
	row.CancelledAt = &now
	if err := s.repo.Update(ctx, row); err != nil {
		reconcile.Compensate(ctx, s.logg, resourceKind, row.GatewaySubscriptionID, deleted, err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist subscription cancellation")
	}
	s.logg.Info(s.logg.WithResource(ctx, resourceKind, row.GatewaySubscriptionID), "subscription cancelled")

	s.recount(ctx, row.PlanID)
	resp := toResponse(*row, now)
	return &resp, nil
}

// Summary reports on the local mirror without contacting the gateway.
func (s *service) Summary(ctx context.Context) (*Summary, error) {
	now := s.now()

	byStatus, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count subscriptions by status")
	}
	inTrial, err := s.repo.CountInTrial(ctx, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count trial subscriptions")
	}
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	amounts, err := s.repo.ActivePlanAmounts(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum current month revenue")
	}
	upcoming, err := s.repo.UpcomingBillings(ctx, now, now.Add(s.window))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list upcoming billings")
	}

	summary := &Summary{
		GeneratedAt:         now,
		Source:              SourceLocalMirror,
		ByStatus:            make(map[string]int64, len(byStatus)),
		InTrial:             inTrial,
		CurrentMonthRevenue: map[enums.Currency]decimal.Decimal{},
		UpcomingWindow:      s.window.String(),
		UpcomingBillings:    upcoming,
	}
	for _, status := range enums.SubscriptionStatuses() {
		summary.ByStatus[status.String()] = byStatus[status]
		summary.Total += byStatus[status]
	}
	for _, a := range amounts {
		summary.CurrentMonthRevenue[a.Currency] = summary.CurrentMonthRevenue[a.Currency].Add(a.Amount)
	}
	if summary.UpcomingBillings == nil {
		summary.UpcomingBillings = []UpcomingBilling{}
	}
	return summary, nil
}

// recount refreshes the plan's subscription total. Failures are logged and
// never fail the caller.
func (s *service) recount(ctx context.Context, planID uuid.UUID) {
	if _, err := s.counter.RecountSubscriptions(ctx, planID); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "plan_id", planID.String()), "plan subscription recount failed", err)
	}
}

func (s *service) ownedCard(ctx context.Context, userID, cardID string, customer *models.Customer) (*models.Card, error) {
	card, err := s.cards.FindOwned(ctx, userID, strings.TrimSpace(cardID))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load card")
	}
	if card == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "card not found")
	}
	if !card.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "card is deleted")
	}
	if card.CustomerID != customer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "card does not belong to the active customer")
	}
	return card, nil
}

func (s *service) owned(ctx context.Context, userID, gatewayID string) (*models.Subscription, error) {
	gatewayID = strings.TrimSpace(gatewayID)
	if gatewayID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidRequest, "subscription id is required")
	}
	row, err := s.repo.FindByGatewayID(ctx, gatewayID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load subscription")
	}
	if row == nil || row.UserID != strings.TrimSpace(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}
	return row, nil
}

func (s *service) refresh(ctx context.Context, row models.Subscription) (models.Subscription, error) {
	remote, err := s.gateway.GetSubscription(ctx, row.GatewaySubscriptionID)
	if err != nil {
		return row, err
	}
	if !applyRemote(&row, remote) {
		return row, nil
	}
	if err := s.repo.Update(ctx, &row); err != nil {
		return row, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "persist reconciled subscription")
	}
	return row, nil
}
