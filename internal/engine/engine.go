// Package engine wires the synchronizers into one value the RPC dispatcher
// can hold.
package engine

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/angelmondragon/gatewaysync/internal/cards"
	"github.com/angelmondragon/gatewaysync/internal/charges"
	"github.com/angelmondragon/gatewaysync/internal/cron"
	"github.com/angelmondragon/gatewaysync/internal/customers"
	"github.com/angelmondragon/gatewaysync/internal/plans"
	"github.com/angelmondragon/gatewaysync/internal/subscriptions"
	"github.com/angelmondragon/gatewaysync/internal/tokens"
	"github.com/angelmondragon/gatewaysync/pkg/config"
	"github.com/angelmondragon/gatewaysync/pkg/gateway"
	"github.com/angelmondragon/gatewaysync/pkg/lock"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/metrics"
	"github.com/angelmondragon/gatewaysync/pkg/redis"
)

const sweepLockName = "reconcile-sweep"

// Deps are the process-level resources the engine borrows. The caller owns
// and closes them.
type Deps struct {
	DB     *gorm.DB
	Logger *logger.Logger
	// Redis backs the advisory locks. Without it locks are process-local,
	// which is only safe for a single instance.
	Redis *redis.Client
	// Registerer receives gateway and sweep metrics; nil disables them.
	Registerer prometheus.Registerer
	// HTTPClient overrides the gateway transport.
	HTTPClient gateway.Doer
}

// Engine exposes every synchronizer.
type Engine struct {
	Gateway       *gateway.Client
	Tokens        *tokens.Validator
	Customers     customers.Service
	Cards         cards.Service
	Charges       charges.Service
	Plans         plans.Service
	Subscriptions subscriptions.Service

	cfg         config.Config
	logg        *logger.Logger
	redis       *redis.Client
	locker      lock.Locker
	planRepo    plans.Repository
	cronMetrics *metrics.CronJobMetrics
}

func New(cfg *config.Config, deps Deps) (*Engine, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config required")
	case deps.DB == nil:
		return nil, errors.New("database required")
	case deps.Logger == nil:
		return nil, errors.New("logger required")
	}
	logg := deps.Logger

	var gatewayMetrics *metrics.GatewayMetrics
	var cronMetrics *metrics.CronJobMetrics
	if deps.Registerer != nil {
		gatewayMetrics = metrics.NewGatewayMetrics(deps.Registerer)
		cronMetrics = metrics.NewCronJobMetrics(deps.Registerer)
	}

	opts := []gateway.Option{gateway.WithMetrics(gatewayMetrics)}
	if deps.HTTPClient != nil {
		opts = append(opts, gateway.WithHTTPClient(deps.HTTPClient))
	}
	gw, err := gateway.NewClient(cfg.Gateway, logg, opts...)
	if err != nil {
		return nil, fmt.Errorf("gateway client: %w", err)
	}

	locker, err := newLocker(deps.Redis, cfg.Sync)
	if err != nil {
		return nil, err
	}

	tokenValidator, err := tokens.NewValidator(gw, logg)
	if err != nil {
		return nil, err
	}

	limit := cfg.Sync.ListReconcileLimit
	customerRepo := customers.NewRepository(deps.DB)
	cardRepo := cards.NewRepository(deps.DB)
	planRepo := plans.NewRepository(deps.DB)

	customerSvc, err := customers.NewService(customers.ServiceParams{
		Repo:               customerRepo,
		Gateway:            gw,
		Logger:             logg,
		ListReconcileLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("customer service: %w", err)
	}
	cardSvc, err := cards.NewService(cards.ServiceParams{
		Repo:               cardRepo,
		Customers:          customerRepo,
		Tokens:             tokenValidator,
		Gateway:            gw,
		Logger:             logg,
		ListReconcileLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("card service: %w", err)
	}
	chargeSvc, err := charges.NewService(charges.ServiceParams{
		Repo:               charges.NewRepository(deps.DB),
		Cards:              cardRepo,
		Tokens:             tokenValidator,
		Gateway:            gw,
		Logger:             logg,
		MinAmount:          cfg.Sync.MinChargeAmount,
		DefaultCurrency:    cfg.Sync.DefaultCurrency,
		ListReconcileLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("charge service: %w", err)
	}
	planSvc, err := plans.NewService(plans.ServiceParams{
		Repo:               planRepo,
		Gateway:            gw,
		Logger:             logg,
		ListReconcileLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("plan service: %w", err)
	}
	subscriptionSvc, err := subscriptions.NewService(subscriptions.ServiceParams{
		Repo:               subscriptions.NewRepository(deps.DB),
		Customers:          customerRepo,
		Cards:              cardRepo,
		Plans:              planRepo,
		PlanCounter:        planSvc,
		Gateway:            gw,
		Locker:             locker,
		Logger:             logg,
		UpcomingWindow:     cfg.Sync.UpcomingBillingWindow,
		ListReconcileLimit: limit,
	})
	if err != nil {
		return nil, fmt.Errorf("subscription service: %w", err)
	}

	return &Engine{
		Gateway:       gw,
		Tokens:        tokenValidator,
		Customers:     customerSvc,
		Cards:         cardSvc,
		Charges:       chargeSvc,
		Plans:         planSvc,
		Subscriptions: subscriptionSvc,
		cfg:           *cfg,
		logg:          logg,
		redis:         deps.Redis,
		locker:        locker,
		planRepo:      planRepo,
		cronMetrics:   cronMetrics,
	}, nil
}

// Sweep builds the reconcile sweep: plan recounts followed by the refresh of
// open subscriptions, guarded by a lock shared across instances.
func (e *Engine) Sweep() (*cron.Service, error) {
	recount, err := cron.NewPlanRecountJob(cron.PlanRecountJobParams{
		Logger:  e.logg,
		Plans:   e.planRepo,
		Counter: e.Plans,
		Metrics: e.cronMetrics,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := cron.NewSubscriptionReconcileJob(cron.SubscriptionReconcileJobParams{
		Logger:        e.logg,
		Subscriptions: e.Subscriptions,
		Metrics:       e.cronMetrics,
		Limit:         e.cfg.Cron.ReconcileLimit,
	})
	if err != nil {
		return nil, err
	}

	var sweepLock lock.Lock
	if e.redis != nil {
		sweepLock, err = lock.NewRedisLock(e.redis, e.redis.CronLockKey(sweepLockName), e.cfg.Cron.Interval)
	} else {
		sweepLock, err = e.locker.NewLock(sweepLockName)
	}
	if err != nil {
		return nil, fmt.Errorf("sweep lock: %w", err)
	}

	return cron.NewService(cron.ServiceParams{
		Logger:   e.logg,
		Registry: cron.NewRegistry(recount, refresh),
		Lock:     sweepLock,
		Metrics:  e.cronMetrics,
		Interval: e.cfg.Cron.Interval,
	})
}

func newLocker(client *redis.Client, syncCfg config.SyncConfig) (lock.Locker, error) {
	if client == nil {
		return lock.NewLocalLocker(), nil
	}
	locker, err := lock.NewRedisLocker(client, syncCfg.SubscriptionLockTTL, func(key string) string {
		return client.LockKey(key)
	})
	if err != nil {
		return nil, fmt.Errorf("subscription locker: %w", err)
	}
	return locker, nil
}
