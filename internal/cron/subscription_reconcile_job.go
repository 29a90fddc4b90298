package cron

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/multierr"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/internal/subscriptions"
	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/metrics"
)

const (
	subscriptionReconcileJobName = "subscription-reconcile"
	defaultReconcileLimit        = 250
)

type openReconciler interface {
	ReconcileOpen(ctx context.Context, after string, limit int) (reconcile.ListResult[subscriptions.SubscriptionResponse], error)
}

// SubscriptionReconcileJobParams configures the subscription refresh job.
type SubscriptionReconcileJobParams struct {
	Logger        *logger.Logger
	Subscriptions openReconciler
	Metrics       *metrics.CronJobMetrics
	Limit         int
}

// NewSubscriptionReconcileJob builds a job that refreshes non-final
// subscriptions from the gateway. Each run resumes where the previous one
// stopped, so a backlog larger than the limit is covered in rotation.
func NewSubscriptionReconcileJob(params SubscriptionReconcileJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Subscriptions == nil {
		return nil, fmt.Errorf("subscription service required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultReconcileLimit
	}
	return &subscriptionReconcileJob{
		logg:    params.Logger,
		subs:    params.Subscriptions,
		metrics: params.Metrics,
		limit:   limit,
	}, nil
}

type subscriptionReconcileJob struct {
	logg    *logger.Logger
	subs    openReconciler
	metrics *metrics.CronJobMetrics
	limit   int

	mu     sync.Mutex
	cursor string
}

func (j *subscriptionReconcileJob) Name() string { return subscriptionReconcileJobName }

func (j *subscriptionReconcileJob) Run(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	res, err := j.subs.ReconcileOpen(ctx, j.cursor, j.limit)
	if err != nil {
		j.cursor = ""
		return fmt.Errorf("reconcile open subscriptions: %w", err)
	}
	j.cursor = res.NextCursor
	var errs error
	for _, id := range res.Stale {
		errs = multierr.Append(errs, fmt.Errorf("subscription %s: refresh failed", id))
	}
	synced := res.ReconciledThrough - len(res.Stale)
	j.metrics.AddRows(j.Name(), "updated", synced)
	j.metrics.AddRows(j.Name(), "failed", len(res.Stale))
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"candidates": len(res.Items),
		"synced":     synced,
		"stale":      len(res.Stale),
		"cursor":     res.NextCursor,
	}), "subscription reconcile loop complete")
	return errs
}
