package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gatewaysync/pkg/logger"
	"github.com/angelmondragon/gatewaysync/pkg/metrics"
)

const planRecountJobName = "plan-subscription-recount"

type activePlanLister interface {
	ActiveIDs(ctx context.Context) ([]uuid.UUID, error)
}

type planRecounter interface {
	RecountSubscriptions(ctx context.Context, planID uuid.UUID) (int64, error)
}

// PlanRecountJobParams configures the plan subscription recount job.
type PlanRecountJobParams struct {
	Logger  *logger.Logger
	Plans   activePlanLister
	Counter planRecounter
	Metrics *metrics.CronJobMetrics
}

// NewPlanRecountJob builds a job that refreshes TotalSubscriptions on every
// active plan.
func NewPlanRecountJob(params PlanRecountJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Plans == nil {
		return nil, fmt.Errorf("plan lister required")
	}
	if params.Counter == nil {
		return nil, fmt.Errorf("plan recounter required")
	}
	return &planRecountJob{
		logg:    params.Logger,
		plans:   params.Plans,
		counter: params.Counter,
		metrics: params.Metrics,
	}, nil
}

type planRecountJob struct {
	logg    *logger.Logger
	plans   activePlanLister
	counter planRecounter
	metrics *metrics.CronJobMetrics
}

func (j *planRecountJob) Name() string { return planRecountJobName }

func (j *planRecountJob) Run(ctx context.Context) error {
	ids, err := j.plans.ActiveIDs(ctx)
	if err != nil {
		return fmt.Errorf("list active plans: %w", err)
	}
	var errs error
	counted := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = multierr.Append(errs, ctx.Err())
			break
		}
		if _, err := j.counter.RecountSubscriptions(ctx, id); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("plan %s: %w", id, err))
			continue
		}
		counted++
	}
	failed := len(multierr.Errors(errs))
	j.metrics.AddRows(j.Name(), "updated", counted)
	j.metrics.AddRows(j.Name(), "failed", failed)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"plans":   len(ids),
		"counted": counted,
		"failed":  failed,
	}), "plan recount complete")
	return errs
}
