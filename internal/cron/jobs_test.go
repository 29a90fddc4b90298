package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gatewaysync/internal/reconcile"
	"github.com/angelmondragon/gatewaysync/internal/subscriptions"
)

type stubPlans struct {
	ids []uuid.UUID
	err error
}

func (s *stubPlans) ActiveIDs(context.Context) ([]uuid.UUID, error) { return s.ids, s.err }

type stubCounter struct {
	fail    map[uuid.UUID]bool
	counted []uuid.UUID
}

func (s *stubCounter) RecountSubscriptions(_ context.Context, id uuid.UUID) (int64, error) {
	if s.fail[id] {
		return 0, errors.New("count failed")
	}
	s.counted = append(s.counted, id)
	return 1, nil
}

func TestPlanRecountJobContinuesPastFailures(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	counter := &stubCounter{fail: map[uuid.UUID]bool{b: true}}
	job, err := NewPlanRecountJob(PlanRecountJobParams{
		Logger:  testLogger(),
		Plans:   &stubPlans{ids: []uuid.UUID{a, b, c}},
		Counter: counter,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if job.Name() != "plan-subscription-recount" {
		t.Fatalf("unexpected job name %q", job.Name())
	}

	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected the failing plan to surface")
	}
	if len(multierr.Errors(err)) != 1 {
		t.Fatalf("expected one aggregated error, got %v", err)
	}
	if len(counter.counted) != 2 || counter.counted[0] != a || counter.counted[1] != c {
		t.Fatalf("expected plans a and c to be recounted, got %v", counter.counted)
	}
}

func TestPlanRecountJobListFailure(t *testing.T) {
	job, err := NewPlanRecountJob(PlanRecountJobParams{
		Logger:  testLogger(),
		Plans:   &stubPlans{err: errors.New("db down")},
		Counter: &stubCounter{},
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected list failure to fail the job")
	}
}

type stubReconciler struct {
	limit  int
	afters []string
	res    reconcile.ListResult[subscriptions.SubscriptionResponse]
	err    error
}

func (s *stubReconciler) ReconcileOpen(_ context.Context, after string, limit int) (reconcile.ListResult[subscriptions.SubscriptionResponse], error) {
	s.limit = limit
	s.afters = append(s.afters, after)
	return s.res, s.err
}

func TestSubscriptionReconcileJobReportsStaleRows(t *testing.T) {
	stub := &stubReconciler{res: reconcile.ListResult[subscriptions.SubscriptionResponse]{
		Items:             make([]subscriptions.SubscriptionResponse, 3),
		ReconciledThrough: 3,
		Stale:             []string{"sxn_test_0002"},
	}}
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:        testLogger(),
		Subscriptions: stub,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	err = job.Run(context.Background())
	if err == nil {
		t.Fatalf("expected stale row to surface as an error")
	}
	if stub.limit != defaultReconcileLimit {
		t.Fatalf("expected default limit %d, got %d", defaultReconcileLimit, stub.limit)
	}

	stub.res.Stale = nil
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("clean run should succeed: %v", err)
	}
}

func TestSubscriptionReconcileJobResumesFromCursor(t *testing.T) {
	stub := &stubReconciler{}
	job, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{
		Logger:        testLogger(),
		Subscriptions: stub,
		Limit:         2,
	})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}

	stub.res.NextCursor = "cursor-a"
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	stub.res.NextCursor = "cursor-b"
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	stub.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected failing run to error")
	}
	stub.err = nil
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("fourth run: %v", err)
	}

	want := []string{"", "cursor-a", "cursor-b", ""}
	if len(stub.afters) != len(want) {
		t.Fatalf("expected %d runs, got %v", len(want), stub.afters)
	}
	for i := range want {
		if stub.afters[i] != want[i] {
			t.Fatalf("run %d: expected cursor %q, got %q", i, want[i], stub.afters[i])
		}
	}
}

func TestSubscriptionReconcileJobRequiresService(t *testing.T) {
	if _, err := NewSubscriptionReconcileJob(SubscriptionReconcileJobParams{Logger: testLogger()}); err == nil {
		t.Fatalf("expected missing service to fail")
	}
}
