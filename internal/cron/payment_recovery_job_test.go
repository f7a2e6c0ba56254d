package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/pkg/logger"
)

type fakePendingSource struct {
	ids    []uuid.UUID
	cutoff time.Time
	limit  int
	err    error
}

func (f *fakePendingSource) FindPendingOrderIDsBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	f.cutoff = cutoff
	f.limit = limit
	return f.ids, f.err
}

type fakeRecoverer struct {
	recovered []uuid.UUID
	failOn    map[uuid.UUID]error
}

func (f *fakeRecoverer) RecoverOrder(ctx context.Context, orderID uuid.UUID) error {
	if err, ok := f.failOn[orderID]; ok {
		return err
	}
	f.recovered = append(f.recovered, orderID)
	return nil
}

func newRecoveryJob(t *testing.T, source *fakePendingSource, recoverer *fakeRecoverer) *paymentRecoveryJob {
	t.Helper()
	job, err := NewPaymentRecoveryJob(PaymentRecoveryJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Orders:        source,
		Recoverer:     recoverer,
		PendingMinAge: time.Minute,
		BatchSize:     50,
	})
	if err != nil {
		t.Fatalf("NewPaymentRecoveryJob: %v", err)
	}
	return job.(*paymentRecoveryJob)
}

func TestPaymentRecoveryJobSweepsPendingOrders(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	source := &fakePendingSource{ids: ids}
	recoverer := &fakeRecoverer{}

	job := newRecoveryJob(t, source, recoverer)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got, want := source.cutoff, now.Add(-time.Minute); !got.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", got, want)
	}
	if source.limit != 50 {
		t.Fatalf("limit = %d, want 50", source.limit)
	}
	if len(recoverer.recovered) != 2 {
		t.Fatalf("recovered %d orders, want 2", len(recoverer.recovered))
	}
}

func TestPaymentRecoveryJobIsolatesPerOrderFailures(t *testing.T) {
	bad := uuid.New()
	good := uuid.New()
	source := &fakePendingSource{ids: []uuid.UUID{bad, good}}
	recoverer := &fakeRecoverer{failOn: map[uuid.UUID]error{bad: errors.New("gateway down")}}

	job := newRecoveryJob(t, source, recoverer)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(recoverer.recovered) != 1 || recoverer.recovered[0] != good {
		t.Fatalf("expected the healthy order to recover, got %v", recoverer.recovered)
	}
}

func TestPaymentRecoveryJobPropagatesQueryFailure(t *testing.T) {
	source := &fakePendingSource{err: errors.New("db offline")}
	job := newRecoveryJob(t, source, &fakeRecoverer{})

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
