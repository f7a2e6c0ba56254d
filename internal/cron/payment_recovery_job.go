package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/minsu-cho/commerce-backend/pkg/logger"
)

const (
	defaultPendingMinAge  = time.Minute
	defaultSweepBatchSize = 100
)

type pendingOrderSource interface {
	FindPendingOrderIDsBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
}

type orderRecoverer interface {
	RecoverOrder(ctx context.Context, orderID uuid.UUID) error
}

// PaymentRecoveryJobParams configure the pending-payment sweep.
type PaymentRecoveryJobParams struct {
	Logger    *logger.Logger
	Orders    pendingOrderSource
	Recoverer orderRecoverer
	// PendingMinAge is the grace window before a pending order is swept,
	// leaving room for the inline callback to arrive first.
	PendingMinAge time.Duration
	BatchSize     int
}

// NewPaymentRecoveryJob builds the cron job that resolves orders stuck
// pending after a gateway timeout or a lost callback.
func NewPaymentRecoveryJob(params PaymentRecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("pending order source required")
	}
	if params.Recoverer == nil {
		return nil, fmt.Errorf("order recoverer required")
	}
	minAge := params.PendingMinAge
	if minAge <= 0 {
		minAge = defaultPendingMinAge
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &paymentRecoveryJob{
		logg:      params.Logger,
		orders:    params.Orders,
		recoverer: params.Recoverer,
		minAge:    minAge,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

type paymentRecoveryJob struct {
	logg      *logger.Logger
	orders    pendingOrderSource
	recoverer orderRecoverer
	minAge    time.Duration
	batchSize int
	now       func() time.Time
}

func (j *paymentRecoveryJob) Name() string { return "payment-recovery" }

// Run sweeps pending orders past the grace window. Recovery failures are
// isolated per order so one unreachable gateway lookup does not starve the
// rest of the batch.
func (j *paymentRecoveryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.minAge)
	ids, err := j.orders.FindPendingOrderIDsBefore(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query pending orders: %w", err)
	}

	var errs error
	recovered := 0
	for _, orderID := range ids {
		if err := j.recoverer.RecoverOrder(ctx, orderID); err != nil {
			orderCtx := j.logg.WithOrderID(ctx, orderID.String())
			j.logg.Error(orderCtx, "pending order recovery failed", err)
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", orderID, err))
			continue
		}
		recovered++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"swept":     len(ids),
		"recovered": recovered,
	})
	j.logg.Info(logCtx, "payment recovery sweep complete")
	return errs
}
