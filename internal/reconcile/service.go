package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/internal/payment"
	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/outbox"
	"github.com/minsu-cho/commerce-backend/pkg/outbox/payloads"
	"github.com/minsu-cho/commerce-backend/pkg/pg"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type inquirer interface {
	InquireOrder(ctx context.Context, orderID string) (*pg.OrderTransactions, error)
}

// CallbackInput is the gateway's webhook claim about a transaction.
type CallbackInput struct {
	OrderID        uuid.UUID
	TransactionKey string
	Status         enums.PGTransactionStatus
	Reason         string
}

// Service resolves indeterminate orders. Both triggers, the webhook callback
// and the timeout sweep, converge on the same idempotent settlement path.
type Service interface {
	HandleCallback(ctx context.Context, input CallbackInput) error
	RecoverOrder(ctx context.Context, orderID uuid.UUID) error
	CompleteOrder(ctx context.Context, orderID uuid.UUID, transactionKey string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error
	RecoverLater(orderID uuid.UUID)
}

type service struct {
	orders       purchase.Repository
	payments     payment.Repository
	compensator  *Compensator
	tx           txRunner
	outbox       outboxPublisher
	inquirer     inquirer
	logger       *logger.Logger
	fastPathWait time.Duration
	now          func() time.Time
}

// Deps wires the reconciliation service.
type Deps struct {
	Orders       purchase.Repository
	Payments     payment.Repository
	Compensator  *Compensator
	Tx           txRunner
	Outbox       outboxPublisher
	Inquirer     inquirer
	Logger       *logger.Logger
	FastPathWait time.Duration
	Now          func() time.Time
}

// NewService builds the reconciliation service.
func NewService(deps Deps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	wait := deps.FastPathWait
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &service{
		orders:       deps.Orders,
		payments:     deps.Payments,
		compensator:  deps.Compensator,
		tx:           deps.Tx,
		outbox:       deps.Outbox,
		inquirer:     deps.Inquirer,
		logger:       deps.Logger,
		fastPathWait: wait,
		now:          now,
	}
}

// HandleCallback settles an order from a gateway webhook. The callback is
// never trusted blindly: the gateway's inquiry endpoint is the system of
// record, so on disagreement the inquiry result wins. Only when the inquiry
// itself fails does the callback's claim apply, as a degraded fallback.
func (s *service) HandleCallback(ctx context.Context, input CallbackInput) error {
	ctx = s.logger.WithOrderID(ctx, input.OrderID.String())

	status := input.Status
	transactionKey := input.TransactionKey
	reason := input.Reason

	inq, err := s.inquirer.InquireOrder(ctx, input.OrderID.String())
	if err != nil {
		s.logger.Warn(s.logger.WithField(ctx, "callback_status", input.Status.String()),
			"gateway inquiry failed, falling back to callback claim")
	} else if latest, ok := inq.Latest(); ok {
		if latest.Status != input.Status {
			s.logger.Warn(s.logger.WithFields(ctx, map[string]any{
				"callback_status": input.Status.String(),
				"inquiry_status":  latest.Status.String(),
			}), "callback disagrees with gateway inquiry, inquiry wins")
		}
		status = latest.Status
		transactionKey = latest.TransactionKey
		reason = derefReason(latest.Reason)
	} else {
		s.logger.Warn(ctx, "gateway inquiry returned no transactions, falling back to callback claim")
	}

	return s.apply(ctx, input.OrderID, status, transactionKey, reason)
}

// RecoverOrder resolves one pending order from the gateway's view. An
// inquiry failure keeps the order pending: the sweep will try again.
func (s *service) RecoverOrder(ctx context.Context, orderID uuid.UUID) error {
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	order, err := s.orders.FindOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != enums.OrderStatusPending {
		return nil
	}

	inq, err := s.inquirer.InquireOrder(ctx, orderID.String())
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDependency, err, "gateway inquiry failed")
	}

	latest, ok := inq.Latest()
	if !ok || latest.Status == enums.PGTransactionPending {
		s.logger.Info(ctx, "gateway still processing, order stays pending")
		return nil
	}
	return s.apply(ctx, orderID, latest.Status, latest.TransactionKey, derefReason(latest.Reason))
}

func derefReason(reason *string) string {
	if reason == nil {
		return ""
	}
	return *reason
}

// RecoverLater schedules a one-shot delayed recovery, used right after a
// client-observed gateway timeout so most orders resolve well before the
// periodic sweep reaches them.
func (s *service) RecoverLater(orderID uuid.UUID) {
	time.AfterFunc(s.fastPathWait, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.RecoverOrder(ctx, orderID); err != nil {
			s.logger.Error(s.logger.WithOrderID(ctx, orderID.String()),
				"fast-path recovery failed, periodic sweep will retry", err)
		}
	})
}

// apply is the single idempotent settlement path. Orders already in a
// terminal state are left untouched so duplicate callbacks and races between
// the two triggers cannot corrupt anything.
func (s *service) apply(ctx context.Context, orderID uuid.UUID, status enums.PGTransactionStatus, transactionKey, reason string) error {
	switch status {
	case enums.PGTransactionSuccess:
		return s.CompleteOrder(ctx, orderID, transactionKey)
	case enums.PGTransactionFailed:
		return s.CancelOrder(ctx, orderID, payment.FailureReason(reason))
	default:
		s.logger.Info(s.logger.WithField(ctx, "pg_status", status.String()),
			"non-terminal gateway status, order stays pending")
		return nil
	}
}

// CompleteOrder settles the payment and closes the order.
func (s *service) CompleteOrder(ctx context.Context, orderID uuid.UUID, transactionKey string) error {
	ctx = s.logger.WithOrderID(ctx, orderID.String())
	now := s.now().UTC()

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		order, err := orders.FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			s.logger.Info(s.logger.WithField(ctx, "order_status", order.Status.String()),
				"order already settled, completion skipped")
			return nil
		}

		payments := s.payments.WithTx(tx)
		pay, err := payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := pay.MarkSuccess(transactionKey, now); err != nil {
			return err
		}
		if err := payments.Save(ctx, pay); err != nil {
			return err
		}

		if err := order.MarkCompleted(); err != nil {
			return err
		}
		if err := orders.UpdateStatus(ctx, orderID, order.Status); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCompleted,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.OrderCompletedEvent{
				OrderID:        orderID,
				UserID:         order.UserID,
				TotalAmount:    order.TotalAmount,
				TransactionKey: transactionKey,
				CompletedAt:    now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		s.logger.Info(ctx, "order completed")
		return nil
	})
}

// CancelOrder runs compensation for a confirmed payment failure.
func (s *service) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	return s.compensator.Cancel(ctx, orderID, reason)
}
