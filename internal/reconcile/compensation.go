package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/internal/inventory"
	"github.com/minsu-cho/commerce-backend/internal/payment"
	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/internal/wallet"
	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/outbox"
	"github.com/minsu-cho/commerce-backend/pkg/outbox/payloads"
)

// resourceLocker reacquires the same exclusive row locks the purchase path
// takes. Satisfied by locking.Repository.
type resourceLocker interface {
	LockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error)
	LockProducts(tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

// Compensator rolls a failed purchase back: cancel the order, restock every
// line, refund the points the payment actually recorded. It reacquires locks
// in the same user-then-sorted-products order as creation, so a cancel racing
// a purchase can never deadlock against it.
type Compensator struct {
	orders   purchase.Repository
	payments payment.Repository
	locks    resourceLocker
	stock    *inventory.StockLedger
	wallet   *wallet.PointWallet
	tx       txRunner
	outbox   outboxPublisher
	logger   *logger.Logger
	now      func() time.Time
}

// CompensatorDeps wires the compensator.
type CompensatorDeps struct {
	Orders   purchase.Repository
	Payments payment.Repository
	Locks    resourceLocker
	Stock    *inventory.StockLedger
	Wallet   *wallet.PointWallet
	Tx       txRunner
	Outbox   outboxPublisher
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewCompensator builds the compensation service.
func NewCompensator(deps CompensatorDeps) *Compensator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Compensator{
		orders:   deps.Orders,
		payments: deps.Payments,
		locks:    deps.Locks,
		stock:    deps.Stock,
		wallet:   deps.Wallet,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		logger:   deps.Logger,
		now:      now,
	}
}

// Cancel compensates one order. Orders already settled are left untouched so
// replayed callbacks and sweep races stay harmless.
func (c *Compensator) Cancel(ctx context.Context, orderID uuid.UUID, reason string) error {
	ctx = c.logger.WithOrderID(ctx, orderID.String())
	now := c.now().UTC()

	return c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orders := c.orders.WithTx(tx)
		order, err := orders.FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}

		user, err := c.locks.LockUser(tx, order.UserID)
		if err != nil {
			return err
		}

		// Re-read under the user lock: a racing settlement may have closed
		// the order between the first load and lock acquisition.
		order, err = orders.FindOrderByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending {
			c.logger.Info(c.logger.WithField(ctx, "order_status", order.Status.String()),
				"order already settled, compensation skipped")
			return nil
		}
		ids := make([]uuid.UUID, 0, len(order.Items))
		for _, item := range order.Items {
			ids = append(ids, item.ProductID)
		}
		products, err := c.locks.LockProducts(tx, ids)
		if err != nil {
			return err
		}

		for _, item := range order.Items {
			if err := c.stock.Restore(tx, products[item.ProductID], item.Quantity); err != nil {
				return err
			}
		}

		payments := c.payments.WithTx(tx)
		pay, err := payments.FindByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := pay.MarkFailed(reason, now); err != nil {
			return err
		}
		if err := payments.Save(ctx, pay); err != nil {
			return err
		}

		// Refund only what this payment recorded as spent, never the order
		// total: coupon-covered value must not come back as points.
		if err := c.wallet.Refund(tx, user, pay.UsedPoint); err != nil {
			return err
		}

		if err := order.MarkCanceled(); err != nil {
			return err
		}
		if err := orders.UpdateStatus(ctx, orderID, order.Status); err != nil {
			return err
		}

		if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.OrderCanceledEvent{
				OrderID:    orderID,
				UserID:     order.UserID,
				CanceledAt: now,
				Reason:     reason,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if err := c.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregatePayment,
			AggregateID:   pay.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID},
			Data: payloads.PaymentFailedEvent{
				OrderID:       orderID,
				PaymentID:     pay.ID,
				Status:        pay.Status,
				FailureReason: reason,
				FailedAt:      now,
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}

		c.logger.Info(c.logger.WithField(ctx, "failure_reason", reason), "order canceled and compensated")
		return nil
	})
}
