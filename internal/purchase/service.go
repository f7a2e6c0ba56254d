package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/internal/coupon"
	"github.com/minsu-cho/commerce-backend/internal/inventory"
	"github.com/minsu-cho/commerce-backend/internal/payment"
	"github.com/minsu-cho/commerce-backend/internal/wallet"
	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/outbox"
	"github.com/minsu-cho/commerce-backend/pkg/outbox/payloads"
	"github.com/minsu-cho/commerce-backend/pkg/pagination"
	"github.com/minsu-cho/commerce-backend/pkg/pg"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentGateway interface {
	RequestPayment(ctx context.Context, req pg.PaymentRequest) pg.PaymentResult
}

// resourceLocker acquires the exclusive row locks the purchase transaction
// mutates under. Satisfied by locking.Repository.
type resourceLocker interface {
	LockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error)
	LockProducts(tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

// Settler closes an order after its gateway outcome is known. Both methods
// are idempotent so the inline path and reconciliation can race safely.
type Settler interface {
	CompleteOrder(ctx context.Context, orderID uuid.UUID, transactionKey string) error
	CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error
}

// RecoveryScheduler queues an order for a delayed gateway inquiry after the
// inline outcome was indeterminate.
type RecoveryScheduler interface {
	RecoverLater(orderID uuid.UUID)
}

// Service is the purchase orchestrator facade.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderInfo, error)
	GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderInfo, error)
	ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListInfo, error)
}

type service struct {
	repo     Repository
	payments payment.Repository
	locks    resourceLocker
	stock    *inventory.StockLedger
	wallet   *wallet.PointWallet
	coupons  coupon.Ledger
	tx       txRunner
	outbox   outboxPublisher
	gateway  paymentGateway
	settler  Settler
	recovery RecoveryScheduler
	logger   *logger.Logger
	now      func() time.Time
}

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Repo     Repository
	Payments payment.Repository
	Locks    resourceLocker
	Stock    *inventory.StockLedger
	Wallet   *wallet.PointWallet
	Coupons  coupon.Ledger
	Tx       txRunner
	Outbox   outboxPublisher
	Gateway  paymentGateway
	Settler  Settler
	Recovery RecoveryScheduler
	Logger   *logger.Logger
	Now      func() time.Time
}

// NewService builds the purchase orchestrator.
func NewService(deps Deps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:     deps.Repo,
		payments: deps.Payments,
		locks:    deps.Locks,
		stock:    deps.Stock,
		wallet:   deps.Wallet,
		coupons:  deps.Coupons,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		gateway:  deps.Gateway,
		settler:  deps.Settler,
		recovery: deps.Recovery,
		logger:   deps.Logger,
		now:      now,
	}
}

// CreateOrder runs the purchase transaction, then settles the payment with
// the gateway outside the transaction boundary so a gateway outage can never
// roll back an already-durable order.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderInfo, error) {
	if err := validateCreateOrder(input); err != nil {
		return nil, err
	}

	orderID := uuid.New()
	now := s.now().UTC()
	ctx = s.logger.WithOrderID(ctx, orderID.String())

	var (
		order *models.Order
		pay   *models.Payment
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		user, err := s.locks.LockUser(tx, input.UserID)
		if err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(input.Items))
		for _, line := range input.Items {
			ids = append(ids, line.ProductID)
		}
		products, err := s.locks.LockProducts(tx, ids)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, 0, len(input.Items))
		var subtotal int64
		for _, line := range input.Items {
			product := products[line.ProductID]
			lineAmount := product.Price * int64(line.Quantity)
			items = append(items, models.OrderItem{
				OrderID:     orderID,
				ProductID:   product.ID,
				ProductName: product.Name,
				UnitPrice:   product.Price,
				Quantity:    line.Quantity,
				LineAmount:  lineAmount,
			})
			subtotal += lineAmount
		}

		var (
			discount   int64
			couponCode *string
		)
		if input.CouponCode != nil {
			redemption, err := s.coupons.Redeem(ctx, tx, coupon.RedeemInput{
				UserID:   input.UserID,
				OrderID:  orderID,
				Code:     *input.CouponCode,
				Subtotal: subtotal,
				Now:      now,
			})
			if err != nil {
				return err
			}
			discount = redemption.DiscountAmount
			code := redemption.CouponCode
			couponCode = &code
		}
		total := subtotal - discount

		pay, err = models.NewPayment(orderID, total, input.UsedPoint, now)
		if err != nil {
			return err
		}
		if pay.PaidAmount > 0 && (!input.CardType.IsValid() || input.CardNo == "") {
			return apperrors.New(apperrors.CodeValidation, "card details required for the remaining amount")
		}

		for _, line := range input.Items {
			if err := s.stock.Deduct(tx, products[line.ProductID], line.Quantity); err != nil {
				return err
			}
		}
		if err := s.wallet.Deduct(tx, user, input.UsedPoint); err != nil {
			return err
		}

		order = &models.Order{
			ID:             orderID,
			UserID:         input.UserID,
			Status:         enums.OrderStatusPending,
			CouponCode:     couponCode,
			DiscountAmount: discount,
			TotalAmount:    total,
			Items:          items,
		}
		if pay.Status == enums.PaymentStatusSuccess {
			// Coupon and points covered everything; no gateway round trip.
			if err := order.MarkCompleted(); err != nil {
				return err
			}
		}

		if err := s.repo.WithTx(tx).CreateOrder(ctx, order); err != nil {
			return err
		}
		if err := s.payments.WithTx(tx).Create(ctx, pay); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.OrderCreatedEvent{
				OrderID:     orderID,
				UserID:      input.UserID,
				TotalAmount: total,
				UsedPoint:   pay.UsedPoint,
				PaidAmount:  pay.PaidAmount,
				ItemCount:   len(items),
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		if order.Status == enums.OrderStatusCompleted {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCompleted,
				AggregateType: enums.AggregateOrder,
				AggregateID:   orderID,
				Actor:         &outbox.ActorRef{UserID: input.UserID},
				Data: payloads.OrderCompletedEvent{
					OrderID:     orderID,
					UserID:      input.UserID,
					TotalAmount: total,
					CompletedAt: now,
				},
				OccurredAt: now,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "order placed")

	if pay.PaidAmount > 0 {
		s.settleWithGateway(ctx, orderID, input, pay)
	}

	refreshed, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	info := OrderInfoFromModel(refreshed)
	return &info, nil
}

// settleWithGateway drives the inline payment attempt. Every branch leaves
// the order in a state reconciliation can finish from, so errors here are
// logged rather than bubbled to the buyer.
func (s *service) settleWithGateway(ctx context.Context, orderID uuid.UUID, input CreateOrderInput, pay *models.Payment) {
	now := s.now().UTC()
	pay.MarkRequested(now)
	if err := s.payments.Save(ctx, pay); err != nil {
		s.logger.Error(ctx, "failed to stamp payment request time", err)
	}

	result := s.gateway.RequestPayment(ctx, pg.PaymentRequest{
		OrderID:  orderID.String(),
		CardType: input.CardType,
		CardNo:   input.CardNo,
		Amount:   pay.PaidAmount,
	})

	switch result.Outcome {
	case pg.OutcomeAccepted:
		if result.Status == enums.PGTransactionSuccess {
			if err := s.settler.CompleteOrder(ctx, orderID, result.TransactionKey); err != nil {
				s.logger.Error(ctx, "inline completion failed, leaving order for reconciliation", err)
			}
			return
		}
		// Accepted but still processing: the callback or the sweep closes it.
		s.logger.Info(ctx, "payment accepted by gateway, awaiting callback")
	case pg.OutcomeRejected:
		if payment.Classify(result.FailureCode) == payment.FailureBusiness {
			if err := s.settler.CancelOrder(ctx, orderID, result.FailureCode); err != nil {
				s.logger.Error(ctx, "inline compensation failed, leaving order for reconciliation", err)
			}
			return
		}
		// A rejection we cannot pin on the cardholder is treated like an
		// outage: the real state gets confirmed by inquiry, not guessed.
		s.recovery.RecoverLater(orderID)
	case pg.OutcomeUnavailable:
		s.logger.Warn(s.logger.WithField(ctx, "failure_code", result.FailureCode),
			"gateway unavailable, order left pending for recovery")
		s.recovery.RecoverLater(orderID)
	}
}

func (s *service) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*OrderInfo, error) {
	order, err := s.repo.FindOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		// Foreign orders look absent rather than forbidden.
		return nil, apperrors.New(apperrors.CodeNotFound, "order not found")
	}
	info := OrderInfoFromModel(order)
	return &info, nil
}

func (s *service) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderListInfo, error) {
	list, err := s.repo.ListUserOrders(ctx, userID, params)
	if err != nil {
		return nil, err
	}
	out := &OrderListInfo{
		Orders:     make([]OrderInfo, 0, len(list.Orders)),
		NextCursor: list.NextCursor,
	}
	for i := range list.Orders {
		out.Orders = append(out.Orders, OrderInfoFromModel(&list.Orders[i]))
	}
	return out, nil
}

func validateCreateOrder(input CreateOrderInput) error {
	if input.UserID == uuid.Nil {
		return apperrors.New(apperrors.CodeValidation, "user id is required")
	}
	if len(input.Items) == 0 {
		return apperrors.New(apperrors.CodeValidation, "order must contain at least one item")
	}
	seen := make(map[uuid.UUID]struct{}, len(input.Items))
	for _, line := range input.Items {
		if line.ProductID == uuid.Nil {
			return apperrors.New(apperrors.CodeValidation, "product id is required")
		}
		if line.Quantity <= 0 {
			return apperrors.New(apperrors.CodeValidation, "quantity must be positive")
		}
		if _, dup := seen[line.ProductID]; dup {
			return apperrors.New(apperrors.CodeValidation, "duplicate product in order").
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		seen[line.ProductID] = struct{}{}
	}
	if input.UsedPoint < 0 {
		return apperrors.New(apperrors.CodeValidation, "used point must not be negative")
	}
	return nil
}
