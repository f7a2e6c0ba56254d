package purchase

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
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
	"github.com/minsu-cho/commerce-backend/pkg/pagination"
	"github.com/minsu-cho/commerce-backend/pkg/pg"
)

func paginationParams(limit int) pagination.Params {
	return pagination.Params{Limit: limit}
}

var purchaseSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  point_balance INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price INTEGER NOT NULL,
  stock INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  type TEXT NOT NULL,
  discount_value INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS user_coupons (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  coupon_id TEXT NOT NULL,
  used NUMERIC NOT NULL DEFAULT false,
  used_at DATETIME,
  order_id TEXT,
  version INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  coupon_code TEXT,
  discount_amount INTEGER NOT NULL DEFAULT 0,
  total_amount INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  unit_price INTEGER NOT NULL,
  quantity INTEGER NOT NULL,
  line_amount INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE IF NOT EXISTS payments (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL UNIQUE,
  total_amount INTEGER NOT NULL,
  used_point INTEGER NOT NULL DEFAULT 0,
  paid_amount INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  failure_reason TEXT,
  transaction_key TEXT,
  pg_requested_at DATETIME,
  pg_completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
}

func setupPurchaseDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	for _, stmt := range purchaseSchema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(tx)
	})
}

// testLocker reads rows without FOR UPDATE, which sqlite cannot parse.
type testLocker struct{}

func (testLocker) LockUser(tx *gorm.DB, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		return nil, apperrors.New(apperrors.CodeNotFound, "user not found")
	}
	return &user, nil
}

func (testLocker) LockProducts(tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error) {
	locked := make(map[uuid.UUID]*models.Product, len(ids))
	for _, id := range ids {
		var product models.Product
		if err := tx.Where("id = ?", id).First(&product).Error; err != nil {
			return nil, apperrors.New(apperrors.CodeNotFound, "product not found")
		}
		locked[product.ID] = &product
	}
	return locked, nil
}

type stubOutbox struct {
	events []outbox.DomainEvent
}

func (s *stubOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutbox) eventTypes() []enums.OutboxEventType {
	types := make([]enums.OutboxEventType, 0, len(s.events))
	for _, e := range s.events {
		types = append(types, e.EventType)
	}
	return types
}

type stubGateway struct {
	result   pg.PaymentResult
	requests []pg.PaymentRequest
}

func (s *stubGateway) RequestPayment(ctx context.Context, req pg.PaymentRequest) pg.PaymentResult {
	s.requests = append(s.requests, req)
	return s.result
}

type stubSettler struct {
	completed  []string
	canceled   []string
	completeFn func(orderID uuid.UUID, transactionKey string) error
}

func (s *stubSettler) CompleteOrder(ctx context.Context, orderID uuid.UUID, transactionKey string) error {
	if s.completeFn != nil {
		return s.completeFn(orderID, transactionKey)
	}
	s.completed = append(s.completed, transactionKey)
	return nil
}

func (s *stubSettler) CancelOrder(ctx context.Context, orderID uuid.UUID, reason string) error {
	s.canceled = append(s.canceled, reason)
	return nil
}

type stubRecovery struct {
	scheduled []uuid.UUID
}

func (s *stubRecovery) RecoverLater(orderID uuid.UUID) {
	s.scheduled = append(s.scheduled, orderID)
}

type purchaseFixture struct {
	db       *gorm.DB
	svc      Service
	outbox   *stubOutbox
	gateway  *stubGateway
	settler  *stubSettler
	recovery *stubRecovery
	user     *models.User
	products []*models.Product
}

func newPurchaseFixture(t *testing.T, gatewayResult pg.PaymentResult) *purchaseFixture {
	t.Helper()

	db := setupPurchaseDB(t)
	logg := logger.New(logger.Options{ServiceName: "purchase-test", Output: io.Discard})

	f := &purchaseFixture{
		db:       db,
		outbox:   &stubOutbox{},
		gateway:  &stubGateway{result: gatewayResult},
		settler:  &stubSettler{},
		recovery: &stubRecovery{},
	}

	f.user = &models.User{ID: uuid.New(), Email: "buyer@example.com", Name: "buyer", PointBalance: 10000}
	require.NoError(t, db.Create(f.user).Error)

	for i, spec := range []struct {
		price int64
		stock int
	}{{10000, 5}, {2500, 2}} {
		p := &models.Product{ID: uuid.New(), Name: []string{"keyboard", "mouse"}[i], Price: spec.price, Stock: spec.stock}
		require.NoError(t, db.Create(p).Error)
		f.products = append(f.products, p)
	}

	f.svc = NewService(Deps{
		Repo:     NewRepository(db),
		Payments: payment.NewRepository(db),
		Locks:    testLocker{},
		Stock:    inventory.NewStockLedger(),
		Wallet:   wallet.NewPointWallet(),
		Coupons:  coupon.NewLedger(coupon.NewRepository(db)),
		Tx:       gormTxRunner{db: db},
		Outbox:   f.outbox,
		Gateway:  f.gateway,
		Settler:  f.settler,
		Recovery: f.recovery,
		Logger:   logg,
	})
	return f
}

func (f *purchaseFixture) seedCoupon(t *testing.T, couponType enums.CouponType, value int64) {
	t.Helper()
	c := &models.Coupon{ID: uuid.New(), Code: "SAVE", Name: "save", Type: couponType, DiscountValue: value}
	require.NoError(t, f.db.Create(c).Error)
	require.NoError(t, f.db.Create(&models.UserCoupon{ID: uuid.New(), UserID: f.user.ID, CouponID: c.ID}).Error)
}

func basicInput(f *purchaseFixture) CreateOrderInput {
	return CreateOrderInput{
		UserID: f.user.ID,
		Items: []OrderLine{
			{ProductID: f.products[0].ID, Quantity: 2},
			{ProductID: f.products[1].ID, Quantity: 1},
		},
		CardType: enums.CardTypeSamsung,
		CardNo:   "1234-5678-9012-3456",
	}
}

func TestCreateOrderAwaitingCallbackStaysPending(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome: pg.OutcomeAccepted,
		Status:  enums.PGTransactionPending,
	})

	info, err := f.svc.CreateOrder(context.Background(), basicInput(f))
	require.NoError(t, err)

	// 2*10000 + 1*2500
	assert.Equal(t, int64(22500), info.TotalAmount)
	assert.Equal(t, enums.OrderStatusPending, info.Status)
	assert.Equal(t, enums.PaymentStatusPending, info.PaymentStatus)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, info.OrderID.String(), f.gateway.requests[0].OrderID)
	assert.Equal(t, int64(22500), f.gateway.requests[0].Amount)

	var stored models.Product
	require.NoError(t, f.db.Where("id = ?", f.products[0].ID).First(&stored).Error)
	assert.Equal(t, 3, stored.Stock)

	assert.Equal(t, []enums.OutboxEventType{enums.EventOrderCreated}, f.outbox.eventTypes())
	assert.Empty(t, f.settler.completed)
	assert.Empty(t, f.settler.canceled)
	assert.Empty(t, f.recovery.scheduled)
}

func TestCreateOrderInlineSuccessCompletes(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome:        pg.OutcomeAccepted,
		Status:         enums.PGTransactionSuccess,
		TransactionKey: "tx-abc",
	})

	_, err := f.svc.CreateOrder(context.Background(), basicInput(f))
	require.NoError(t, err)

	assert.Equal(t, []string{"tx-abc"}, f.settler.completed)
	assert.Empty(t, f.settler.canceled)
}

func TestCreateOrderCouponAndPointsReduceCharge(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome: pg.OutcomeAccepted,
		Status:  enums.PGTransactionPending,
	})
	f.seedCoupon(t, enums.CouponTypePercentage, 10)

	input := basicInput(f)
	code := "SAVE"
	input.CouponCode = &code
	input.UsedPoint = 3000

	info, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	// subtotal 22500, 10% coupon -> total 20250, 3000 points -> paid 17250
	assert.Equal(t, int64(2250), info.DiscountAmount)
	assert.Equal(t, int64(20250), info.TotalAmount)
	assert.Equal(t, int64(3000), info.UsedPoint)
	assert.Equal(t, int64(17250), info.PaidAmount)
	require.NotNil(t, info.CouponCode)
	assert.Equal(t, "SAVE", *info.CouponCode)

	var user models.User
	require.NoError(t, f.db.Where("id = ?", f.user.ID).First(&user).Error)
	assert.Equal(t, int64(7000), user.PointBalance)

	var uc models.UserCoupon
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).First(&uc).Error)
	assert.True(t, uc.Used)

	require.Len(t, f.gateway.requests, 1)
	assert.Equal(t, int64(17250), f.gateway.requests[0].Amount)
}

func TestCreateOrderFullyCoveredSkipsGateway(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{})
	f.seedCoupon(t, enums.CouponTypeFixedAmount, 20000)

	input := CreateOrderInput{
		UserID:    f.user.ID,
		Items:     []OrderLine{{ProductID: f.products[1].ID, Quantity: 1}},
		UsedPoint: 0,
	}
	code := "SAVE"
	input.CouponCode = &code

	info, err := f.svc.CreateOrder(context.Background(), input)
	require.NoError(t, err)

	// Fixed 20000 clamps to the 2500 subtotal; nothing left to charge.
	assert.Equal(t, int64(0), info.TotalAmount)
	assert.Equal(t, enums.OrderStatusCompleted, info.Status)
	assert.Equal(t, enums.PaymentStatusSuccess, info.PaymentStatus)
	assert.Empty(t, f.gateway.requests)
	assert.Equal(t,
		[]enums.OutboxEventType{enums.EventOrderCreated, enums.EventOrderCompleted},
		f.outbox.eventTypes())
}

func TestCreateOrderBusinessRejectionCompensates(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome:     pg.OutcomeRejected,
		FailureCode: "INVALID_CARD",
	})

	_, err := f.svc.CreateOrder(context.Background(), basicInput(f))
	require.NoError(t, err)

	assert.Equal(t, []string{"INVALID_CARD"}, f.settler.canceled)
	assert.Empty(t, f.settler.completed)
	assert.Empty(t, f.recovery.scheduled)
}

func TestCreateOrderGatewayOutageLeavesPendingForRecovery(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome:     pg.OutcomeUnavailable,
		FailureCode: pg.ReasonBreakerOpen,
	})

	info, err := f.svc.CreateOrder(context.Background(), basicInput(f))
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, info.Status)
	assert.Equal(t, []uuid.UUID{info.OrderID}, f.recovery.scheduled)
	assert.Empty(t, f.settler.canceled)

	// Stock stays reserved: the payment may still have gone through upstream.
	var stored models.Product
	require.NoError(t, f.db.Where("id = ?", f.products[0].ID).First(&stored).Error)
	assert.Equal(t, 3, stored.Stock)
}

func TestCreateOrderInsufficientStockRollsBackEverything(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{})
	f.seedCoupon(t, enums.CouponTypeFixedAmount, 1000)

	input := basicInput(f)
	input.Items[1].Quantity = 3 // only 2 in stock
	code := "SAVE"
	input.CouponCode = &code
	input.UsedPoint = 2000

	_, err := f.svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeConflict, typed.Code())

	var user models.User
	require.NoError(t, f.db.Where("id = ?", f.user.ID).First(&user).Error)
	assert.Equal(t, int64(10000), user.PointBalance)

	var uc models.UserCoupon
	require.NoError(t, f.db.Where("user_id = ?", f.user.ID).First(&uc).Error)
	assert.False(t, uc.Used)

	var count int64
	require.NoError(t, f.db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Empty(t, f.gateway.requests)
}

func TestCreateOrderValidatesInput(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{})

	cases := map[string]CreateOrderInput{
		"empty items": {UserID: f.user.ID},
		"duplicate products": {
			UserID: f.user.ID,
			Items: []OrderLine{
				{ProductID: f.products[0].ID, Quantity: 1},
				{ProductID: f.products[0].ID, Quantity: 2},
			},
		},
		"non-positive quantity": {
			UserID: f.user.ID,
			Items:  []OrderLine{{ProductID: f.products[0].ID, Quantity: 0}},
		},
		"negative points": {
			UserID:    f.user.ID,
			Items:     []OrderLine{{ProductID: f.products[0].ID, Quantity: 1}},
			UsedPoint: -1,
		},
	}
	for name, input := range cases {
		_, err := f.svc.CreateOrder(context.Background(), input)
		require.Error(t, err, name)
		typed := apperrors.As(err)
		require.NotNil(t, typed, name)
		assert.Equal(t, apperrors.CodeValidation, typed.Code(), name)
	}
}

func TestCreateOrderRequiresCardForRemainingAmount(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{})

	input := basicInput(f)
	input.CardType = ""
	input.CardNo = ""

	_, err := f.svc.CreateOrder(context.Background(), input)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeValidation, typed.Code())

	// The whole transaction rolled back, stock included.
	var stored models.Product
	require.NoError(t, f.db.Where("id = ?", f.products[0].ID).First(&stored).Error)
	assert.Equal(t, 5, stored.Stock)
}

func TestGetOrderHidesForeignOrders(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome: pg.OutcomeAccepted,
		Status:  enums.PGTransactionPending,
	})

	info, err := f.svc.CreateOrder(context.Background(), basicInput(f))
	require.NoError(t, err)

	got, err := f.svc.GetOrder(context.Background(), f.user.ID, info.OrderID)
	require.NoError(t, err)
	assert.Equal(t, info.OrderID, got.OrderID)

	_, err = f.svc.GetOrder(context.Background(), uuid.New(), info.OrderID)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestListOrdersScopedToUser(t *testing.T) {
	f := newPurchaseFixture(t, pg.PaymentResult{
		Outcome: pg.OutcomeAccepted,
		Status:  enums.PGTransactionPending,
	})

	first, err := f.svc.CreateOrder(context.Background(), CreateOrderInput{
		UserID:   f.user.ID,
		Items:    []OrderLine{{ProductID: f.products[0].ID, Quantity: 1}},
		CardType: enums.CardTypeKB,
		CardNo:   "1111-2222-3333-4444",
	})
	require.NoError(t, err)

	list, err := f.svc.ListOrders(context.Background(), f.user.ID, paginationParams(10))
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, first.OrderID, list.Orders[0].OrderID)

	other, err := f.svc.ListOrders(context.Background(), uuid.New(), paginationParams(10))
	require.NoError(t, err)
	assert.Empty(t, other.Orders)
}
