package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// Redemption is the outcome of a successful coupon application.
type Redemption struct {
	CouponCode     string
	DiscountAmount int64
}

// RedeemInput carries everything needed to apply a coupon to an order.
type RedeemInput struct {
	UserID   uuid.UUID
	OrderID  uuid.UUID
	Code     string
	Subtotal int64
	Now      time.Time
}

// Ledger redeems coupons inside a purchase transaction.
type Ledger interface {
	Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*Redemption, error)
}

type ledger struct {
	repo Repository
}

// NewLedger builds the coupon ledger.
func NewLedger(repo Repository) Ledger {
	return &ledger{repo: repo}
}

// Redeem looks up the coupon and the caller's issuance, computes the
// discount, and marks the issuance used under the optimistic version guard.
// A lost version race surfaces as a conflict and rolls the caller's
// transaction back.
func (l *ledger) Redeem(ctx context.Context, tx *gorm.DB, input RedeemInput) (*Redemption, error) {
	repo := l.repo.WithTx(tx)

	coupon, err := repo.FindCouponByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}

	uc, err := repo.FindUserCoupon(ctx, input.UserID, coupon.ID)
	if err != nil {
		return nil, err
	}
	if uc.Used {
		return nil, apperrors.New(apperrors.CodeConflict, "coupon already used").
			WithDetails(map[string]any{"coupon_code": input.Code})
	}

	strategy, err := StrategyFor(coupon.Type)
	if err != nil {
		return nil, err
	}
	discount := strategy.Discount(input.Subtotal, coupon.DiscountValue)

	if err := repo.MarkUsed(ctx, uc, input.OrderID, input.Now); err != nil {
		return nil, err
	}

	return &Redemption{CouponCode: coupon.Code, DiscountAmount: discount}, nil
}
