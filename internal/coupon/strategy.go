package coupon

import (
	"github.com/shopspring/decimal"

	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// DiscountStrategy computes a discount amount from an order subtotal.
// Strategies are dispatched on the coupon type so new discount kinds plug in
// without touching existing ones.
type DiscountStrategy interface {
	Discount(subtotal, value int64) int64
}

type fixedAmountStrategy struct{}

func (fixedAmountStrategy) Discount(subtotal, value int64) int64 {
	if value > subtotal {
		return subtotal
	}
	return value
}

type percentageStrategy struct{}

func (percentageStrategy) Discount(subtotal, value int64) int64 {
	return decimal.NewFromInt(subtotal).
		Mul(decimal.NewFromInt(value)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

var strategies = map[enums.CouponType]DiscountStrategy{
	enums.CouponTypeFixedAmount: fixedAmountStrategy{},
	enums.CouponTypePercentage:  percentageStrategy{},
}

// StrategyFor resolves the discount strategy for a coupon type.
func StrategyFor(t enums.CouponType) (DiscountStrategy, error) {
	s, ok := strategies[t]
	if !ok {
		return nil, apperrors.New(apperrors.CodeValidation, "unsupported coupon type").
			WithDetails(map[string]any{"type": t.String()})
	}
	return s, nil
}
