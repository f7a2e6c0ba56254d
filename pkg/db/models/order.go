package models

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// Order is the aggregate root for a purchase. It starts pending and ends in
// exactly one terminal state; re-applying the same terminal transition is a
// no-op, crossing terminal states is a state conflict.
type Order struct {
	ID             uuid.UUID         `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status         enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'pending'"`
	CouponCode     *string           `gorm:"column:coupon_code"`
	DiscountAmount int64             `gorm:"column:discount_amount;not null;default:0"`
	TotalAmount    int64             `gorm:"column:total_amount;not null"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment        *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

// MarkCompleted transitions the order to completed. Completing an already
// completed order is idempotent; completing a canceled order is rejected.
func (o *Order) MarkCompleted() error {
	switch o.Status {
	case enums.OrderStatusCompleted:
		return nil
	case enums.OrderStatusCanceled:
		return apperrors.New(apperrors.CodeStateConflict, "order is canceled and cannot be completed")
	}
	o.Status = enums.OrderStatusCompleted
	return nil
}

// MarkCanceled transitions the order to canceled. Canceling an already
// canceled order is idempotent; canceling a completed order is rejected.
func (o *Order) MarkCanceled() error {
	switch o.Status {
	case enums.OrderStatusCanceled:
		return nil
	case enums.OrderStatusCompleted:
		return apperrors.New(apperrors.CodeStateConflict, "order is completed and cannot be canceled")
	}
	o.Status = enums.OrderStatusCanceled
	return nil
}
