package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// Coupon defines a reusable discount template.
// DiscountValue is an absolute amount for fixed_amount coupons and a
// percentage in [1,100] for percentage coupons.
type Coupon struct {
	ID            uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Code          string           `gorm:"column:code;not null;uniqueIndex"`
	Name          string           `gorm:"column:name;not null"`
	Type          enums.CouponType `gorm:"column:type;type:coupon_type_enum;not null"`
	DiscountValue int64            `gorm:"column:discount_value;not null"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
}
