package models

import (
	"time"

	"github.com/google/uuid"
)

// UserCoupon is an issued coupon owned by a single user. Redemption is
// guarded by the Version column: the update predicate includes the version
// read at load time, so concurrent redeemers conflict instead of double
// spending.
type UserCoupon struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null;index"`
	CouponID  uuid.UUID  `gorm:"column:coupon_id;type:uuid;not null"`
	Used      bool       `gorm:"column:used;not null;default:false"`
	UsedAt    *time.Time `gorm:"column:used_at"`
	OrderID   *uuid.UUID `gorm:"column:order_id;type:uuid"`
	Version   int64      `gorm:"column:version;not null;default:0"`
	Coupon    *Coupon    `gorm:"foreignKey:CouponID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
