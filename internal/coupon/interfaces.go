package coupon

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
)

// Repository defines persistence operations for coupon tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	FindUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error)
	MarkUsed(ctx context.Context, uc *models.UserCoupon, orderID uuid.UUID, now time.Time) error
}
