package coupon

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "coupon not found")
		}
		return nil, err
	}
	return &coupon, nil
}

func (r *repository) FindUserCoupon(ctx context.Context, userID, couponID uuid.UUID) (*models.UserCoupon, error) {
	var uc models.UserCoupon
	err := r.db.WithContext(ctx).
		Preload("Coupon").
		Where("user_id = ? AND coupon_id = ?", userID, couponID).
		First(&uc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, "coupon not owned by user")
		}
		return nil, err
	}
	return &uc, nil
}

// MarkUsed flips the coupon to used with a compare-and-swap on the version
// read at load time. Zero affected rows means a concurrent redeemer won.
func (r *repository) MarkUsed(ctx context.Context, uc *models.UserCoupon, orderID uuid.UUID, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.UserCoupon{}).
		Where("id = ? AND version = ? AND used = ?", uc.ID, uc.Version, false).
		Updates(map[string]any{
			"used":     true,
			"used_at":  now,
			"order_id": orderID,
			"version":  uc.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeConflict, "coupon was redeemed concurrently").
			WithDetails(map[string]any{"user_coupon_id": uc.ID.String()})
	}

	uc.Used = true
	uc.UsedAt = &now
	uc.OrderID = &orderID
	uc.Version++
	return nil
}
