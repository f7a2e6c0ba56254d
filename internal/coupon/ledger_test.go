package coupon

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

func setupCouponTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
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
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func seedIssuedCoupon(t *testing.T, db *gorm.DB, userID uuid.UUID, couponType enums.CouponType, value int64) (*models.Coupon, *models.UserCoupon) {
	t.Helper()

	c := &models.Coupon{ID: uuid.New(), Code: "WELCOME10", Name: "welcome", Type: couponType, DiscountValue: value}
	require.NoError(t, db.Create(c).Error)

	uc := &models.UserCoupon{ID: uuid.New(), UserID: userID, CouponID: c.ID}
	require.NoError(t, db.Create(uc).Error)
	return c, uc
}

func TestRedeemAppliesDiscountAndMarksUsed(t *testing.T) {
	db := setupCouponTestDB(t)
	userID := uuid.New()
	orderID := uuid.New()
	seedIssuedCoupon(t, db, userID, enums.CouponTypePercentage, 10)

	l := NewLedger(NewRepository(db))
	now := time.Now().UTC()

	red, err := l.Redeem(context.Background(), db, RedeemInput{
		UserID:   userID,
		OrderID:  orderID,
		Code:     "WELCOME10",
		Subtotal: 20000,
		Now:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", red.CouponCode)
	assert.Equal(t, int64(2000), red.DiscountAmount)

	var stored models.UserCoupon
	require.NoError(t, db.Where("user_id = ?", userID).First(&stored).Error)
	assert.True(t, stored.Used)
	assert.Equal(t, int64(1), stored.Version)
	require.NotNil(t, stored.OrderID)
	assert.Equal(t, orderID, *stored.OrderID)
	assert.NotNil(t, stored.UsedAt)
}

func TestRedeemUnknownCodeReturnsNotFound(t *testing.T) {
	db := setupCouponTestDB(t)

	l := NewLedger(NewRepository(db))
	_, err := l.Redeem(context.Background(), db, RedeemInput{
		UserID:   uuid.New(),
		OrderID:  uuid.New(),
		Code:     "NOPE",
		Subtotal: 1000,
		Now:      time.Now().UTC(),
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestRedeemNotOwnedReturnsNotFound(t *testing.T) {
	db := setupCouponTestDB(t)
	owner := uuid.New()
	seedIssuedCoupon(t, db, owner, enums.CouponTypeFixedAmount, 500)

	l := NewLedger(NewRepository(db))
	_, err := l.Redeem(context.Background(), db, RedeemInput{
		UserID:   uuid.New(), // different user
		OrderID:  uuid.New(),
		Code:     "WELCOME10",
		Subtotal: 1000,
		Now:      time.Now().UTC(),
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeNotFound, typed.Code())
}

func TestRedeemAlreadyUsedReturnsConflict(t *testing.T) {
	db := setupCouponTestDB(t)
	userID := uuid.New()
	_, uc := seedIssuedCoupon(t, db, userID, enums.CouponTypeFixedAmount, 500)

	usedAt := time.Now().UTC()
	require.NoError(t, db.Model(&models.UserCoupon{}).Where("id = ?", uc.ID).
		Updates(map[string]any{"used": true, "used_at": usedAt, "version": 1}).Error)

	l := NewLedger(NewRepository(db))
	_, err := l.Redeem(context.Background(), db, RedeemInput{
		UserID:   userID,
		OrderID:  uuid.New(),
		Code:     "WELCOME10",
		Subtotal: 1000,
		Now:      time.Now().UTC(),
	})
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeConflict, typed.Code())
}

func TestMarkUsedLostRaceReturnsConflict(t *testing.T) {
	db := setupCouponTestDB(t)
	userID := uuid.New()
	seedIssuedCoupon(t, db, userID, enums.CouponTypeFixedAmount, 500)

	repo := NewRepository(db)
	ctx := context.Background()

	c, err := repo.FindCouponByCode(ctx, "WELCOME10")
	require.NoError(t, err)
	uc, err := repo.FindUserCoupon(ctx, userID, c.ID)
	require.NoError(t, err)

	// A concurrent redeemer wins the race between load and save.
	require.NoError(t, db.Model(&models.UserCoupon{}).Where("id = ?", uc.ID).
		Updates(map[string]any{"used": true, "version": uc.Version + 1}).Error)

	err = repo.MarkUsed(ctx, uc, uuid.New(), time.Now().UTC())
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeConflict, typed.Code())
}
