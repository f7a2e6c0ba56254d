package wallet

import (
	"errors"

	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// PointWallet mutates a user's point balance. Callers must hold an exclusive
// lock on the user row for the lifetime of the transaction.
type PointWallet struct{}

// NewPointWallet builds the wallet.
func NewPointWallet() *PointWallet {
	return &PointWallet{}
}

// Deduct spends points from the locked user, persisting the new balance.
func (w *PointWallet) Deduct(tx *gorm.DB, user *models.User, points int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if user == nil {
		return errors.New("user required")
	}
	if points < 0 {
		return apperrors.New(apperrors.CodeValidation, "points must not be negative")
	}
	if points == 0 {
		return nil
	}
	if user.PointBalance < points {
		return apperrors.New(apperrors.CodeConflict, "insufficient point balance").
			WithDetails(map[string]any{
				"user_id":   user.ID.String(),
				"requested": points,
				"available": user.PointBalance,
			})
	}

	user.PointBalance -= points
	return tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("point_balance", user.PointBalance).Error
}

// Refund returns points to the locked user.
func (w *PointWallet) Refund(tx *gorm.DB, user *models.User, points int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if user == nil {
		return errors.New("user required")
	}
	if points < 0 {
		return apperrors.New(apperrors.CodeValidation, "points must not be negative")
	}
	if points == 0 {
		return nil
	}

	user.PointBalance += points
	return tx.Model(&models.User{}).
		Where("id = ?", user.ID).
		Update("point_balance", user.PointBalance).Error
}
