package inventory

import (
	"errors"

	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// StockLedger mutates product stock. Callers must hold an exclusive lock on
// the product row for the lifetime of the transaction; the ledger only
// applies deltas and enforces the non-negative invariant.
type StockLedger struct{}

// NewStockLedger builds the ledger.
func NewStockLedger() *StockLedger {
	return &StockLedger{}
}

// Deduct removes qty units from the locked product, persisting the new count.
func (l *StockLedger) Deduct(tx *gorm.DB, product *models.Product, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if product == nil {
		return errors.New("product required")
	}
	if qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}
	if product.Stock < qty {
		return apperrors.New(apperrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{
				"product_id": product.ID.String(),
				"requested":  qty,
				"available":  product.Stock,
			})
	}

	product.Stock -= qty
	return tx.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("stock", product.Stock).Error
}

// Restore returns qty units to the locked product.
func (l *StockLedger) Restore(tx *gorm.DB, product *models.Product, qty int) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if product == nil {
		return errors.New("product required")
	}
	if qty <= 0 {
		return apperrors.New(apperrors.CodeValidation, "quantity must be positive")
	}

	product.Stock += qty
	return tx.Model(&models.Product{}).
		Where("id = ?", product.ID).
		Update("stock", product.Stock).Error
}
