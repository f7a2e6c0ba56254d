package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/pkg/enums"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

// Payment records how an order gets funded. PaidAmount is always
// TotalAmount minus UsedPoint; when points cover the full total the payment
// is created directly in success without ever touching the gateway.
type Payment struct {
	ID             uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID        uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TotalAmount    int64               `gorm:"column:total_amount;not null"`
	UsedPoint      int64               `gorm:"column:used_point;not null;default:0"`
	PaidAmount     int64               `gorm:"column:paid_amount;not null"`
	Status         enums.PaymentStatus `gorm:"column:status;type:payment_status_enum;not null;default:'pending'"`
	FailureReason  *string             `gorm:"column:failure_reason"`
	TransactionKey *string             `gorm:"column:transaction_key"`
	PGRequestedAt  *time.Time          `gorm:"column:pg_requested_at"`
	PGCompletedAt  *time.Time          `gorm:"column:pg_completed_at"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// NewPayment builds a pending payment for the given amounts. A zero paid
// amount short-circuits to success since there is nothing left to charge.
func NewPayment(orderID uuid.UUID, totalAmount, usedPoint int64, now time.Time) (*Payment, error) {
	if totalAmount < 0 {
		return nil, apperrors.New(apperrors.CodeValidation, "total amount must not be negative")
	}
	if usedPoint < 0 || usedPoint > totalAmount {
		return nil, apperrors.New(apperrors.CodeValidation, "used point must be between 0 and the total amount")
	}
	p := &Payment{
		OrderID:     orderID,
		TotalAmount: totalAmount,
		UsedPoint:   usedPoint,
		PaidAmount:  totalAmount - usedPoint,
		Status:      enums.PaymentStatusPending,
	}
	if p.PaidAmount == 0 {
		p.Status = enums.PaymentStatusSuccess
		completed := now
		p.PGCompletedAt = &completed
	}
	return p, nil
}

// MarkRequested stamps the moment the gateway call was attempted.
func (p *Payment) MarkRequested(now time.Time) {
	requested := now
	p.PGRequestedAt = &requested
}

// MarkSuccess settles the payment. Settling an already successful payment is
// idempotent; settling a failed payment is rejected.
func (p *Payment) MarkSuccess(transactionKey string, now time.Time) error {
	switch p.Status {
	case enums.PaymentStatusSuccess:
		return nil
	case enums.PaymentStatusFailed:
		return apperrors.New(apperrors.CodeStateConflict, "payment already failed and cannot succeed")
	}
	p.Status = enums.PaymentStatusSuccess
	if transactionKey != "" {
		key := transactionKey
		p.TransactionKey = &key
	}
	completed := now
	p.PGCompletedAt = &completed
	return nil
}

// MarkFailed records a terminal failure with its classified reason.
// Failing an already failed payment is idempotent; failing a successful
// payment is rejected.
func (p *Payment) MarkFailed(reason string, now time.Time) error {
	switch p.Status {
	case enums.PaymentStatusFailed:
		return nil
	case enums.PaymentStatusSuccess:
		return apperrors.New(apperrors.CodeStateConflict, "payment already succeeded and cannot fail")
	}
	p.Status = enums.PaymentStatusFailed
	if reason != "" {
		r := reason
		p.FailureReason = &r
	}
	completed := now
	p.PGCompletedAt = &completed
	return nil
}
