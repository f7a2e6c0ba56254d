package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// OrderCreatedEvent signals a new pending order with its funding breakdown.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	UserID      uuid.UUID `json:"user_id"`
	TotalAmount int64     `json:"total_amount"`
	UsedPoint   int64     `json:"used_point"`
	PaidAmount  int64     `json:"paid_amount"`
	ItemCount   int       `json:"item_count"`
}

// OrderCompletedEvent is emitted once the payment settles and the order closes.
type OrderCompletedEvent struct {
	OrderID        uuid.UUID `json:"order_id"`
	UserID         uuid.UUID `json:"user_id"`
	TotalAmount    int64     `json:"total_amount"`
	TransactionKey string    `json:"transaction_key,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// OrderCanceledEvent is emitted whenever compensation rolls an order back.
type OrderCanceledEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	UserID     uuid.UUID `json:"user_id"`
	CanceledAt time.Time `json:"canceled_at"`
	Reason     string    `json:"reason,omitempty"`
}

// PaymentFailedEvent carries the classified failure for downstream systems.
type PaymentFailedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	PaymentID     uuid.UUID           `json:"payment_id"`
	Status        enums.PaymentStatus `json:"status"`
	FailureReason string              `json:"failure_reason,omitempty"`
	FailedAt      time.Time           `json:"failed_at"`
}
