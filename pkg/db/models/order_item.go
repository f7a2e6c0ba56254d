package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem is a snapshot of a product at purchase time. UnitPrice is copied
// from the product so later price changes never rewrite history.
type OrderItem struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID     uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	ProductName string    `gorm:"column:product_name;not null"`
	UnitPrice   int64     `gorm:"column:unit_price;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	LineAmount  int64     `gorm:"column:line_amount;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}
