package models

import (
	"time"

	"github.com/google/uuid"
)

// Product is a sellable item with an authoritative stock count.
// Stock mutations must only happen while the row is locked FOR UPDATE.
type Product struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name      string    `gorm:"column:name;not null"`
	Price     int64     `gorm:"column:price;not null"`
	Stock     int       `gorm:"column:stock;not null;default:0"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
