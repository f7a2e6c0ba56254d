package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity and owns the point balance.
// Point mutations must only happen while the row is locked FOR UPDATE.
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email        string    `gorm:"type:text;not null;uniqueIndex"`
	Name         string    `gorm:"column:name;not null"`
	PointBalance int64     `gorm:"column:point_balance;not null;default:0"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
