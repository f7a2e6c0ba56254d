package purchase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	"github.com/minsu-cho/commerce-backend/pkg/pagination"
)

// Repository defines persistence operations for order aggregates.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) error
	FindOrderByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	FindPendingOrderIDsBefore(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) error
}

// OrderList is one cursor page of a user's orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}
