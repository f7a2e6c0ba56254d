package purchase

import (
	"time"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/pkg/db/models"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
)

// OrderLine is one requested cart line.
type OrderLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// CreateOrderInput carries a validated purchase request into the orchestrator.
type CreateOrderInput struct {
	UserID     uuid.UUID
	Items      []OrderLine
	CouponCode *string
	UsedPoint  int64
	CardType   enums.CardType
	CardNo     string
}

// OrderItemInfo is a read model of one order line.
type OrderItemInfo struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
	UnitPrice   int64     `json:"unitPrice"`
	Quantity    int       `json:"quantity"`
	LineAmount  int64     `json:"lineAmount"`
}

// OrderInfo is the read model returned from create/get/list operations.
type OrderInfo struct {
	OrderID        uuid.UUID           `json:"orderId"`
	Status         enums.OrderStatus   `json:"status"`
	CouponCode     *string             `json:"couponCode,omitempty"`
	DiscountAmount int64               `json:"discountAmount"`
	TotalAmount    int64               `json:"totalAmount"`
	UsedPoint      int64               `json:"usedPoint"`
	PaidAmount     int64               `json:"paidAmount"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	FailureReason  *string             `json:"failureReason,omitempty"`
	Items          []OrderItemInfo     `json:"items"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// OrderInfoFromModel projects a loaded order aggregate into its read model.
func OrderInfoFromModel(order *models.Order) OrderInfo {
	info := OrderInfo{
		OrderID:        order.ID,
		Status:         order.Status,
		CouponCode:     order.CouponCode,
		DiscountAmount: order.DiscountAmount,
		TotalAmount:    order.TotalAmount,
		Items:          make([]OrderItemInfo, 0, len(order.Items)),
		CreatedAt:      order.CreatedAt,
	}
	if order.Payment != nil {
		info.UsedPoint = order.Payment.UsedPoint
		info.PaidAmount = order.Payment.PaidAmount
		info.PaymentStatus = order.Payment.Status
		info.FailureReason = order.Payment.FailureReason
	}
	for _, item := range order.Items {
		info.Items = append(info.Items, OrderItemInfo{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice,
			Quantity:    item.Quantity,
			LineAmount:  item.LineAmount,
		})
	}
	return info
}

// OrderListInfo is one page of a user's orders.
type OrderListInfo struct {
	Orders     []OrderInfo `json:"orders"`
	NextCursor string      `json:"nextCursor,omitempty"`
}
