package orders

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/api/middleware"
	"github.com/minsu-cho/commerce-backend/api/responses"
	"github.com/minsu-cho/commerce-backend/api/validators"
	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/internal/reconcile"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	pkgerrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/pagination"
)

type createOrderItem struct {
	ProductID string `json:"productId" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type createOrderRequest struct {
	Items      []createOrderItem `json:"items" validate:"required,min=1,dive"`
	CouponCode *string           `json:"couponCode,omitempty" validate:"omitempty,min=1"`
	UsedPoint  int64             `json:"usedPoint" validate:"min=0"`
	CardType   string            `json:"cardType,omitempty"`
	CardNo     string            `json:"cardNo,omitempty"`
}

// Create places a purchase order for the authenticated user.
func Create(svc purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input, err := buildCreateInput(userID, req)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.CreateOrder(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, info)
	}
}

// List returns the authenticated user's orders, newest first.
func List(svc purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cursor := strings.TrimSpace(r.URL.Query().Get("cursor"))

		list, err := svc.ListOrders(r.Context(), userID, pagination.Params{Limit: limit, Cursor: cursor})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Detail returns one order owned by the authenticated user.
func Detail(svc purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "purchase service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := svc.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

// Recover forces an immediate gateway reconciliation of a pending order.
func Recover(svc reconcile.Service, orders purchase.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		userID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// Ownership check doubles as the existence check.
		if _, err := orders.GetOrder(r.Context(), userID, orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.RecoverOrder(r.Context(), orderID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := orders.GetOrder(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

func buildCreateInput(userID uuid.UUID, req createOrderRequest) (purchase.CreateOrderInput, error) {
	input := purchase.CreateOrderInput{
		UserID:    userID,
		Items:     make([]purchase.OrderLine, 0, len(req.Items)),
		UsedPoint: req.UsedPoint,
		CardNo:    strings.TrimSpace(req.CardNo),
	}

	for _, item := range req.Items {
		productID, err := uuid.Parse(item.ProductID)
		if err != nil {
			return purchase.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id")
		}
		input.Items = append(input.Items, purchase.OrderLine{ProductID: productID, Quantity: item.Quantity})
	}

	if req.CouponCode != nil {
		code := strings.TrimSpace(*req.CouponCode)
		if code == "" {
			return purchase.CreateOrderInput{}, pkgerrors.New(pkgerrors.CodeValidation, "coupon code must not be blank")
		}
		input.CouponCode = &code
	}

	if raw := strings.TrimSpace(req.CardType); raw != "" {
		cardType, err := enums.ParseCardType(raw)
		if err != nil {
			return purchase.CreateOrderInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid card type")
		}
		input.CardType = cardType
	}

	return input, nil
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user identity")
	}
	userID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return userID, nil
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	orderID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return orderID, nil
}
