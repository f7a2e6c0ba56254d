package webhooks

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/api/responses"
	"github.com/minsu-cho/commerce-backend/api/validators"
	"github.com/minsu-cho/commerce-backend/internal/reconcile"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	pkgerrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
)

type paymentCallbackRequest struct {
	TransactionKey string `json:"transactionKey" validate:"required"`
	Status         string `json:"status" validate:"required"`
	Reason         string `json:"reason,omitempty"`
}

// PaymentCallback handles the gateway's asynchronous settlement notification.
// The claim is not trusted as-is; the reconciler re-confirms it against the
// gateway's inquiry API before touching the order.
func PaymentCallback(svc reconcile.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconcile service unavailable"))
			return
		}

		rawOrderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
		orderID, err := uuid.Parse(rawOrderID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}

		var req paymentCallbackRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		status, err := enums.ParsePGTransactionStatus(strings.TrimSpace(req.Status))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid transaction status"))
			return
		}

		input := reconcile.CallbackInput{
			OrderID:        orderID,
			TransactionKey: strings.TrimSpace(req.TransactionKey),
			Status:         status,
			Reason:         strings.TrimSpace(req.Reason),
		}

		if err := svc.HandleCallback(ctx, input); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "accepted"})
	}
}
