package routes

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/minsu-cho/commerce-backend/internal/purchase"
	"github.com/minsu-cho/commerce-backend/internal/reconcile"
	"github.com/minsu-cho/commerce-backend/pkg/config"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	pkgerrors "github.com/minsu-cho/commerce-backend/pkg/errors"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/pagination"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubPurchaseService struct {
	orders map[uuid.UUID]*purchase.OrderInfo
	listed []uuid.UUID
}

func (s *stubPurchaseService) CreateOrder(ctx context.Context, input purchase.CreateOrderInput) (*purchase.OrderInfo, error) {
	return &purchase.OrderInfo{OrderID: uuid.New(), Status: enums.OrderStatusPending}, nil
}

func (s *stubPurchaseService) GetOrder(ctx context.Context, userID, orderID uuid.UUID) (*purchase.OrderInfo, error) {
	if info, ok := s.orders[orderID]; ok {
		return info, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
}

func (s *stubPurchaseService) ListOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*purchase.OrderListInfo, error) {
	s.listed = append(s.listed, userID)
	return &purchase.OrderListInfo{Orders: []purchase.OrderInfo{}}, nil
}

type stubReconcileService struct {
	callbacks []reconcile.CallbackInput
	recovered []uuid.UUID
}

func (s *stubReconcileService) HandleCallback(ctx context.Context, input reconcile.CallbackInput) error {
	s.callbacks = append(s.callbacks, input)
	return nil
}

func (s *stubReconcileService) RecoverOrder(ctx context.Context, orderID uuid.UUID) error {
	s.recovered = append(s.recovered, orderID)
	return nil
}

func (s *stubReconcileService) CompleteOrder(context.Context, uuid.UUID, string) error { return nil }
func (s *stubReconcileService) CancelOrder(context.Context, uuid.UUID, string) error  { return nil }
func (s *stubReconcileService) RecoverLater(uuid.UUID)                                {}

func newTestRouter(t *testing.T, purchaseSvc purchase.Service, reconcileSvc reconcile.Service) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	logg := logger.New(logger.Options{ServiceName: "router-test", Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, nil, nil, purchaseSvc, reconcileSvc)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(t, &stubPurchaseService{}, &stubReconcileService{})

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if env := rec.Header().Get("X-Commerce-Env"); env != "test" {
		t.Fatalf("unexpected env header %q", env)
	}
}

func TestRouterRequiresIdentity(t *testing.T) {
	router := newTestRouter(t, &stubPurchaseService{}, &stubReconcileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouterListOrdersWithIdentity(t *testing.T) {
	svc := &stubPurchaseService{}
	router := newTestRouter(t, svc, &stubReconcileService{})

	userID := uuid.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-USER-ID", userID.String())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(svc.listed) != 1 || svc.listed[0] != userID {
		t.Fatalf("expected list call for %s, got %v", userID, svc.listed)
	}
}

func TestRouterOrderDetailNotFound(t *testing.T) {
	router := newTestRouter(t, &stubPurchaseService{}, &stubReconcileService{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil)
	req.Header.Set("X-USER-ID", uuid.NewString())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRouterCreateOrderRequiresIdempotencyKey(t *testing.T) {
	router := newTestRouter(t, &stubPurchaseService{}, &stubReconcileService{})

	body := strings.NewReader(`{"items":[{"productId":"` + uuid.NewString() + `","quantity":1}]}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", body)
	req.Header.Set("X-USER-ID", uuid.NewString())
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if !strings.Contains(envelope.Error.Message, "Idempotency-Key") {
		t.Fatalf("unexpected error message %q", envelope.Error.Message)
	}
}

func TestRouterCallbackBypassesIdentity(t *testing.T) {
	reconcileSvc := &stubReconcileService{}
	router := newTestRouter(t, &stubPurchaseService{}, reconcileSvc)

	orderID := uuid.New()
	body := strings.NewReader(`{"transactionKey":"tx-1","status":"SUCCESS"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/callback", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(reconcileSvc.callbacks) != 1 {
		t.Fatalf("expected one callback, got %d", len(reconcileSvc.callbacks))
	}
	got := reconcileSvc.callbacks[0]
	if got.OrderID != orderID || got.TransactionKey != "tx-1" || got.Status != enums.PGTransactionSuccess {
		t.Fatalf("unexpected callback input %+v", got)
	}
}

func TestRouterCallbackRejectsUnknownStatus(t *testing.T) {
	router := newTestRouter(t, &stubPurchaseService{}, &stubReconcileService{})

	body := strings.NewReader(`{"transactionKey":"tx-1","status":"MAYBE"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/callback", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
