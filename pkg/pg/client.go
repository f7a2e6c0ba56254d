package pg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/minsu-cho/commerce-backend/pkg/config"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
)

const userIDHeader = "X-USER-ID"

var (
	errBaseURLRequired    = errors.New("payment gateway base url is required")
	errMerchantIDRequired = errors.New("payment gateway merchant id is required")
	errLoggerRequired     = errors.New("payment gateway logger is required")
)

// GatewayError is a failed gateway exchange. Retryable errors are transport
// and server-side failures; non-retryable ones are explicit business
// rejections carrying the gateway's error code.
type GatewayError struct {
	StatusCode int
	ErrorCode  string
	Message    string
	Retryable  bool
}

// Error implements error.
func (e *GatewayError) Error() string {
	if e.ErrorCode != "" {
		return fmt.Sprintf("payment gateway rejected request: %s (%s)", e.ErrorCode, e.Message)
	}
	return fmt.Sprintf("payment gateway call failed with status %d: %s", e.StatusCode, e.Message)
}

// IsRetryable reports whether err is a gateway failure worth retrying.
// Transport-level errors (timeouts, refused connections) are retryable too.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return err != nil
}

// Client talks to the payment gateway simulator over HTTP. Every call carries
// the merchant identity in the X-USER-ID header.
type Client struct {
	baseURL     string
	merchantID  string
	callbackURL string
	httpClient  *http.Client
	logger      *logger.Logger
}

// NewClient validates the configuration and builds the HTTP client.
func NewClient(cfg config.GatewayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	merchantID := strings.TrimSpace(cfg.MerchantID)
	if merchantID == "" {
		return nil, errMerchantIDRequired
	}
	return &Client{
		baseURL:     baseURL,
		merchantID:  merchantID,
		callbackURL: strings.TrimSpace(cfg.CallbackURL),
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		logger:      logg,
	}, nil
}

// CallbackURL returns the callback endpoint announced to the gateway.
func (c *Client) CallbackURL() string {
	return c.callbackURL
}

// RequestPayment submits a card payment. The gateway answers with a PENDING
// transaction; the final status arrives via callback or inquiry.
func (c *Client) RequestPayment(ctx context.Context, req PaymentRequest) (*Transaction, error) {
	if req.CallbackURL == "" {
		req.CallbackURL = c.callbackURL
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	c.log(ctx, "request", "request_payment", map[string]any{
		"order_id":  req.OrderID,
		"card_type": req.CardType,
		"amount":    req.Amount,
	})

	var tx Transaction
	if err := c.do(ctx, http.MethodPost, "/payments", bytes.NewReader(body), &tx); err != nil {
		c.log(ctx, "error", "request_payment", map[string]any{"order_id": req.OrderID, "error": err.Error()})
		return nil, err
	}

	c.log(ctx, "response", "request_payment", map[string]any{
		"order_id":        req.OrderID,
		"transaction_key": tx.TransactionKey,
		"status":          tx.Status,
	})
	return &tx, nil
}

// GetTransactionsByOrder lists every gateway attempt for the given order.
func (c *Client) GetTransactionsByOrder(ctx context.Context, orderID string) (*OrderTransactions, error) {
	path := "/payments?orderId=" + url.QueryEscape(orderID)

	var data OrderTransactions
	if err := c.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		c.log(ctx, "error", "get_transactions", map[string]any{"order_id": orderID, "error": err.Error()})
		return nil, err
	}
	return &data, nil
}

// GetTransaction fetches a single transaction by its key.
func (c *Client) GetTransaction(ctx context.Context, transactionKey string) (*Transaction, error) {
	path := "/payments/" + url.PathEscape(transactionKey)

	var tx Transaction
	if err := c.do(ctx, http.MethodGet, path, nil, &tx); err != nil {
		c.log(ctx, "error", "get_transaction", map[string]any{"transaction_key": transactionKey, "error": err.Error()})
		return nil, err
	}
	return &tx, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build gateway request: %w", err)
	}
	req.Header.Set(userIDHeader, c.merchantID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &GatewayError{Message: err.Error(), Retryable: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &GatewayError{StatusCode: resp.StatusCode, Message: err.Error(), Retryable: true}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &GatewayError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(raw)),
			Retryable:  true,
		}
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return &GatewayError{StatusCode: resp.StatusCode, Message: "malformed gateway response", Retryable: true}
	}

	if resp.StatusCode >= http.StatusBadRequest || envelope.Meta.Result == metaResultFail {
		gwErr := &GatewayError{StatusCode: resp.StatusCode}
		if envelope.Meta.ErrorCode != nil {
			gwErr.ErrorCode = *envelope.Meta.ErrorCode
		}
		if envelope.Meta.Message != nil {
			gwErr.Message = *envelope.Meta.Message
		}
		return gwErr
	}

	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &GatewayError{StatusCode: resp.StatusCode, Message: "malformed gateway payload", Retryable: true}
		}
	}
	return nil
}

func (c *Client) log(ctx context.Context, phase, operation string, fields map[string]any) {
	if c.logger == nil {
		return
	}
	merged := map[string]any{"gateway_phase": phase, "gateway_operation": operation}
	for k, v := range fields {
		merged[k] = v
	}
	logCtx := c.logger.WithFields(ctx, merged)
	if phase == "error" {
		c.logger.Warn(logCtx, "payment gateway call failed")
		return
	}
	c.logger.Info(logCtx, "payment gateway call")
}
