package pg

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/minsu-cho/commerce-backend/pkg/breaker"
	"github.com/minsu-cho/commerce-backend/pkg/config"
	"github.com/minsu-cho/commerce-backend/pkg/enums"
	"github.com/minsu-cho/commerce-backend/pkg/logger"
	"github.com/minsu-cho/commerce-backend/pkg/metrics"
)

// ReasonBreakerOpen is the failure code reported when the breaker rejects a
// call without reaching the gateway.
const ReasonBreakerOpen = "CIRCUIT_BREAKER_OPEN"

// RequestOutcome distinguishes a gateway answer from a gateway outage.
type RequestOutcome string

const (
	// OutcomeAccepted means the gateway accepted the payment request.
	OutcomeAccepted RequestOutcome = "accepted"
	// OutcomeRejected means the gateway explicitly declined with a business code.
	OutcomeRejected RequestOutcome = "rejected"
	// OutcomeUnavailable means the gateway could not be reached or answered 5xx.
	// The payment's real state is unknown and must be reconciled later.
	OutcomeUnavailable RequestOutcome = "unavailable"
)

// PaymentResult is the user-path answer. It is never an error: outages
// degrade to OutcomeUnavailable so order placement is never blocked.
type PaymentResult struct {
	Outcome        RequestOutcome
	TransactionKey string
	Status         enums.PGTransactionStatus
	FailureCode    string
}

// Gateway wraps the client with the circuit breaker for the synchronous user
// path. No retries here: a user request gets one shot and degrades fast.
type Gateway struct {
	client  *Client
	breaker *breaker.Breaker
	metrics *metrics.GatewayMetrics
	logger  *logger.Logger
}

// NewGateway builds the breaker-guarded user-path gateway.
func NewGateway(client *Client, cfg config.BreakerConfig, gm *metrics.GatewayMetrics, logg *logger.Logger) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("gateway client is required")
	}
	if logg == nil {
		return nil, errLoggerRequired
	}

	g := &Gateway{client: client, metrics: gm, logger: logg}
	g.breaker = breaker.New(breaker.Settings{
		WindowSize:            cfg.WindowSize,
		MinimumCalls:          cfg.MinimumCalls,
		FailureRateThreshold:  cfg.FailureRateThreshold,
		SlowCallRateThreshold: cfg.SlowCallRateThreshold,
		SlowCallDuration:      cfg.SlowCallDuration,
		OpenStateWait:         cfg.OpenStateWait,
		HalfOpenMaxCalls:      cfg.HalfOpenMaxCalls,
		OnStateChange: func(from, to breaker.State) {
			gm.IncBreakerTransition(from.String(), to.String())
			gm.SetBreakerState(to.String())
			ctx := logg.WithFields(context.Background(), map[string]any{
				"breaker_from": from.String(),
				"breaker_to":   to.String(),
			})
			logg.Warn(ctx, "payment gateway breaker state changed")
		},
	})
	return g, nil
}

// BreakerState exposes the breaker position for health reporting.
func (g *Gateway) BreakerState() breaker.State {
	return g.breaker.State()
}

// RequestPayment submits a payment under the breaker. Business rejections
// count as healthy gateway answers; only transport and 5xx failures feed the
// breaker window.
func (g *Gateway) RequestPayment(ctx context.Context, req PaymentRequest) PaymentResult {
	var (
		tx     *Transaction
		bizErr *GatewayError
	)

	start := time.Now()
	err := g.breaker.Execute(func() error {
		t, callErr := g.client.RequestPayment(ctx, req)
		if callErr != nil {
			var gwErr *GatewayError
			if errors.As(callErr, &gwErr) && !gwErr.Retryable {
				bizErr = gwErr
				return nil
			}
			return callErr
		}
		tx = t
		return nil
	})
	g.observe("request_payment", err, bizErr, time.Since(start))

	switch {
	case errors.Is(err, breaker.ErrOpen):
		return PaymentResult{Outcome: OutcomeUnavailable, FailureCode: ReasonBreakerOpen}
	case err != nil:
		return PaymentResult{Outcome: OutcomeUnavailable}
	case bizErr != nil:
		return PaymentResult{Outcome: OutcomeRejected, FailureCode: bizErr.ErrorCode}
	default:
		return PaymentResult{
			Outcome:        OutcomeAccepted,
			TransactionKey: tx.TransactionKey,
			Status:         tx.Status,
		}
	}
}

// InquireOrder fetches the gateway's view of an order under the breaker.
// Callers must treat an error as "state unknown", not as a failed payment.
func (g *Gateway) InquireOrder(ctx context.Context, orderID string) (*OrderTransactions, error) {
	var data *OrderTransactions

	start := time.Now()
	err := g.breaker.Execute(func() error {
		d, callErr := g.client.GetTransactionsByOrder(ctx, orderID)
		if callErr != nil {
			return callErr
		}
		data = d
		return nil
	})
	g.observe("inquire_order", err, nil, time.Since(start))

	if err != nil {
		return nil, err
	}
	return data, nil
}

func (g *Gateway) observe(operation string, err error, bizErr *GatewayError, elapsed time.Duration) {
	outcome := "success"
	switch {
	case errors.Is(err, breaker.ErrOpen):
		outcome = "breaker_open"
	case err != nil:
		outcome = "failure"
	case bizErr != nil:
		outcome = "rejected"
	}
	g.metrics.ObserveRequest(operation, outcome, elapsed)
}

// SchedulerGateway serves the background reconciliation path. Unlike the user
// path it retries transient failures with exponential backoff, since nobody
// is waiting on the response.
type SchedulerGateway struct {
	client      *Client
	maxAttempts uint64
	baseBackoff time.Duration
	maxBackoff  time.Duration
	metrics     *metrics.GatewayMetrics
	logger      *logger.Logger
}

// NewSchedulerGateway builds the retrying background gateway.
func NewSchedulerGateway(client *Client, cfg config.GatewayConfig, gm *metrics.GatewayMetrics, logg *logger.Logger) (*SchedulerGateway, error) {
	if client == nil {
		return nil, errors.New("gateway client is required")
	}
	if logg == nil {
		return nil, errLoggerRequired
	}
	attempts := cfg.RetryAttempts
	if attempts <= 0 {
		attempts = 3
	}
	base := cfg.RetryBaseBackoff
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	capped := cfg.RetryMaxBackoff
	if capped <= 0 {
		capped = 5 * time.Second
	}
	return &SchedulerGateway{
		client:      client,
		maxAttempts: uint64(attempts),
		baseBackoff: base,
		maxBackoff:  capped,
		metrics:     gm,
		logger:      logg,
	}, nil
}

// InquireOrder fetches the gateway's view of an order, retrying 5xx and
// transport failures. Business errors fail immediately.
func (s *SchedulerGateway) InquireOrder(ctx context.Context, orderID string) (*OrderTransactions, error) {
	var data *OrderTransactions

	start := time.Now()
	err := retry.Do(ctx, s.backoff(), func(ctx context.Context) error {
		d, callErr := s.client.GetTransactionsByOrder(ctx, orderID)
		if callErr != nil {
			if IsRetryable(callErr) {
				return retry.RetryableError(callErr)
			}
			return callErr
		}
		data = d
		return nil
	})

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	s.metrics.ObserveRequest("scheduler_inquire_order", outcome, time.Since(start))

	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *SchedulerGateway) backoff() retry.Backoff {
	b := retry.NewExponential(s.baseBackoff)
	b = retry.WithJitterPercent(50, b)
	b = retry.WithCappedDuration(s.maxBackoff, b)
	b = retry.WithMaxRetries(s.maxAttempts-1, b)
	return b
}
