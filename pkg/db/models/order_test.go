package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minsu-cho/commerce-backend/pkg/enums"
	apperrors "github.com/minsu-cho/commerce-backend/pkg/errors"
)

func TestOrderTerminalTransitions(t *testing.T) {
	o := &Order{Status: enums.OrderStatusPending}

	require.NoError(t, o.MarkCompleted())
	assert.Equal(t, enums.OrderStatusCompleted, o.Status)

	// Re-applying the same terminal state is a no-op.
	require.NoError(t, o.MarkCompleted())

	// Crossing terminal states is rejected.
	err := o.MarkCanceled()
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
	assert.Equal(t, enums.OrderStatusCompleted, o.Status)
}

func TestOrderCancelIsIdempotent(t *testing.T) {
	o := &Order{Status: enums.OrderStatusPending}

	require.NoError(t, o.MarkCanceled())
	require.NoError(t, o.MarkCanceled())
	assert.Equal(t, enums.OrderStatusCanceled, o.Status)

	err := o.MarkCompleted()
	require.Error(t, err)
}

func TestNewPaymentSplitsAmounts(t *testing.T) {
	now := time.Now().UTC()
	p, err := NewPayment(uuid.New(), 10000, 3000, now)
	require.NoError(t, err)

	assert.Equal(t, int64(7000), p.PaidAmount)
	assert.Equal(t, enums.PaymentStatusPending, p.Status)
	assert.Nil(t, p.PGCompletedAt)
}

func TestNewPaymentZeroPaidAmountIsImmediateSuccess(t *testing.T) {
	now := time.Now().UTC()
	p, err := NewPayment(uuid.New(), 5000, 5000, now)
	require.NoError(t, err)

	assert.Equal(t, int64(0), p.PaidAmount)
	assert.Equal(t, enums.PaymentStatusSuccess, p.Status)
	require.NotNil(t, p.PGCompletedAt)
}

func TestNewPaymentRejectsOverspentPoints(t *testing.T) {
	_, err := NewPayment(uuid.New(), 1000, 1500, time.Now().UTC())
	require.Error(t, err)
}

func TestPaymentTerminalLattice(t *testing.T) {
	now := time.Now().UTC()
	p, err := NewPayment(uuid.New(), 10000, 0, now)
	require.NoError(t, err)

	require.NoError(t, p.MarkSuccess("tx-123", now))
	require.NotNil(t, p.TransactionKey)
	assert.Equal(t, "tx-123", *p.TransactionKey)

	// Same terminal state again is fine, the opposite one is not.
	require.NoError(t, p.MarkSuccess("tx-123", now))
	err = p.MarkFailed("INVALID_CARD", now)
	require.Error(t, err)
	typed := apperrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, apperrors.CodeStateConflict, typed.Code())
}

func TestPaymentFailureRecordsReason(t *testing.T) {
	now := time.Now().UTC()
	p, err := NewPayment(uuid.New(), 10000, 0, now)
	require.NoError(t, err)

	require.NoError(t, p.MarkFailed("LIMIT_EXCEEDED", now))
	require.NotNil(t, p.FailureReason)
	assert.Equal(t, "LIMIT_EXCEEDED", *p.FailureReason)
	require.NoError(t, p.MarkFailed("LIMIT_EXCEEDED", now))
}
