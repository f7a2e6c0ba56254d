package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyBusinessCodes(t *testing.T) {
	for _, code := range []string{
		"LIMIT_EXCEEDED",
		"INVALID_CARD",
		"CARD_ERROR",
		"INSUFFICIENT_FUNDS",
		"PAYMENT_FAILED",
		"CARD_ERROR_TEMPORARY", // substring match
	} {
		assert.Equal(t, FailureBusiness, Classify(code), code)
	}
}

func TestClassifyExternalCodes(t *testing.T) {
	for _, code := range []string{
		"CIRCUIT_BREAKER_OPEN",
		"TIMEOUT",
		"UNKNOWN_PROVIDER_CODE",
		"",
	} {
		assert.Equal(t, FailureExternal, Classify(code), code)
	}
}

func TestFailureReasonNormalization(t *testing.T) {
	assert.Equal(t, "INVALID_CARD", FailureReason("INVALID_CARD"))
	assert.Equal(t, ReasonExternalSystem, FailureReason("CIRCUIT_BREAKER_OPEN"))
	assert.Equal(t, ReasonExternalSystem, FailureReason(""))
}
