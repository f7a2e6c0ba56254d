package payment

import "strings"

// ReasonExternalSystem is the catch-all failure reason recorded when the
// gateway outcome cannot be pinned on the cardholder.
const ReasonExternalSystem = "EXTERNAL_SYSTEM_FAILURE"

// FailureKind splits gateway failures into the two branches of the failure
// model: business failures compensate immediately, external failures leave
// the order pending for reconciliation.
type FailureKind string

const (
	FailureBusiness FailureKind = "business"
	FailureExternal FailureKind = "external"
)

// Codes the gateway uses for confirmed cardholder-side rejections. Anything
// else, including a breaker-open fallback or an unknown code, is treated as
// an external failure so a transient outage never triggers compensation.
var businessFailureCodes = []string{
	"LIMIT_EXCEEDED",
	"INVALID_CARD",
	"CARD_ERROR",
	"INSUFFICIENT_FUNDS",
	"PAYMENT_FAILED",
}

// Classify maps a gateway error code onto the failure taxonomy.
func Classify(code string) FailureKind {
	for _, business := range businessFailureCodes {
		if strings.Contains(code, business) {
			return FailureBusiness
		}
	}
	return FailureExternal
}

// FailureReason normalizes the reason persisted on the payment row:
// business codes are kept verbatim, external failures collapse to the
// catch-all so downstream consumers see a stable value.
func FailureReason(code string) string {
	if Classify(code) == FailureBusiness {
		return code
	}
	return ReasonExternalSystem
}
