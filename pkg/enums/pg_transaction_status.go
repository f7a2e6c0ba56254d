package enums

import "fmt"

// PGTransactionStatus is the state the payment gateway reports for a transaction.
type PGTransactionStatus string

const (
	PGTransactionPending PGTransactionStatus = "PENDING"
	PGTransactionSuccess PGTransactionStatus = "SUCCESS"
	PGTransactionFailed  PGTransactionStatus = "FAILED"
)

var validPGTransactionStatuses = []PGTransactionStatus{
	PGTransactionPending,
	PGTransactionSuccess,
	PGTransactionFailed,
}

// String implements fmt.Stringer.
func (p PGTransactionStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PGTransactionStatus.
func (p PGTransactionStatus) IsValid() bool {
	for _, candidate := range validPGTransactionStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePGTransactionStatus converts raw input into a PGTransactionStatus.
func ParsePGTransactionStatus(value string) (PGTransactionStatus, error) {
	for _, candidate := range validPGTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid pg transaction status %q", value)
}
