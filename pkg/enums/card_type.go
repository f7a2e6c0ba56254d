package enums

import "fmt"

// CardType identifies the card network accepted by the payment gateway.
type CardType string

const (
	CardTypeSamsung CardType = "SAMSUNG"
	CardTypeKB      CardType = "KB"
	CardTypeHyundai CardType = "HYUNDAI"
)

var validCardTypes = []CardType{
	CardTypeSamsung,
	CardTypeKB,
	CardTypeHyundai,
}

// String implements fmt.Stringer.
func (c CardType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CardType.
func (c CardType) IsValid() bool {
	for _, candidate := range validCardTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCardType converts raw input into a CardType.
func ParseCardType(value string) (CardType, error) {
	for _, candidate := range validCardTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid card type %q", value)
}
