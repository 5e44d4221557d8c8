package enums

import "fmt"

// OfferingKind describes how a catalog offering is sold.
type OfferingKind string

const (
	OfferingKindCreditPack   OfferingKind = "credit_pack"
	OfferingKindSubscription OfferingKind = "subscription"
)

var validOfferingKinds = []OfferingKind{
	OfferingKindCreditPack,
	OfferingKindSubscription,
}

// IsValid reports whether the value matches the canonical offering kind enum.
func (k OfferingKind) IsValid() bool {
	for _, candidate := range validOfferingKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseOfferingKind converts the raw string to OfferingKind.
func ParseOfferingKind(value string) (OfferingKind, error) {
	for _, candidate := range validOfferingKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid offering kind %q", value)
}
