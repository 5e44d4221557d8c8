package enums

import "fmt"

// CheckoutMode is the billing mode a checkout session is opened in.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

var validCheckoutModes = []CheckoutMode{
	CheckoutModePayment,
	CheckoutModeSubscription,
}

// IsValid reports whether the value matches the canonical checkout mode enum.
func (m CheckoutMode) IsValid() bool {
	for _, candidate := range validCheckoutModes {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseCheckoutMode converts the raw string to CheckoutMode.
func ParseCheckoutMode(value string) (CheckoutMode, error) {
	for _, candidate := range validCheckoutModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout mode %q", value)
}
