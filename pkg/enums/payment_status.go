package enums

import "fmt"

// PaymentStatus tracks the financial settlement state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSuccess,
	PaymentStatusFailed,
	PaymentStatusRefunded,
}

// statusRank orders statuses so reconciliation only ever moves forward.
// pending < success < refunded; failed is terminal alongside success.
var statusRank = map[PaymentStatus]int{
	PaymentStatusPending:  0,
	PaymentStatusFailed:   1,
	PaymentStatusSuccess:  1,
	PaymentStatusRefunded: 2,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool {
	for _, candidate := range validPaymentStatuses {
		if candidate == p {
			return true
		}
	}
	return false
}

// CanAdvanceTo reports whether a transition to target moves the status
// strictly forward. Webhook replays and reordered deliveries rely on this
// to converge regardless of arrival order.
func (p PaymentStatus) CanAdvanceTo(target PaymentStatus) bool {
	if p == target {
		return false
	}
	// failed and success are siblings; neither may overwrite the other.
	if (p == PaymentStatusFailed && target == PaymentStatusSuccess) ||
		(p == PaymentStatusSuccess && target == PaymentStatusFailed) {
		return false
	}
	// refunds only apply to settled payments.
	if target == PaymentStatusRefunded && p != PaymentStatusSuccess {
		return false
	}
	return statusRank[target] > statusRank[p]
}

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	for _, candidate := range validPaymentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment status %q", value)
}
