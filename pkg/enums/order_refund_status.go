package enums

import "fmt"

// OrderRefundStatus is the read-optimized projection of the refund decision
// stored on the order row. The RefundRequest record remains the source of
// the decision itself.
type OrderRefundStatus string

const (
	OrderRefundStatusNone     OrderRefundStatus = "none"
	OrderRefundStatusPending  OrderRefundStatus = "pending"
	OrderRefundStatusApproved OrderRefundStatus = "approved"
	OrderRefundStatusRejected OrderRefundStatus = "rejected"
)

var validOrderRefundStatuses = []OrderRefundStatus{
	OrderRefundStatusNone,
	OrderRefundStatusPending,
	OrderRefundStatusApproved,
	OrderRefundStatusRejected,
}

// String implements fmt.Stringer.
func (r OrderRefundStatus) String() string {
	return string(r)
}

// IsValid reports whether the value is a known OrderRefundStatus.
func (r OrderRefundStatus) IsValid() bool {
	for _, candidate := range validOrderRefundStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOrderRefundStatus converts raw input into an OrderRefundStatus.
func ParseOrderRefundStatus(value string) (OrderRefundStatus, error) {
	for _, candidate := range validOrderRefundStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid order refund status %q", value)
}
