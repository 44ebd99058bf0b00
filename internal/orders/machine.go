package orders

import (
	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// transitions is the full adjacency table for the fulfillment lifecycle.
// Anything not listed is rejected, including self-transitions. delivered is
// reachable only through the OTP-verified delivery operation and returned
// only through an approved refund, but both still appear here so every
// mutation funnels through the same check.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusAccepted},
	enums.OrderStatusAccepted:       {enums.OrderStatusPickedPacked, enums.OrderStatusCancelled},
	enums.OrderStatusPickedPacked:   {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:        {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {enums.OrderStatusReturned},
}

// CanTransition reports whether the move from one status to the next is a
// legal step in the lifecycle.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of a status.
func NextStatuses(from enums.OrderStatus) []enums.OrderStatus {
	next := transitions[from]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// vendorAdvanceTargets are the statuses a vendor can move an order to
// directly. Confirmation belongs to payment reconciliation and delivery to
// the OTP flow.
var vendorAdvanceTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusAccepted:       true,
	enums.OrderStatusPickedPacked:   true,
	enums.OrderStatusShipped:        true,
	enums.OrderStatusOutForDelivery: true,
}

// VendorCanSet reports whether the target status is vendor-settable.
func VendorCanSet(to enums.OrderStatus) bool {
	return vendorAdvanceTargets[to]
}

// buyerCancellable are the statuses from which a buyer may cancel.
var buyerCancellable = map[enums.OrderStatus]bool{
	enums.OrderStatusPlaced:       true,
	enums.OrderStatusAccepted:     true,
	enums.OrderStatusPickedPacked: true,
}

// BuyerCanCancel reports whether a buyer may cancel from the given status.
func BuyerCanCancel(from enums.OrderStatus) bool {
	return buyerCancellable[from]
}
