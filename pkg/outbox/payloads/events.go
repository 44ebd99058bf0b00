package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/vendorahq/vendora-backend/pkg/enums"
)

// OrderPlacedEvent signals a new order created at checkout.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID      `json:"order_id"`
	OrderCode  string         `json:"order_code"`
	BuyerID    uuid.UUID      `json:"buyer_id"`
	VendorID   uuid.UUID      `json:"vendor_id"`
	TotalMinor int64          `json:"total_minor"`
	Currency   enums.Currency `json:"currency"`
	LineItems  int            `json:"line_items"`
}

// OrderStateChangedEvent reports a fulfillment transition.
type OrderStateChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OrderCode string            `json:"order_code"`
	VendorID  uuid.UUID         `json:"vendor_id"`
	From      enums.OrderStatus `json:"from"`
	To        enums.OrderStatus `json:"to"`
	Note      string            `json:"note,omitempty"`
}

// OrderCancelledEvent is emitted when a buyer cancels a pre-shipment order.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderCode   string    `json:"order_code"`
	BuyerID     uuid.UUID `json:"buyer_id"`
	VendorID    uuid.UUID `json:"vendor_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

// PaymentCapturedEvent reports a reconciled successful payment.
type PaymentCapturedEvent struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	OrderID          uuid.UUID `json:"order_id"`
	GatewayPaymentID string    `json:"gateway_payment_id"`
	AmountMinor      int64     `json:"amount_minor"`
	Method           string    `json:"method,omitempty"`
}

// PaymentFailedEvent reports a reconciled failed payment.
type PaymentFailedEvent struct {
	PaymentID        uuid.UUID `json:"payment_id"`
	OrderID          uuid.UUID `json:"order_id"`
	ErrorCode        string    `json:"error_code,omitempty"`
	ErrorDescription string    `json:"error_description,omitempty"`
}

// RefundRequestedEvent signals a buyer-opened refund request.
type RefundRequestedEvent struct {
	RefundRequestID uuid.UUID `json:"refund_request_id"`
	OrderID         uuid.UUID `json:"order_id"`
	BuyerID         uuid.UUID `json:"buyer_id"`
	VendorID        uuid.UUID `json:"vendor_id"`
	RequestedMinor  int64     `json:"requested_minor"`
	Reason          string    `json:"reason"`
}

// RefundDecidedEvent is emitted when a vendor resolves a refund request.
type RefundDecidedEvent struct {
	RefundRequestID uuid.UUID                 `json:"refund_request_id"`
	OrderID         uuid.UUID                 `json:"order_id"`
	Status          enums.RefundRequestStatus `json:"status"`
	ApprovedMinor   *int64                    `json:"approved_minor,omitempty"`
}

// PaymentRefundedEvent reports the gateway's authoritative refund completion.
type PaymentRefundedEvent struct {
	PaymentID   uuid.UUID `json:"payment_id"`
	OrderID     uuid.UUID `json:"order_id"`
	RefundID    string    `json:"refund_id"`
	AmountMinor int64     `json:"amount_minor"`
	RefundedAt  time.Time `json:"refunded_at"`
}
