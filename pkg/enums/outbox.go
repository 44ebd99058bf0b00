package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateOrder         OutboxAggregateType = "order"
	AggregatePayment       OutboxAggregateType = "payment"
	AggregateRefundRequest OutboxAggregateType = "refund_request"
	AggregateWebhookEvent  OutboxAggregateType = "webhook_event"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayment,
	AggregateRefundRequest,
	AggregateWebhookEvent,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventOrderPlaced          OutboxEventType = "order_placed"
	EventOrderConfirmed       OutboxEventType = "order_confirmed"
	EventOrderStateChanged    OutboxEventType = "order_state_changed"
	EventOrderCancelled       OutboxEventType = "order_cancelled"
	EventOrderDelivered       OutboxEventType = "order_delivered"
	EventPaymentCaptured      OutboxEventType = "payment_captured"
	EventPaymentFailed        OutboxEventType = "payment_failed"
	EventPaymentRefunded      OutboxEventType = "payment_refunded"
	EventRefundRequested      OutboxEventType = "refund_requested"
	EventRefundDecided        OutboxEventType = "refund_decided"
	EventWebhookHandlerFailed OutboxEventType = "webhook_handler_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderPlaced,
	EventOrderConfirmed,
	EventOrderStateChanged,
	EventOrderCancelled,
	EventOrderDelivered,
	EventPaymentCaptured,
	EventPaymentFailed,
	EventPaymentRefunded,
	EventRefundRequested,
	EventRefundDecided,
	EventWebhookHandlerFailed,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
