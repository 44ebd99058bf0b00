package enums

// GatewayEvent enumerates the webhook event types the reconciliation engine
// handles. Unknown types are acknowledged and ignored so the gateway does
// not retry-storm events we do not care about.
type GatewayEvent string

const (
	GatewayEventPaymentCaptured GatewayEvent = "payment.captured"
	GatewayEventPaymentFailed   GatewayEvent = "payment.failed"
	GatewayEventRefundCreated   GatewayEvent = "refund.created"
	GatewayEventRefundProcessed GatewayEvent = "refund.processed"
)

var validGatewayEvents = []GatewayEvent{
	GatewayEventPaymentCaptured,
	GatewayEventPaymentFailed,
	GatewayEventRefundCreated,
	GatewayEventRefundProcessed,
}

// String implements fmt.Stringer.
func (g GatewayEvent) String() string {
	return string(g)
}

// ParseGatewayEvent maps a raw event type string onto the handled set.
// The boolean is false for event types we deliberately no-op.
func ParseGatewayEvent(value string) (GatewayEvent, bool) {
	for _, candidate := range validGatewayEvents {
		if string(candidate) == value {
			return candidate, true
		}
	}
	return "", false
}
