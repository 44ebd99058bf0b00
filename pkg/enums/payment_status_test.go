package enums

import "testing"

func TestPaymentStatusOrdinalGuard(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentStatusPending, PaymentStatusSuccess, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusSuccess, PaymentStatusRefunded, true},
		{PaymentStatusSuccess, PaymentStatusFailed, false},
		{PaymentStatusFailed, PaymentStatusSuccess, false},
		{PaymentStatusFailed, PaymentStatusRefunded, false},
		{PaymentStatusRefunded, PaymentStatusSuccess, false},
		{PaymentStatusRefunded, PaymentStatusPending, false},
		{PaymentStatusSuccess, PaymentStatusSuccess, false},
		{PaymentStatusPending, PaymentStatusRefunded, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanAdvanceTo(tc.to); got != tc.want {
			t.Fatalf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	status, err := ParseOrderStatus("picked_packed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if status != OrderStatusPickedPacked {
		t.Fatalf("unexpected status %s", status)
	}
	if _, err := ParseOrderStatus("warehouse"); err == nil {
		t.Fatalf("expected error for unknown status")
	}
}

func TestParseGatewayEvent(t *testing.T) {
	if _, ok := ParseGatewayEvent("payment.captured"); !ok {
		t.Fatalf("expected handled event")
	}
	if _, ok := ParseGatewayEvent("payment.authorized"); ok {
		t.Fatalf("expected unhandled event to report false")
	}
}
