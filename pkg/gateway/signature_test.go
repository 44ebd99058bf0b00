package gateway

import "testing"

func TestVerifyPaymentSignature(t *testing.T) {
	secret := "vendor_key_secret"
	sig := SignPayment(secret, "order_G1", "pay_H2")

	if !VerifyPaymentSignature(secret, "order_G1", "pay_H2", sig) {
		t.Fatal("valid signature rejected")
	}
	if VerifyPaymentSignature(secret, "order_G1", "pay_OTHER", sig) {
		t.Fatal("signature accepted for a different payment id")
	}
	if VerifyPaymentSignature("wrong_secret", "order_G1", "pay_H2", sig) {
		t.Fatal("signature accepted under a different key")
	}
	if VerifyPaymentSignature(secret, "order_G1", "pay_H2", "") {
		t.Fatal("empty signature accepted")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_platform"
	body := []byte(`{"event":"payment.captured"}`)
	sig := signWebhookForTest(secret, body)

	if !VerifyWebhookSignature(secret, body, sig) {
		t.Fatal("valid webhook signature rejected")
	}
	if VerifyWebhookSignature(secret, []byte(`{"event":"tampered"}`), sig) {
		t.Fatal("signature accepted for altered body")
	}
	if VerifyWebhookSignature("other_secret", body, sig) {
		t.Fatal("signature accepted under a different secret")
	}
}
