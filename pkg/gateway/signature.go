package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SignPayment computes the hex HMAC-SHA256 signature the gateway attaches to
// a captured payment: the message is "gatewayOrderID|gatewayPaymentID" and
// the key is the vendor's key secret.
func SignPayment(keySecret, gatewayOrderID, gatewayPaymentID string) string {
	mac := hmac.New(sha256.New, []byte(keySecret))
	mac.Write([]byte(gatewayOrderID + "|" + gatewayPaymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks a payment signature in constant time.
func VerifyPaymentSignature(keySecret, gatewayOrderID, gatewayPaymentID, signature string) bool {
	expected := SignPayment(keySecret, gatewayOrderID, gatewayPaymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the hex HMAC-SHA256 of a raw webhook body
// against the platform webhook secret in constant time.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
