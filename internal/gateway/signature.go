package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Two distinct signing inputs exist: the checkout callback signs the
// order-id/payment-id pair with the key secret, while webhooks sign the full
// raw request body with the webhook secret. Same primitive, different
// secrets; callers must not mix them up.

// VerifyCheckoutSignature checks the signature the browser returns after a
// hosted checkout completes.
func VerifyCheckoutSignature(orderID, paymentID, signature, secret string) bool {
	return verifyHex([]byte(orderID+"|"+paymentID), signature, secret)
}

// VerifyWebhookSignature checks a webhook signature. body must be the exact
// bytes received over the wire: re-encoding the JSON can change byte-for-byte
// content and silently break verification.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	return verifyHex(body, signature, secret)
}

func verifyHex(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	// hmac.Equal is constant time.
	return hmac.Equal([]byte(expected), []byte(signature))
}
