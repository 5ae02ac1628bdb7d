package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign computes the callback signature the provider attaches to payment
// confirmations: HMAC-SHA256 over "intentID|paymentRef" with the key secret.
func Sign(secret, intentID, paymentRef string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(intentID + "|" + paymentRef))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether the provided signature matches the expected
// one. Comparison is constant time.
func VerifySignature(secret, intentID, paymentRef, provided string) bool {
	expected := Sign(secret, intentID, paymentRef)
	return hmac.Equal([]byte(expected), []byte(provided))
}
