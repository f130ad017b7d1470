package signature

import "crypto/hmac"

// Verify checks whether sig matches the expected HMAC-SHA256 signature for
// the payload and secret. Comparison is constant-time.
//
// Tenants use the same logic to authenticate notifications: recompute the
// digest over the raw request body with their webhook secret and compare it
// against the X-Webhook-Signature header.
func Verify(payload []byte, sig, secret string) bool {
	expected := Sign(payload, secret)
	return hmac.Equal([]byte(expected), []byte(sig))
}
