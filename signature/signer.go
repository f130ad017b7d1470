// Package signature provides HMAC-SHA256 webhook signing and verification.
//
// The signature covers the exact bytes of the request body. Payloads are
// serialized canonically (stable key ordering, no extraneous whitespace)
// before signing and before transmission, so a receiver can recompute an
// identical digest from the raw body it received.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Canonical serializes v deterministically: encoding/json emits object keys
// in sorted order at every nesting level and adds no whitespace, which is
// exactly the canonical form tenants are documented to verify against.
func Canonical(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("signature: canonicalize: %w", err)
	}
	return raw, nil
}

// Sign generates the HMAC-SHA256 signature for the given payload bytes,
// encoded as lowercase hex.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignValue canonicalizes v and signs the resulting bytes.
func SignValue(v any, secret string) (string, error) {
	raw, err := Canonical(v)
	if err != nil {
		return "", err
	}
	return Sign(raw, secret), nil
}
