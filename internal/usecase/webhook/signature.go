package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// ErrInvalidSignature rejects a webhook whose signature does not match the
// provider's shared secret. No state may change after this error.
var ErrInvalidSignature = errors.New("webhook signature verification failed")

// Sign computes the hex HMAC-SHA256 of the payload under the shared secret.
// Providers send this value (optionally prefixed "sha256=") alongside the
// payload.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the payload against the provider-supplied signature.
func VerifySignature(secret string, payload []byte, signature string) error {
	signature = strings.TrimPrefix(signature, "sha256=")
	expected := Sign(secret, payload)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}
