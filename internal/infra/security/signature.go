// File: internal/infra/security/signature.go
package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier authenticates gateway payloads with HMAC-SHA256.
type Verifier struct{}

func NewVerifier() *Verifier { return &Verifier{} }

// Sign returns the lowercase hex HMAC-SHA256 of payload under secret.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether provided is the signature of rawPayload under secret.
// The comparison is constant-time over the hex text; an empty secret or
// signature never verifies.
func (Verifier) Verify(rawPayload []byte, provided, secret string) bool {
	if secret == "" || provided == "" {
		return false
	}
	expected := Sign(rawPayload, secret)
	return hmac.Equal([]byte(expected), []byte(provided))
}

// VerifyPaymentSignature checks a checkout confirmation, signed over "orderID|paymentID".
func (v Verifier) VerifyPaymentSignature(orderID, paymentID, provided, secret string) bool {
	if orderID == "" || paymentID == "" {
		return false
	}
	return v.Verify([]byte(orderID+"|"+paymentID), provided, secret)
}
