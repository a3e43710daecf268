package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"

	"bargenix-billing-core/internal/domain"
)

// WebhookVerifier validates inbound webhook authenticity. Verification is
// computed over the exact raw body bytes; callers must not parse or
// re-serialize the payload before verifying.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for the shared app secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Verify checks the X-Shopify-Hmac-Sha256 header against an HMAC-SHA256 of
// the raw body. Fails closed: a missing or mismatched signature returns
// ErrVerificationFailed and the caller must reject with 401.
func (v *WebhookVerifier) Verify(payload []byte, hmacHeader string) error {
	if hmacHeader == "" {
		return domain.ErrVerificationFailed
	}
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(hmacHeader)) {
		return domain.ErrVerificationFailed
	}
	return nil
}

// Sign computes the signature Shopify would send for a payload. Used by
// tests and local tooling.
func (v *WebhookVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
