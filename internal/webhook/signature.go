package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Verification errors
var (
	ErrMissingSignature = errors.New("signature header is missing")
	ErrBadSignature     = errors.New("signature mismatch")
)

// Verifier authenticates inbound webhook payloads with HMAC-SHA256.
// An empty secret disables verification; the provider dashboard may not
// have a secret configured yet, so deliveries are accepted as-is.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a verifier for the given shared secret
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Enabled reports whether signature verification is active
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks the signature header against the HMAC-SHA256 digest of the
// raw body. The header carries "sha256=<hex>"; bare hex is also accepted.
func (v *Verifier) Verify(body []byte, signatureHeader string) error {
	if !v.Enabled() {
		return nil
	}

	if signatureHeader == "" {
		return ErrMissingSignature
	}

	provided := strings.TrimPrefix(signatureHeader, "sha256=")

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(provided), []byte(expected)) {
		return ErrBadSignature
	}
	return nil
}

// Sign computes the signature header value for a body. Used by tests and by
// outbound delivery tooling.
func (v *Verifier) Sign(body []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
