package webhook

import (
	"errors"
	"testing"

	"pgregory.net/rapid"
)

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier("test-webhook-secret")
	body := []byte(`{"message":{"type":"call-end"}}`)

	if err := v.Verify(body, v.Sign(body)); err != nil {
		t.Errorf("Expected valid signature to verify, got %v", err)
	}
}

func TestVerifier_BareHexAccepted(t *testing.T) {
	v := NewVerifier("test-webhook-secret")
	body := []byte(`{"message":{"type":"call-end"}}`)

	bare := v.Sign(body)[len("sha256="):]
	if err := v.Verify(body, bare); err != nil {
		t.Errorf("Expected bare hex signature to verify, got %v", err)
	}
}

func TestVerifier_MissingHeader(t *testing.T) {
	v := NewVerifier("test-webhook-secret")

	err := v.Verify([]byte(`{}`), "")
	if !errors.Is(err, ErrMissingSignature) {
		t.Errorf("Expected ErrMissingSignature, got %v", err)
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	signer := NewVerifier("secret-a")
	v := NewVerifier("secret-b")
	body := []byte(`{"message":{"type":"call-end"}}`)

	err := v.Verify(body, signer.Sign(body))
	if !errors.Is(err, ErrBadSignature) {
		t.Errorf("Expected ErrBadSignature, got %v", err)
	}
}

func TestVerifier_DisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("")

	if v.Enabled() {
		t.Error("Expected verifier without secret to be disabled")
	}
	if err := v.Verify([]byte(`{}`), "sha256=deadbeef"); err != nil {
		t.Errorf("Expected disabled verifier to accept anything, got %v", err)
	}
	if err := v.Verify([]byte(`{}`), ""); err != nil {
		t.Errorf("Expected disabled verifier to accept missing header, got %v", err)
	}
}

// TestProperty_Verifier_CorruptedSignatureRejected checks that flipping any
// character of a valid signature makes verification fail.
func TestProperty_Verifier_CorruptedSignatureRejected(t *testing.T) {
	v := NewVerifier("test-webhook-secret")

	rapid.Check(t, func(rt *rapid.T) {
		body := []byte(rapid.StringN(1, 512, 512).Draw(rt, "body"))
		sig := v.Sign(body)

		// Corrupt one hex character past the "sha256=" prefix.
		idx := rapid.IntRange(len("sha256="), len(sig)-1).Draw(rt, "idx")
		corrupted := []byte(sig)
		if corrupted[idx] == 'a' {
			corrupted[idx] = 'b'
		} else {
			corrupted[idx] = 'a'
		}

		if err := v.Verify(body, string(corrupted)); err == nil {
			t.Fatalf("PROPERTY VIOLATION: corrupted signature %q verified for body %q", corrupted, body)
		}
	})
}

// TestProperty_Verifier_BodyTamperRejected checks that a signature never
// verifies against a different body.
func TestProperty_Verifier_BodyTamperRejected(t *testing.T) {
	v := NewVerifier("test-webhook-secret")

	rapid.Check(t, func(rt *rapid.T) {
		body := []byte(rapid.StringN(0, 256, 256).Draw(rt, "body"))
		tampered := append(append([]byte{}, body...), byte(rapid.IntRange(0, 255).Draw(rt, "extra")))

		if err := v.Verify(tampered, v.Sign(body)); err == nil {
			t.Fatalf("PROPERTY VIOLATION: signature for %q verified against %q", body, tampered)
		}
	})
}
