// ABOUTME: Tests for webhook signature verification.
// ABOUTME: Validates tamper-evidence, missing/malformed headers, and wrong secrets.

package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_ValidSignature(t *testing.T) {
	secret := []byte("app-secret")
	body := []byte(`{"entry":[{"id":"1"}]}`)

	v := NewSignatureVerifier(secret)
	require.NoError(t, v.Verify(body, Sign(body, secret)))
}

func TestVerify_MissingHeader(t *testing.T) {
	v := NewSignatureVerifier([]byte("app-secret"))

	err := v.Verify([]byte("{}"), "")
	assert.ErrorIs(t, err, ErrSignatureInvalid)
}

func TestVerify_MissingPrefix(t *testing.T) {
	secret := []byte("app-secret")
	body := []byte("{}")
	v := NewSignatureVerifier(secret)

	// Valid digest but without the sha256= prefix
	header := Sign(body, secret)[len("sha256="):]
	assert.ErrorIs(t, v.Verify(body, header), ErrSignatureInvalid)
}

func TestVerify_NonHexDigest(t *testing.T) {
	v := NewSignatureVerifier([]byte("app-secret"))
	assert.ErrorIs(t, v.Verify([]byte("{}"), "sha256=not-hex!"), ErrSignatureInvalid)
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`{"entry":[]}`)
	header := Sign(body, []byte("secret-a"))

	v := NewSignatureVerifier([]byte("secret-b"))
	assert.ErrorIs(t, v.Verify(body, header), ErrSignatureInvalid)
}

func TestVerify_TamperedBody(t *testing.T) {
	secret := []byte("app-secret")
	body := []byte(`{"amount":100}`)
	header := Sign(body, secret)

	v := NewSignatureVerifier(secret)

	// Every single-byte modification of the body must be rejected
	for i := range body {
		tampered := make([]byte, len(body))
		copy(tampered, body)
		tampered[i] ^= 0x01

		assert.ErrorIs(t, v.Verify(tampered, header), ErrSignatureInvalid,
			"byte %d flip should invalidate signature", i)
	}
}

func TestVerify_EmptyBody(t *testing.T) {
	secret := []byte("app-secret")
	v := NewSignatureVerifier(secret)

	// Empty body with a matching digest is still a valid signature
	require.NoError(t, v.Verify(nil, Sign(nil, secret)))
}
