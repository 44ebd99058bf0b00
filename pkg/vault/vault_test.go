package vault

import (
	"encoding/base64"
	"testing"

	apperrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestVaultRoundTrip(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ct, err := v.Encrypt("rzp_test_key_secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ct == "rzp_test_key_secret" {
		t.Fatal("ciphertext equals plaintext")
	}

	pt, err := v.Decrypt(ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if pt != "rzp_test_key_secret" {
		t.Fatalf("round trip mismatch: got %q", pt)
	}
}

func TestVaultNonceVariesPerEncrypt(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := v.Encrypt("same")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := v.Encrypt("same")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestVaultRejectsTamperedCiphertext(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := v.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := v.Decrypt(tampered); !apperrors.IsCode(err, apperrors.CodeCredentialsInvalid) {
		t.Fatalf("expected credentials-invalid error, got %v", err)
	}
}

func TestVaultRejectsWrongKey(t *testing.T) {
	v1, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	other := testKey(t)
	other[0] ^= 0xff
	v2, err := New(other)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ct, err := v1.Encrypt("secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := v2.Decrypt(ct); !apperrors.IsCode(err, apperrors.CodeCredentialsInvalid) {
		t.Fatalf("expected credentials-invalid error, got %v", err)
	}
}

func TestVaultRejectsGarbage(t *testing.T) {
	v, err := New(testKey(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, ct := range []string{"", "!!!not-base64!!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		if _, err := v.Decrypt(ct); !apperrors.IsCode(err, apperrors.CodeCredentialsInvalid) {
			t.Fatalf("Decrypt(%q): expected credentials-invalid error, got %v", ct, err)
		}
	}
}

func TestVaultRequires32ByteKey(t *testing.T) {
	if _, err := New([]byte("too-short")); err == nil {
		t.Fatal("expected error for short key")
	}
	if _, err := New(nil); err == nil {
		t.Fatal("expected error for nil key")
	}
}
