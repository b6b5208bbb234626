package credential

import (
	"bytes"
	"errors"
	"testing"
)

func TestVaultRoundTrip(t *testing.T) {
	v, err := NewVault("correct horse battery staple")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	blob, err := v.Encrypt("app-password-123")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Contains(blob, []byte("app-password-123")) {
		t.Fatal("plaintext visible in encrypted blob")
	}

	got, err := v.Decrypt(blob)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "app-password-123" {
		t.Errorf("Decrypt = %q, want app-password-123", got)
	}
}

func TestVaultEncryptIsSalted(t *testing.T) {
	v, err := NewVault("secret")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	a, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := v.Encrypt("same plaintext")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Error("two encryptions of the same plaintext produced identical blobs")
	}
}

func TestVaultWrongMasterSecret(t *testing.T) {
	v1, err := NewVault("secret-one")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	blob, err := v1.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	v2, err := NewVault("secret-two")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}
	if _, err := v2.Decrypt(blob); err == nil {
		t.Error("decryption with the wrong master secret succeeded")
	}
}

func TestVaultRejectsEmptySecret(t *testing.T) {
	if _, err := NewVault(""); !errors.Is(err, ErrEmptyMasterSecret) {
		t.Errorf("NewVault(\"\") = %v, want ErrEmptyMasterSecret", err)
	}
}

func TestVaultRejectsTruncatedBlob(t *testing.T) {
	v, err := NewVault("secret")
	if err != nil {
		t.Fatalf("NewVault: %v", err)
	}

	blob, err := v.Encrypt("payload")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	for _, n := range []int{0, saltSize - 1, saltSize + 3} {
		if _, err := v.Decrypt(blob[:n]); err == nil {
			t.Errorf("Decrypt of %d-byte blob succeeded", n)
		}
	}
}
