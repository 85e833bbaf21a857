package auth

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func newVerifier(t *testing.T, key string) *APIKeyVerifier {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	v, err := NewAPIKeyVerifier(string(hash))
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier() failed: %v", err)
	}
	return v
}

func TestGenerateAPIKey(t *testing.T) {
	k1, err := GenerateAPIKey()
	if err != nil {
		t.Fatalf("GenerateAPIKey() failed: %v", err)
	}
	k2, _ := GenerateAPIKey()

	if len(k1) != 64 {
		t.Errorf("GenerateAPIKey() length = %d, want 64", len(k1))
	}
	if k1 == k2 {
		t.Error("GenerateAPIKey() returned the same key twice")
	}
}

func TestHashAPIKey(t *testing.T) {
	key := "my-api-key"
	hash, err := HashAPIKey(key)
	if err != nil {
		t.Fatalf("HashAPIKey() failed: %v", err)
	}
	if hash == key {
		t.Fatal("HashAPIKey() returned plaintext key")
	}

	v, err := NewAPIKeyVerifier(hash)
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier() failed: %v", err)
	}
	if !v.Verify(key) {
		t.Error("Verify() rejected the hashed key")
	}
}

func TestNewAPIKeyVerifier_InvalidHash(t *testing.T) {
	_, err := NewAPIKeyVerifier("not-a-hash")
	if !errors.Is(err, ErrInvalidKeyHash) {
		t.Errorf("NewAPIKeyVerifier() error = %v, want ErrInvalidKeyHash", err)
	}
}

func TestVerify(t *testing.T) {
	v := newVerifier(t, "correct-key")

	tests := []struct {
		name string
		key  string
		want bool
	}{
		{"correct key", "correct-key", true},
		{"correct key again (cached)", "correct-key", true},
		{"wrong key", "wrong-key", false},
		{"empty key", "", false},
		{"prefix of key", "correct", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := v.Verify(tt.key); got != tt.want {
				t.Errorf("Verify(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestVerify_CacheDoesNotLeakAcrossKeys(t *testing.T) {
	v := newVerifier(t, "correct-key")

	if !v.Verify("correct-key") {
		t.Fatal("Verify() rejected correct key")
	}
	if v.Verify("another-key") {
		t.Error("Verify() accepted a different key after caching")
	}
}
