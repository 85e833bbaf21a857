package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/crypto/bcrypt"
)

// APIKeyHeader carries the client API key on every /api request.
const APIKeyHeader = "X-API-Key"

// ErrInvalidKeyHash is returned when the configured hash is not a bcrypt hash.
var ErrInvalidKeyHash = errors.New("api key hash is not a bcrypt hash")

// GenerateAPIKey returns a new random key (32 bytes, hex encoded).
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashAPIKey hashes a plain text key using bcrypt
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// APIKeyVerifier checks presented keys against one bcrypt hash. The digest
// of the last accepted key is remembered so repeat requests skip bcrypt.
type APIKeyVerifier struct {
	hash     []byte
	accepted atomic.Pointer[[sha256.Size]byte]
}

// NewAPIKeyVerifier creates a verifier for the given bcrypt hash.
func NewAPIKeyVerifier(hash string) (*APIKeyVerifier, error) {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyHash, err)
	}
	return &APIKeyVerifier{hash: []byte(hash)}, nil
}

// Verify reports whether key matches the configured hash.
func (v *APIKeyVerifier) Verify(key string) bool {
	if key == "" {
		return false
	}

	digest := sha256.Sum256([]byte(key))
	if known := v.accepted.Load(); known != nil && subtle.ConstantTimeCompare(known[:], digest[:]) == 1 {
		return true
	}

	if bcrypt.CompareHashAndPassword(v.hash, []byte(key)) != nil {
		return false
	}
	v.accepted.Store(&digest)
	return true
}
