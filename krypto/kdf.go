package krypto

import (
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SecretLengthBytes is the size of the raw symmetric secret kept on disk.
	SecretLengthBytes = 32
	// SaltLengthBytes is the size of the salt stored next to the secret.
	SaltLengthBytes = 16
	// DerivedKeyLength is the size of the key fed to the AEAD layer.
	DerivedKeyLength = 32
)

// PBKDF2Params captures tunable parameters for PBKDF2-HMAC-SHA256.
type PBKDF2Params struct {
	Iterations int
	KeyLen     int
}

// DefaultPBKDF2Params returns the parameters used for every on-disk secret.
func DefaultPBKDF2Params() PBKDF2Params {
	return PBKDF2Params{
		Iterations: 100_000,
		KeyLen:     DerivedKeyLength,
	}
}

// DeriveKeyPBKDF2 stretches secret with salt using PBKDF2-HMAC-SHA256.
func DeriveKeyPBKDF2(secret, salt []byte, p PBKDF2Params) ([]byte, error) {
	if len(secret) == 0 {
		return nil, errors.New("secret is required")
	}
	if len(salt) == 0 {
		return nil, errors.New("salt is required")
	}
	if p.Iterations <= 0 {
		return nil, errors.New("iteration count must be positive")
	}
	if p.KeyLen <= 0 {
		return nil, errors.New("key length must be positive")
	}

	key := pbkdf2.Key(secret, salt, p.Iterations, p.KeyLen, sha256.New)
	if len(key) != p.KeyLen {
		return nil, fmt.Errorf("derived key has unexpected length %d", len(key))
	}
	return key, nil
}

// NewRandomBytes returns n bytes from the system CSPRNG.
func NewRandomBytes(n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("random length must be positive")
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("read random: %w", err)
	}
	return buf, nil
}
