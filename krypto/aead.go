package krypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16

	// tokenVersion leads every symmetric token so a foreign blob is rejected early.
	tokenVersion byte = 0x81

	// TokenOverhead is the number of raw bytes a token adds to its plaintext.
	TokenOverhead = 1 + gcmNonceSize + gcmTagSize
)

var (
	// ErrTokenAuthentication means the token did not verify under the supplied key.
	ErrTokenAuthentication = errors.New("token authentication failed")

	tokenEncoding = base64.RawURLEncoding
)

// EncryptAESGCM encrypts plaintext using AES-256-GCM, returning the nonce and ciphertext.
func EncryptAESGCM(key, plaintext, aad []byte) (nonce, ciphertext []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, aad)
	return nonce, ciphertext, nil
}

// DecryptAESGCM decrypts the ciphertext using AES-256-GCM.
func DecryptAESGCM(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(nonce) != gcmNonceSize {
		return nil, errors.New("invalid nonce size")
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != 32 {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// SealToken produces a self-describing token: base64url(version | nonce | ciphertext | tag).
// The version byte is authenticated as additional data.
func SealToken(key, plaintext []byte) ([]byte, error) {
	aad := []byte{tokenVersion}
	nonce, ciphertext, err := EncryptAESGCM(key, plaintext, aad)
	if err != nil {
		return nil, err
	}

	raw := make([]byte, 0, 1+len(nonce)+len(ciphertext))
	raw = append(raw, tokenVersion)
	raw = append(raw, nonce...)
	raw = append(raw, ciphertext...)

	out := make([]byte, tokenEncoding.EncodedLen(len(raw)))
	tokenEncoding.Encode(out, raw)
	return out, nil
}

// OpenToken reverses SealToken. Every failure past key validation, including a
// malformed token, is reported as ErrTokenAuthentication.
func OpenToken(key, token []byte) ([]byte, error) {
	if len(key) != 32 {
		return nil, errors.New("aes-gcm requires a 32-byte key")
	}

	raw := make([]byte, tokenEncoding.DecodedLen(len(token)))
	n, err := tokenEncoding.Decode(raw, token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode token: %v", ErrTokenAuthentication, err)
	}
	raw = raw[:n]

	if len(raw) < TokenOverhead {
		return nil, fmt.Errorf("%w: token too short", ErrTokenAuthentication)
	}
	if raw[0] != tokenVersion {
		return nil, fmt.Errorf("%w: unknown token version %#x", ErrTokenAuthentication, raw[0])
	}

	nonce := raw[1 : 1+gcmNonceSize]
	ciphertext := raw[1+gcmNonceSize:]

	plaintext, err := DecryptAESGCM(key, nonce, ciphertext, raw[:1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenAuthentication, err)
	}
	return plaintext, nil
}

// TokenLen reports the encoded token length for a plaintext of n bytes.
func TokenLen(n int) int {
	return tokenEncoding.EncodedLen(n + TokenOverhead)
}
