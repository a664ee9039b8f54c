// Package envelope turns plaintext into the sealed blob persisted on disk and back.
//
// Seal layers, innermost first:
//
//	symToken       = AES-256-GCM token under the derived key
//	asymCiphertext = RSA-OAEP(SHA-512) of symToken
//	blob           = base64(asymCiphertext || SHA-512(asymCiphertext))
//
// The whole token goes through RSA, so the plaintext size is bounded by the
// OAEP capacity of the public key.
package envelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
)

// DigestSize is the length of the raw integrity tag at the end of a blob.
const DigestSize = krypto.DigestSize

var blobEncoding = base64.StdEncoding

// Capacity returns the largest symmetric token the material can seal.
func Capacity(m *keys.Material) int {
	if m == nil {
		return 0
	}
	return krypto.OAEPCapacity(m.Public)
}

// MaxPlaintext returns the largest plaintext Seal accepts for m.
func MaxPlaintext(m *keys.Material) int {
	capacity := Capacity(m)
	n := 0
	for krypto.TokenLen(n+1) <= capacity {
		n++
	}
	if krypto.TokenLen(n) > capacity {
		return -1
	}
	return n
}

// Seal encrypts plaintext into a base64 sealed blob.
func Seal(plaintext []byte, m *keys.Material) (string, error) {
	if err := check(m); err != nil {
		return "", err
	}

	var symToken []byte
	err := m.Symmetric.Use(func(key []byte) error {
		var err error
		symToken, err = krypto.SealToken(key, plaintext)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("symmetric seal: %w", err)
	}

	if capacity := krypto.OAEPCapacity(m.Public); len(symToken) > capacity {
		return "", fmt.Errorf("%w: token is %d bytes, capacity %d", vaulterr.ErrPayloadTooLarge, len(symToken), capacity)
	}

	asymCiphertext, err := krypto.EncryptOAEP(m.Public, symToken)
	if err != nil {
		return "", fmt.Errorf("asymmetric seal: %w", err)
	}

	sealed := make([]byte, 0, len(asymCiphertext)+DigestSize)
	sealed = append(sealed, asymCiphertext...)
	sealed = append(sealed, krypto.Digest512(asymCiphertext)...)
	return blobEncoding.EncodeToString(sealed), nil
}

// Open verifies and decrypts a sealed blob. The digest is checked before the
// private key is touched.
func Open(blob string, m *keys.Material) ([]byte, error) {
	if err := check(m); err != nil {
		return nil, err
	}

	asymCiphertext, err := verify(blob)
	if err != nil {
		return nil, err
	}

	symToken, err := krypto.DecryptOAEP(m.Private, asymCiphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", vaulterr.ErrAsymmetricDecrypt, err)
	}

	var plaintext []byte
	err = m.Symmetric.Use(func(key []byte) error {
		var err error
		plaintext, err = krypto.OpenToken(key, symToken)
		return err
	})
	if err != nil {
		if errors.Is(err, krypto.ErrTokenAuthentication) {
			return nil, fmt.Errorf("%w: %v", vaulterr.ErrAuthentication, err)
		}
		return nil, fmt.Errorf("symmetric open: %w", err)
	}
	return plaintext, nil
}

func verify(blob string) ([]byte, error) {
	raw, err := blobEncoding.DecodeString(strings.TrimSpace(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: decode blob: %v", vaulterr.ErrFormat, err)
	}
	if len(raw) < DigestSize {
		return nil, fmt.Errorf("%w: blob is %d bytes, shorter than its digest", vaulterr.ErrFormat, len(raw))
	}

	asymCiphertext := raw[:len(raw)-DigestSize]
	storedDigest := raw[len(raw)-DigestSize:]
	if !krypto.VerifyDigest512(asymCiphertext, storedDigest) {
		return nil, vaulterr.ErrIntegrity
	}
	return asymCiphertext, nil
}

func check(m *keys.Material) error {
	if m == nil || m.Symmetric == nil || m.Public == nil || m.Private == nil {
		return errors.New("key material is incomplete")
	}
	return nil
}

// Report describes a blob without decrypting it.
type Report struct {
	EncodedSize    int
	CiphertextSize int
	DigestValid    bool
}

// Inspect decodes blob and checks its digest. It needs no key material.
func Inspect(blob string) (Report, error) {
	rep := Report{EncodedSize: len(strings.TrimSpace(blob))}
	ct, err := verify(blob)
	switch {
	case err == nil:
		rep.CiphertextSize = len(ct)
		rep.DigestValid = true
	case errors.Is(err, vaulterr.ErrIntegrity):
		raw, _ := blobEncoding.DecodeString(strings.TrimSpace(blob))
		rep.CiphertextSize = len(raw) - DigestSize
	default:
		return rep, err
	}
	return rep, nil
}
