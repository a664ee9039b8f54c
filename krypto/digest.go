package krypto

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// DigestSize is the length of the integrity tag appended to sealed blobs.
const DigestSize = sha512.Size

// Digest512 returns SHA-512(data).
func Digest512(data []byte) []byte {
	sum := sha512.Sum512(data)
	return sum[:]
}

// VerifyDigest512 compares SHA-512(data) with want in constant time.
func VerifyDigest512(data, want []byte) bool {
	if len(want) != DigestSize {
		return false
	}
	return subtle.ConstantTimeCompare(Digest512(data), want) == 1
}

// Fingerprint returns a short, non-reversible label for logs and the journal.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:6])
}
