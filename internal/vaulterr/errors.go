// Package vaulterr defines the error kinds shared by the key manager, the
// envelope and the vault store. Callers match them with errors.Is.
package vaulterr

import (
	"errors"
	"fmt"
)

var (
	// ErrStorage wraps filesystem failures.
	ErrStorage = errors.New("storage error")
	// ErrKeyFormat marks persisted key material that cannot be parsed.
	ErrKeyFormat = errors.New("key format error")
	// ErrPayloadTooLarge means the symmetric token exceeds the RSA-OAEP capacity.
	ErrPayloadTooLarge = errors.New("payload too large for asymmetric layer")
	// ErrFormat marks malformed base64, compressed or serialized content.
	ErrFormat = errors.New("format error")
	// ErrIntegrity means the sealed blob digest did not match.
	ErrIntegrity = errors.New("data corrupted or tampered")
	// ErrAsymmetricDecrypt means RSA-OAEP decryption failed.
	ErrAsymmetricDecrypt = errors.New("asymmetric decryption failed")
	// ErrAuthentication means the symmetric token did not verify.
	ErrAuthentication = errors.New("symmetric authentication failed")
	// ErrIndex marks an out-of-range record index.
	ErrIndex = errors.New("record index out of range")
	// ErrInvalidKey marks user-supplied key text rejected by the key policy.
	ErrInvalidKey = errors.New("invalid key text")
)

// Storage tags a filesystem failure with ErrStorage while keeping the cause.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Index returns an ErrIndex for i against a collection of n records.
func Index(i, n int) error {
	return fmt.Errorf("%w: index %d, %d records", ErrIndex, i, n)
}

// Unreadable reports whether err means a sealed blob could not be opened
// with the current key material. Load treats these as recoverable.
func Unreadable(err error) bool {
	return errors.Is(err, ErrIntegrity) ||
		errors.Is(err, ErrAuthentication) ||
		errors.Is(err, ErrAsymmetricDecrypt) ||
		errors.Is(err, ErrFormat)
}
