package krypto

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha512"
	"errors"
	"fmt"
)

// DefaultRSABits is the modulus size of every generated key pair.
const DefaultRSABits = 4096

// oaepOpts selects SHA-512 for both the OAEP hash and MGF1.
var oaepOpts = &rsa.OAEPOptions{Hash: crypto.SHA512, MGFHash: crypto.SHA512}

// OAEPCapacity returns the largest message EncryptOAEP accepts for pub.
func OAEPCapacity(pub *rsa.PublicKey) int {
	if pub == nil {
		return 0
	}
	c := pub.Size() - 2*sha512.Size - 2
	if c < 0 {
		return 0
	}
	return c
}

// GenerateRSAKey creates a new RSA key with public exponent 65537.
func GenerateRSAKey(bits int) (*rsa.PrivateKey, error) {
	if bits < 2048 {
		return nil, fmt.Errorf("rsa key size %d is below 2048 bits", bits)
	}
	key, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generate rsa key: %w", err)
	}
	return key, nil
}

// EncryptOAEP encrypts msg with RSA-OAEP using SHA-512 and MGF1-SHA-512.
func EncryptOAEP(pub *rsa.PublicKey, msg []byte) ([]byte, error) {
	if pub == nil {
		return nil, errors.New("public key is required")
	}
	ct, err := rsa.EncryptOAEP(sha512.New(), rand.Reader, pub, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("oaep encrypt: %w", err)
	}
	return ct, nil
}

// DecryptOAEP decrypts ct through any crypto.Decrypter backed by an RSA key.
func DecryptOAEP(priv crypto.Decrypter, ct []byte) ([]byte, error) {
	if priv == nil {
		return nil, errors.New("private key is required")
	}
	msg, err := priv.Decrypt(rand.Reader, ct, oaepOpts)
	if err != nil {
		return nil, fmt.Errorf("oaep decrypt: %w", err)
	}
	return msg, nil
}
