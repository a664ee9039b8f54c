package keys

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/fsutil"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

const (
	pemPrivateKey    = "PRIVATE KEY"
	pemRSAPrivateKey = "RSA PRIVATE KEY"
	pemPublicKey     = "PUBLIC KEY"
	pemRSAPublicKey  = "RSA PUBLIC KEY"
)

func encodePrivateKeyPEM(key *rsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPrivateKey, Bytes: der}), nil
}

func encodePublicKeyPEM(key *rsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(key)
	if err != nil {
		return nil, fmt.Errorf("marshal public key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: pemPublicKey, Bytes: der}), nil
}

func parsePrivateKeyPEM(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: private key file holds no PEM block", vaulterr.ErrKeyFormat)
	}

	var (
		parsed any
		err    error
	)
	switch block.Type {
	case pemPrivateKey:
		parsed, err = x509.ParsePKCS8PrivateKey(block.Bytes)
	case pemRSAPrivateKey:
		parsed, err = x509.ParsePKCS1PrivateKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", vaulterr.ErrKeyFormat, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", vaulterr.ErrKeyFormat, err)
	}

	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is %T, want RSA", vaulterr.ErrKeyFormat, parsed)
	}
	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: validate private key: %v", vaulterr.ErrKeyFormat, err)
	}
	return key, nil
}

func parsePublicKeyPEM(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("%w: public key file holds no PEM block", vaulterr.ErrKeyFormat)
	}

	var (
		parsed any
		err    error
	)
	switch block.Type {
	case pemPublicKey:
		parsed, err = x509.ParsePKIXPublicKey(block.Bytes)
	case pemRSAPublicKey:
		parsed, err = x509.ParsePKCS1PublicKey(block.Bytes)
	default:
		return nil, fmt.Errorf("%w: unexpected PEM type %q", vaulterr.ErrKeyFormat, block.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", vaulterr.ErrKeyFormat, err)
	}

	key, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is %T, want RSA", vaulterr.ErrKeyFormat, parsed)
	}
	return key, nil
}

// SaveKeyPair writes pair to the private and public key files, private first.
// Existing files are replaced.
func SaveKeyPair(p Paths, pair *KeyPair) error {
	if pair == nil || pair.Private == nil {
		return fmt.Errorf("%w: key pair is incomplete", vaulterr.ErrKeyFormat)
	}
	pub := pair.Public
	if pub == nil {
		pub = &pair.Private.PublicKey
	}

	privPEM, err := encodePrivateKeyPEM(pair.Private)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(p.PrivateKeyPath(), privPEM, 0o600); err != nil {
		return vaulterr.Storage("write private key", err)
	}
	return savePublicKey(p, pub)
}

func savePublicKey(p Paths, pub *rsa.PublicKey) error {
	pubPEM, err := encodePublicKeyPEM(pub)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(p.PublicKeyPath(), pubPEM, 0o644); err != nil {
		return vaulterr.Storage("write public key", err)
	}
	return nil
}
