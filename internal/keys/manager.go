package keys

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/sirupsen/logrus"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/fsutil"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
)

// Manager guarantees that the symmetric derivation inputs and the RSA key
// pair exist, generating them on first use and loading them afterwards.
// Material is cached after the first successful call.
type Manager struct {
	paths   Paths
	kdf     krypto.PBKDF2Params
	rsaBits int
	log     *logrus.Entry

	mu      sync.Mutex
	symKey  *DerivedKey
	pair    *KeyPair
	created []string
}

// Option configures a Manager.
type Option func(*Manager)

// WithKDFParams overrides the PBKDF2 parameters.
func WithKDFParams(p krypto.PBKDF2Params) Option {
	return func(m *Manager) { m.kdf = p }
}

// WithRSABits overrides the modulus size used when a new pair is generated.
func WithRSABits(bits int) Option {
	return func(m *Manager) { m.rsaBits = bits }
}

// WithLogger sets the logger entry used for lifecycle messages.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager returns a Manager bound to the artifacts under p.
func NewManager(p Paths, opts ...Option) *Manager {
	m := &Manager{
		paths:   p,
		kdf:     krypto.DefaultPBKDF2Params(),
		rsaBits: krypto.DefaultRSABits,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		m.log = logrus.NewEntry(discard)
	}
	m.log = m.log.WithField("component", "keys")
	return m
}

// Paths returns the artifact locations.
func (m *Manager) Paths() Paths { return m.paths }

// Created lists the artifact paths this Manager wrote, in write order.
func (m *Manager) Created() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.created...)
}

// ObtainSymmetricKey loads or creates the secret and salt, then derives the key.
// When either file is missing both are regenerated together.
func (m *Manager) ObtainSymmetricKey() (*DerivedKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.symKey != nil {
		return m.symKey, nil
	}

	secret, salt, err := m.loadOrCreateSecret()
	if err != nil {
		return nil, err
	}
	defer memguard.WipeBytes(secret)

	raw, err := krypto.DeriveKeyPBKDF2(secret, salt, m.kdf)
	if err != nil {
		return nil, fmt.Errorf("derive symmetric key: %w", err)
	}

	key, err := newDerivedKey(raw)
	if err != nil {
		return nil, err
	}
	m.symKey = key
	return key, nil
}

func (m *Manager) loadOrCreateSecret() (secret, salt []byte, err error) {
	secretPath, saltPath := m.paths.SecretPath(), m.paths.SaltPath()

	haveSecret, err := fsutil.Exists(secretPath)
	if err != nil {
		return nil, nil, vaulterr.Storage("stat secret", err)
	}
	haveSalt, err := fsutil.Exists(saltPath)
	if err != nil {
		return nil, nil, vaulterr.Storage("stat salt", err)
	}

	if haveSecret && haveSalt {
		salt, err = os.ReadFile(saltPath)
		if err != nil {
			return nil, nil, vaulterr.Storage("read salt", err)
		}
		secret, err = os.ReadFile(secretPath)
		if err != nil {
			return nil, nil, vaulterr.Storage("read secret", err)
		}
		if len(secret) == 0 || len(salt) == 0 {
			return nil, nil, fmt.Errorf("%w: secret or salt file is empty", vaulterr.ErrKeyFormat)
		}
		m.log.Debug("loaded symmetric secret and salt")
		return secret, salt, nil
	}

	if haveSecret != haveSalt {
		m.log.Warn("secret and salt are not both present; regenerating both")
		// A leftover half must be gone before the new pair is written, so a
		// failed write leaves at most one file and the next start regenerates.
		for _, stale := range []string{secretPath, saltPath} {
			if err := os.Remove(stale); err != nil && !errors.Is(err, os.ErrNotExist) {
				return nil, nil, vaulterr.Storage("remove stale secret", err)
			}
		}
	}

	salt, err = krypto.NewRandomBytes(krypto.SaltLengthBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("generate salt: %w", err)
	}
	secret, err = krypto.NewRandomBytes(krypto.SecretLengthBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("generate secret: %w", err)
	}

	if err := fsutil.WriteFileAtomic(saltPath, salt, 0o600); err != nil {
		return nil, nil, vaulterr.Storage("write salt", err)
	}
	m.created = append(m.created, saltPath)
	if err := fsutil.WriteFileAtomic(secretPath, secret, 0o600); err != nil {
		return nil, nil, vaulterr.Storage("write secret", err)
	}
	m.created = append(m.created, secretPath)

	m.log.Info("generated new symmetric secret and salt")
	return secret, salt, nil
}

// ObtainKeyPair loads the RSA pair, or generates and persists a new one when
// neither file exists. An unparsable file is never overwritten.
func (m *Manager) ObtainKeyPair() (*KeyPair, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pair != nil {
		return m.pair, nil
	}

	privPath, pubPath := m.paths.PrivateKeyPath(), m.paths.PublicKeyPath()
	havePriv, err := fsutil.Exists(privPath)
	if err != nil {
		return nil, vaulterr.Storage("stat private key", err)
	}
	havePub, err := fsutil.Exists(pubPath)
	if err != nil {
		return nil, vaulterr.Storage("stat public key", err)
	}

	var pair *KeyPair
	switch {
	case havePriv && havePub:
		pair, err = m.loadKeyPair()
	case havePriv:
		pair, err = m.restorePublicKey()
	case havePub:
		err = fmt.Errorf("%w: %s exists without %s", vaulterr.ErrKeyFormat, publicKeyFilename, privateKeyFilename)
	default:
		pair, err = m.generateKeyPair()
	}
	if err != nil {
		return nil, err
	}

	m.pair = pair
	return pair, nil
}

func (m *Manager) loadKeyPair() (*KeyPair, error) {
	privPEM, err := os.ReadFile(m.paths.PrivateKeyPath())
	if err != nil {
		return nil, vaulterr.Storage("read private key", err)
	}
	pubPEM, err := os.ReadFile(m.paths.PublicKeyPath())
	if err != nil {
		return nil, vaulterr.Storage("read public key", err)
	}

	priv, err := parsePrivateKeyPEM(privPEM)
	if err != nil {
		return nil, err
	}
	pub, err := parsePublicKeyPEM(pubPEM)
	if err != nil {
		return nil, err
	}
	if !priv.PublicKey.Equal(pub) {
		return nil, fmt.Errorf("%w: public key does not match private key", vaulterr.ErrKeyFormat)
	}

	m.log.WithField("bits", priv.N.BitLen()).Debug("loaded rsa key pair")
	return &KeyPair{Private: priv, Public: pub}, nil
}

func (m *Manager) restorePublicKey() (*KeyPair, error) {
	privPEM, err := os.ReadFile(m.paths.PrivateKeyPath())
	if err != nil {
		return nil, vaulterr.Storage("read private key", err)
	}
	priv, err := parsePrivateKeyPEM(privPEM)
	if err != nil {
		return nil, err
	}
	if err := savePublicKey(m.paths, &priv.PublicKey); err != nil {
		return nil, err
	}
	m.created = append(m.created, m.paths.PublicKeyPath())

	m.log.Warn("public key was missing; rewrote it from the private key")
	return &KeyPair{Private: priv, Public: &priv.PublicKey}, nil
}

func (m *Manager) generateKeyPair() (*KeyPair, error) {
	m.log.WithField("bits", m.rsaBits).Info("generating rsa key pair")
	priv, err := krypto.GenerateRSAKey(m.rsaBits)
	if err != nil {
		return nil, err
	}
	pair := &KeyPair{Private: priv, Public: &priv.PublicKey}
	if err := SaveKeyPair(m.paths, pair); err != nil {
		return nil, err
	}
	m.created = append(m.created, m.paths.PrivateKeyPath(), m.paths.PublicKeyPath())
	return pair, nil
}

// Material obtains both halves and bundles them for the envelope.
func (m *Manager) Material() (*Material, error) {
	sym, err := m.ObtainSymmetricKey()
	if err != nil {
		return nil, err
	}
	pair, err := m.ObtainKeyPair()
	if err != nil {
		return nil, err
	}
	return NewMaterial(sym, pair), nil
}
