// Package keytest provisions key material for tests. Generating a 4096-bit
// RSA key takes seconds, so one key per test binary is shared.
package keytest

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
)

var (
	once    sync.Once
	shared  *rsa.PrivateKey
	initErr error
)

// SharedKey returns the process-wide 4096-bit test key.
func SharedKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	once.Do(func() {
		shared, initErr = krypto.GenerateRSAKey(krypto.DefaultRSABits)
	})
	if initErr != nil {
		t.Fatalf("generate shared rsa key: %v", initErr)
	}
	return shared
}

// Provision writes the shared key pair into dir so a Manager loads it instead
// of generating one, and returns that Manager. The symmetric secret is fresh
// for every dir.
func Provision(t testing.TB, dir string) *keys.Manager {
	t.Helper()
	return ProvisionWith(t, dir, SharedKey(t))
}

// ProvisionWith is Provision with an explicit private key.
func ProvisionWith(t testing.TB, dir string, priv *rsa.PrivateKey) *keys.Manager {
	t.Helper()
	paths := keys.Paths{Dir: dir}
	if err := keys.SaveKeyPair(paths, &keys.KeyPair{Private: priv, Public: &priv.PublicKey}); err != nil {
		t.Fatalf("save key pair: %v", err)
	}
	return keys.NewManager(paths)
}

// Material provisions dir and returns its loaded material.
func Material(t testing.TB, dir string) *keys.Material {
	t.Helper()
	m, err := Provision(t, dir).Material()
	if err != nil {
		t.Fatalf("load material: %v", err)
	}
	return m
}
