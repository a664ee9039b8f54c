package keys

import (
	"crypto"
	"crypto/rsa"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"
)

// DerivedKey holds the PBKDF2 output inside a memguard enclave. The plaintext
// key only exists in locked memory for the duration of Use.
type DerivedKey struct {
	enclave *memguard.Enclave
}

// newDerivedKey seals raw into an enclave. raw is wiped.
func newDerivedKey(raw []byte) (*DerivedKey, error) {
	if len(raw) == 0 {
		return nil, errors.New("derived key is empty")
	}
	return &DerivedKey{enclave: memguard.NewEnclave(raw)}, nil
}

// Use opens the enclave and passes the key to fn. The buffer is destroyed
// when fn returns, so fn must not retain the slice.
func (k *DerivedKey) Use(fn func(key []byte) error) error {
	if k == nil || k.enclave == nil {
		return errors.New("derived key not initialised")
	}
	buf, err := k.enclave.Open()
	if err != nil {
		return fmt.Errorf("open key enclave: %w", err)
	}
	defer buf.Destroy()
	return fn(buf.Bytes())
}

// Equal compares two derived keys in constant time.
func (k *DerivedKey) Equal(other *DerivedKey) bool {
	var equal bool
	err := k.Use(func(a []byte) error {
		return other.Use(func(b []byte) error {
			equal = subtle.ConstantTimeCompare(a, b) == 1
			return nil
		})
	})
	return err == nil && equal
}

// KeyPair is the RSA pair protecting the vault.
type KeyPair struct {
	Private *rsa.PrivateKey
	Public  *rsa.PublicKey
}

// Material is everything the envelope needs. It is built once at startup and
// passed explicitly to whoever seals or opens blobs.
type Material struct {
	Symmetric *DerivedKey
	Public    *rsa.PublicKey
	// Private is usually the *rsa.PrivateKey itself; any RSA-backed
	// crypto.Decrypter works.
	Private crypto.Decrypter
}

// NewMaterial assembles Material from a derived key and a key pair.
func NewMaterial(sym *DerivedKey, pair *KeyPair) *Material {
	return &Material{
		Symmetric: sym,
		Public:    pair.Public,
		Private:   pair.Private,
	}
}
