package keys

import "path/filepath"

const (
	secretFilename     = "secret.key"
	saltFilename       = "salt.dat"
	privateKeyFilename = "rsa_private.pem"
	publicKeyFilename  = "rsa_public.pem"
)

// Paths locates the four key artifacts on disk.
type Paths struct {
	Dir string
}

// SecretPath resolves the raw symmetric secret file.
func (p Paths) SecretPath() string { return filepath.Join(p.Dir, secretFilename) }

// SaltPath resolves the raw salt file.
func (p Paths) SaltPath() string { return filepath.Join(p.Dir, saltFilename) }

// PrivateKeyPath resolves the PKCS#8 PEM private key file.
func (p Paths) PrivateKeyPath() string { return filepath.Join(p.Dir, privateKeyFilename) }

// PublicKeyPath resolves the SPKI PEM public key file.
func (p Paths) PublicKeyPath() string { return filepath.Join(p.Dir, publicKeyFilename) }

// All lists every artifact path in a stable order.
func (p Paths) All() []string {
	return []string{p.SecretPath(), p.SaltPath(), p.PrivateKeyPath(), p.PublicKeyPath()}
}
