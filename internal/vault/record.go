package vault

import (
	"time"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

// Record is one stored license key.
type Record struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"created_at"`
}

// Vault is the ordered record list persisted as a single sealed blob.
// Duplicate keys are allowed.
type Vault []Record

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC().Truncate(time.Second) }

// Append returns a copy of v with a new record for key stamped with the current time.
func Append(v Vault, key string) Vault {
	out := make(Vault, len(v), len(v)+1)
	copy(out, v)
	return append(out, Record{Key: key, CreatedAt: now()})
}

// DeleteAt returns a copy of v without the record at index, preserving order.
func DeleteAt(v Vault, index int) (Vault, error) {
	if index < 0 || index >= len(v) {
		return v, vaulterr.Index(index, len(v))
	}
	out := make(Vault, 0, len(v)-1)
	out = append(out, v[:index]...)
	return append(out, v[index+1:]...), nil
}

// At returns the record at index.
func (v Vault) At(index int) (Record, error) {
	if index < 0 || index >= len(v) {
		return Record{}, vaulterr.Index(index, len(v))
	}
	return v[index], nil
}

// Clone returns an independent copy; nil becomes an empty vault.
func (v Vault) Clone() Vault {
	out := make(Vault, len(v))
	copy(out, v)
	return out
}
