package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/sirupsen/logrus"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/envelope"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/fsutil"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
)

const vaultFilename = "licenses.dat"

// Paths locates the vault file on disk.
type Paths struct {
	Dir string
}

// VaultPath resolves the sealed vault file.
func (p Paths) VaultPath() string {
	return filepath.Join(p.Dir, vaultFilename)
}

// LoadFailure reports a vault file that could not be opened with the current
// key material. Load returns it together with an empty vault.
type LoadFailure struct {
	Path string
	// Quarantined is where the unreadable file was moved, if it was.
	Quarantined string
	Err         error
}

func (e *LoadFailure) Error() string {
	if e.Quarantined != "" {
		return fmt.Sprintf("load %s (moved to %s): %v", filepath.Base(e.Path), filepath.Base(e.Quarantined), e.Err)
	}
	return fmt.Sprintf("load %s: %v", filepath.Base(e.Path), e.Err)
}

func (e *LoadFailure) Unwrap() error { return e.Err }

// Store maps an in-memory vault to its sealed file.
type Store struct {
	paths      Paths
	material   *keys.Material
	quarantine bool
	log        *logrus.Entry
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger entry.
func WithLogger(log *logrus.Entry) Option {
	return func(s *Store) { s.log = log }
}

// WithQuarantine controls whether unreadable vault files are moved aside on Load.
func WithQuarantine(enabled bool) Option {
	return func(s *Store) { s.quarantine = enabled }
}

// New returns a Store that seals with m.
func New(p Paths, m *keys.Material, opts ...Option) *Store {
	s := &Store{paths: p, material: m, quarantine: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		s.log = logrus.NewEntry(discard)
	}
	s.log = s.log.WithField("component", "store")
	return s
}

// Path returns the vault file path.
func (s *Store) Path() string { return s.paths.VaultPath() }

// Encode serializes v to JSON and compresses it with zlib.
func Encode(v vault.Vault) ([]byte, error) {
	data, err := json.Marshal(v.Clone())
	if err != nil {
		return nil, fmt.Errorf("encode vault: %w", err)
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("create compressor: %w", err)
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("compress vault: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress vault: %w", err)
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode. Any failure is an ErrFormat.
func Decode(payload []byte) (vault.Vault, error) {
	zr, err := zlib.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: decompress vault: %v", vaulterr.ErrFormat, err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress vault: %v", vaulterr.ErrFormat, err)
	}

	var v vault.Vault
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: decode vault: %v", vaulterr.ErrFormat, err)
	}
	for i, rec := range v {
		if rec.Key == "" || rec.CreatedAt.IsZero() {
			return nil, fmt.Errorf("%w: record %d is missing key or created_at", vaulterr.ErrFormat, i)
		}
	}
	return v.Clone(), nil
}

// Save seals v and replaces the vault file. On error the previous file is kept.
func (s *Store) Save(v vault.Vault) error {
	payload, err := Encode(v)
	if err != nil {
		return err
	}

	blob, err := envelope.Seal(payload, s.material)
	if err != nil {
		return fmt.Errorf("seal vault: %w", err)
	}

	if err := fsutil.WriteFileAtomic(s.Path(), []byte(blob), 0o600); err != nil {
		return vaulterr.Storage("write vault", err)
	}

	s.log.WithFields(logrus.Fields{
		"records":    len(v),
		"compressed": len(payload),
	}).Debug("vault saved")
	return nil
}

// Load reads the vault file. A missing file is an empty vault. A file the
// envelope cannot open yields an empty vault and a *LoadFailure. A file that
// opens but does not decode is a fatal ErrFormat.
func (s *Store) Load() (vault.Vault, error) {
	path := s.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("no vault file yet")
			return vault.Vault{}, nil
		}
		return nil, vaulterr.Storage("read vault", err)
	}

	payload, err := envelope.Open(string(data), s.material)
	if err != nil {
		if !vaulterr.Unreadable(err) {
			return nil, fmt.Errorf("open vault: %w", err)
		}

		failure := &LoadFailure{Path: path, Err: err}
		if s.quarantine {
			moved, qerr := s.quarantineFile(path)
			if qerr != nil {
				return nil, qerr
			}
			failure.Quarantined = moved
		}
		s.log.WithError(err).WithField("quarantined", failure.Quarantined).Warn("vault unreadable; starting empty")
		return vault.Vault{}, failure
	}

	v, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	s.log.WithField("records", len(v)).Debug("vault loaded")
	return v, nil
}

func (s *Store) quarantineFile(path string) (string, error) {
	target := path + ".corrupt-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	if err := os.Rename(path, target); err != nil {
		return "", vaulterr.Storage("quarantine vault", err)
	}
	return target, nil
}
