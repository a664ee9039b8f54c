package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/config"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/db"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/envelope"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/license"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
	"github.com/Hussein-Mazeh/LicenseKeyManager/store"
)

// ErrJournalDisabled is returned by History when no journal is configured.
var ErrJournalDisabled = errors.New("journal disabled")

// Options selects the vault directory and the collaborators' settings.
type Options struct {
	Dir        string
	KDF        krypto.PBKDF2Params
	RSABits    int
	Quarantine bool
	// JournalPath enables the audit journal when non-empty.
	JournalPath string
	Logger      *logrus.Logger
}

// OptionsFromConfig maps resolved settings onto Options.
func OptionsFromConfig(cfg *config.Config, log *logrus.Logger) Options {
	opts := Options{
		Dir:        cfg.Dir,
		KDF:        cfg.KDFParams(),
		RSABits:    cfg.RSABits,
		Quarantine: cfg.Quarantine,
		Logger:     log,
	}
	if cfg.Journal.Enabled {
		opts.JournalPath = cfg.JournalPath()
	}
	return opts
}

// ChangeKind says what happened to the record list.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota + 1
	ChangeDeleted
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Change is delivered to subscribers after a successful mutation.
type Change struct {
	Kind    ChangeKind
	Index   int
	Records vault.Vault
}

// Service exposes high-level vault operations for CLI/GUI.
type Service struct {
	keys    *keys.Manager
	store   *store.Store
	journal *db.DB
	log     *logrus.Entry

	mu          sync.Mutex
	records     vault.Vault
	loadFailure *store.LoadFailure
	subs        map[int]func(Change)
	nextSub     int
}

// New obtains key material under opts.Dir, loads the vault and opens the
// journal. An unreadable vault is not fatal: the service starts empty and
// LoadWarning reports why.
func New(opts Options) (*Service, error) {
	if opts.Dir == "" {
		opts.Dir = config.DefaultDir
	}
	if opts.KDF.Iterations == 0 {
		opts.KDF = krypto.DefaultPBKDF2Params()
	}
	if opts.RSABits == 0 {
		opts.RSABits = krypto.DefaultRSABits
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	entry := logrus.NewEntry(logger)

	if err := os.MkdirAll(opts.Dir, 0o700); err != nil {
		return nil, vaulterr.Storage("create vault dir", err)
	}

	mgr := keys.NewManager(keys.Paths{Dir: opts.Dir},
		keys.WithKDFParams(opts.KDF),
		keys.WithRSABits(opts.RSABits),
		keys.WithLogger(entry),
	)
	material, err := mgr.Material()
	if err != nil {
		return nil, fmt.Errorf("obtain key material: %w", err)
	}

	s := &Service{
		keys: mgr,
		store: store.New(store.Paths{Dir: opts.Dir}, material,
			store.WithLogger(entry),
			store.WithQuarantine(opts.Quarantine),
		),
		log:  entry.WithField("component", "service"),
		subs: make(map[int]func(Change)),
	}

	if opts.JournalPath != "" {
		journal, err := db.Open(opts.JournalPath)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		if err := db.Migrate(journal); err != nil {
			_ = db.Close(journal)
			return nil, fmt.Errorf("open journal: %w", err)
		}
		s.journal = journal
	}

	records, err := s.store.Load()
	var failure *store.LoadFailure
	switch {
	case errors.As(err, &failure):
		s.loadFailure = failure
		s.record(db.EventRow{Action: db.ActionLoadRecovered, Success: false, Detail: failure.Error()})
	case err != nil:
		_ = db.Close(s.journal)
		return nil, fmt.Errorf("load vault: %w", err)
	}
	s.records = records

	s.log.WithField("records", len(records)).Debug("service ready")
	return s, nil
}

// Close releases the journal.
func (s *Service) Close() error {
	return db.Close(s.journal)
}

// Dir returns the vault directory.
func (s *Service) Dir() string { return s.keys.Paths().Dir }

// VaultPath returns the sealed vault file path.
func (s *Service) VaultPath() string { return s.store.Path() }

// CreatedKeyFiles lists the key artifacts written while this service started.
func (s *Service) CreatedKeyFiles() []string { return s.keys.Created() }

// LoadWarning returns the recovered load failure, or nil when the vault
// loaded cleanly.
func (s *Service) LoadWarning() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadFailure == nil {
		return nil
	}
	return s.loadFailure
}

// GenerateAndStore appends a record and persists the vault. Empty keyText
// generates a new key; otherwise keyText must pass the custom key policy.
// On a failed save the in-memory list is left as it was.
func (s *Service) GenerateAndStore(keyText string) (vault.Record, error) {
	key, err := s.resolveKey(keyText)
	if err != nil {
		return vault.Record{}, err
	}

	s.mu.Lock()
	next := vault.Append(s.records, key)
	if err := s.store.Save(next); err != nil {
		count := len(s.records)
		s.mu.Unlock()
		s.record(db.EventRow{Action: db.ActionGenerate, Fingerprint: krypto.Fingerprint(key), RecordCount: count, Detail: err.Error()})
		s.log.WithError(err).WithField("fingerprint", krypto.Fingerprint(key)).Warn("store key failed")
		return vault.Record{}, fmt.Errorf("store key: %w", err)
	}
	s.records = next
	rec := next[len(next)-1]
	change := Change{Kind: ChangeAdded, Index: len(next) - 1, Records: next.Clone()}
	subs := s.subscribers()
	s.mu.Unlock()

	s.record(db.EventRow{Action: db.ActionGenerate, Fingerprint: krypto.Fingerprint(key), RecordCount: len(next), Success: true})
	s.log.WithFields(logrus.Fields{"fingerprint": krypto.Fingerprint(key), "records": len(next)}).Info("key stored")
	notify(subs, change)
	return rec, nil
}

func (s *Service) resolveKey(keyText string) (string, error) {
	if keyText == "" {
		return license.Generate()
	}
	key, err := license.ValidateCustomKey(keyText)
	if err != nil {
		return "", fmt.Errorf("%w: %v", vaulterr.ErrInvalidKey, err)
	}
	return key, nil
}

// ListRecords returns a snapshot of the records in insertion order.
func (s *Service) ListRecords() vault.Vault {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records.Clone()
}

// DeleteRecord removes the record at index and persists the vault.
func (s *Service) DeleteRecord(index int) error {
	s.mu.Lock()
	next, err := vault.DeleteAt(s.records, index)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	removed := s.records[index]
	if err := s.store.Save(next); err != nil {
		count := len(s.records)
		s.mu.Unlock()
		s.record(db.EventRow{Action: db.ActionDelete, Fingerprint: krypto.Fingerprint(removed.Key), RecordCount: count, Detail: err.Error()})
		return fmt.Errorf("delete key: %w", err)
	}
	s.records = next
	change := Change{Kind: ChangeDeleted, Index: index, Records: next.Clone()}
	subs := s.subscribers()
	s.mu.Unlock()

	s.record(db.EventRow{Action: db.ActionDelete, Fingerprint: krypto.Fingerprint(removed.Key), RecordCount: len(next), Success: true})
	s.log.WithFields(logrus.Fields{"fingerprint": krypto.Fingerprint(removed.Key), "records": len(next)}).Info("key deleted")
	notify(subs, change)
	return nil
}

// ExportRecordText returns the raw key text at index, for clipboard copy.
func (s *Service) ExportRecordText(index int) (string, error) {
	s.mu.Lock()
	rec, err := s.records.At(index)
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	s.record(db.EventRow{Action: db.ActionExport, Fingerprint: krypto.Fingerprint(rec.Key), Success: true})
	return rec.Key, nil
}

// Inspect reports on the sealed vault file without decrypting it.
func (s *Service) Inspect() (envelope.Report, error) {
	data, err := os.ReadFile(s.store.Path())
	if err != nil {
		return envelope.Report{}, vaulterr.Storage("read vault", err)
	}
	return envelope.Inspect(string(data))
}

// History returns up to limit journal events, newest first.
func (s *Service) History(limit int) ([]db.EventRow, error) {
	if s.journal == nil {
		return nil, ErrJournalDisabled
	}
	return db.ListEvents(s.journal, limit)
}

// Subscribe registers fn for change notifications and returns a function
// that removes it. fn runs on the goroutine that made the change.
func (s *Service) Subscribe(fn func(Change)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// subscribers must be called with s.mu held.
func (s *Service) subscribers() []func(Change) {
	out := make([]func(Change), 0, len(s.subs))
	for id := 0; id < s.nextSub; id++ {
		if fn, ok := s.subs[id]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func notify(subs []func(Change), c Change) {
	for _, fn := range subs {
		fn(c)
	}
}

func (s *Service) record(ev db.EventRow) {
	if s.journal == nil {
		return
	}
	if _, err := db.InsertEvent(s.journal, ev); err != nil {
		s.log.WithError(err).WithField("action", ev.Action).Warn("journal write failed")
	}
}
