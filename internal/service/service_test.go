package service_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/db"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys/keytest"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/license"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/service"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
	"github.com/Hussein-Mazeh/LicenseKeyManager/store"
)

func testOptions(t *testing.T, dir string) service.Options {
	t.Helper()
	keytest.Provision(t, dir)
	return service.Options{
		Dir:         dir,
		KDF:         krypto.PBKDF2Params{Iterations: 1000, KeyLen: krypto.DerivedKeyLength},
		Quarantine:  true,
		JournalPath: filepath.Join(dir, "journal.db"),
	}
}

func openService(t *testing.T, opts service.Options) *service.Service {
	t.Helper()
	svc, err := service.New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestGenerateListAndReopen(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	svc := openService(t, opts)
	require.NoError(t, svc.LoadWarning())
	assert.Empty(t, svc.ListRecords())

	first, err := svc.GenerateAndStore("")
	require.NoError(t, err)
	assert.True(t, license.Valid(first.Key))
	assert.False(t, first.CreatedAt.IsZero())

	_, err = svc.GenerateAndStore("")
	require.NoError(t, err)
	require.Len(t, svc.ListRecords(), 2)
	assert.Equal(t, first, svc.ListRecords()[0])

	require.NoError(t, svc.Close())
	again := openService(t, opts)
	require.NoError(t, again.LoadWarning())
	assert.Equal(t, svc.ListRecords(), again.ListRecords())
}

func TestListRecordsReturnsSnapshot(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))
	_, err := svc.GenerateAndStore("")
	require.NoError(t, err)

	snap := svc.ListRecords()
	snap[0].Key = "mutated"
	assert.NotEqual(t, "mutated", svc.ListRecords()[0].Key)
}

func TestCustomKeyPolicy(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))

	rec, err := svc.GenerateAndStore("  Zq7!mP2#vX9k ")
	require.NoError(t, err)
	assert.Equal(t, "Zq7!mP2#vX9k", rec.Key)

	_, err = svc.GenerateAndStore("short")
	assert.ErrorIs(t, err, vaulterr.ErrInvalidKey)
	assert.Len(t, svc.ListRecords(), 1)
}

func TestDeleteAndExport(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))
	var keys []string
	for i := 0; i < 3; i++ {
		rec, err := svc.GenerateAndStore("")
		require.NoError(t, err)
		keys = append(keys, rec.Key)
	}

	text, err := svc.ExportRecordText(2)
	require.NoError(t, err)
	assert.Equal(t, keys[2], text)

	require.NoError(t, svc.DeleteRecord(1))
	got := svc.ListRecords()
	require.Len(t, got, 2)
	assert.Equal(t, keys[0], got[0].Key)
	assert.Equal(t, keys[2], got[1].Key)

	assert.ErrorIs(t, svc.DeleteRecord(2), vaulterr.ErrIndex)
	_, err = svc.ExportRecordText(-1)
	assert.ErrorIs(t, err, vaulterr.ErrIndex)
}

func TestCapacityFailureLeavesStateUnchanged(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	svc := openService(t, opts)

	var storeErr error
	for i := 0; i < 40 && storeErr == nil; i++ {
		_, storeErr = svc.GenerateAndStore("")
	}
	require.ErrorIs(t, storeErr, vaulterr.ErrPayloadTooLarge)

	count := len(svc.ListRecords())
	assert.Greater(t, count, 2)

	require.NoError(t, svc.Close())
	again := openService(t, opts)
	assert.Len(t, again.ListRecords(), count)
}

func TestCorruptVaultStartsEmptyWithWarning(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	svc := openService(t, opts)
	_, err := svc.GenerateAndStore("")
	require.NoError(t, err)
	require.NoError(t, svc.Close())

	require.NoError(t, os.WriteFile(svc.VaultPath(), []byte(strings.Repeat("A", 700)), 0o600))

	again := openService(t, opts)
	assert.Empty(t, again.ListRecords())

	warn := again.LoadWarning()
	var failure *store.LoadFailure
	require.ErrorAs(t, warn, &failure)
	assert.ErrorIs(t, warn, vaulterr.ErrIntegrity)
	assert.FileExists(t, failure.Quarantined)

	events, err := again.History(1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, db.ActionLoadRecovered, events[0].Action)
	assert.False(t, events[0].Success)

	_, err = again.GenerateAndStore("")
	require.NoError(t, err)
}

func TestSubscribe(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))

	var changes []service.Change
	cancel := svc.Subscribe(func(c service.Change) { changes = append(changes, c) })

	_, err := svc.GenerateAndStore("")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRecord(0))

	require.Len(t, changes, 2)
	assert.Equal(t, service.ChangeAdded, changes[0].Kind)
	assert.Len(t, changes[0].Records, 1)
	assert.Equal(t, service.ChangeDeleted, changes[1].Kind)
	assert.Equal(t, 0, changes[1].Index)
	assert.Empty(t, changes[1].Records)

	cancel()
	_, err = svc.GenerateAndStore("")
	require.NoError(t, err)
	assert.Len(t, changes, 2)
}

func TestHistoryStoresFingerprintsOnly(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))
	rec, err := svc.GenerateAndStore("")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRecord(0))

	events, err := svc.History(0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, db.ActionDelete, events[0].Action)
	assert.Equal(t, db.ActionGenerate, events[1].Action)
	for _, ev := range events {
		assert.Equal(t, krypto.Fingerprint(rec.Key), ev.Fingerprint)
		assert.NotContains(t, ev.Detail, rec.Key)
		assert.True(t, ev.Success)
	}
}

func TestHistoryWithoutJournal(t *testing.T) {
	opts := testOptions(t, t.TempDir())
	opts.JournalPath = ""
	svc := openService(t, opts)

	_, err := svc.History(10)
	assert.ErrorIs(t, err, service.ErrJournalDisabled)
}

func TestInspect(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))

	_, err := svc.Inspect()
	assert.ErrorIs(t, err, vaulterr.ErrStorage)

	_, err = svc.GenerateAndStore("")
	require.NoError(t, err)
	rep, err := svc.Inspect()
	require.NoError(t, err)
	assert.True(t, rep.DigestValid)
	assert.Equal(t, 512, rep.CiphertextSize)
}

func TestFirstStartCreatesSymmetricInputs(t *testing.T) {
	svc := openService(t, testOptions(t, t.TempDir()))
	created := svc.CreatedKeyFiles()
	require.Len(t, created, 2, "key pair was provisioned; only salt and secret are new")
	assert.Equal(t, "salt.dat", filepath.Base(created[0]))
	assert.Equal(t, "secret.key", filepath.Base(created[1]))
}
