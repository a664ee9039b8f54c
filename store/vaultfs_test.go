package store_test

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/envelope"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys/keytest"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vault"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/store"
)

func newStore(t *testing.T, opts ...store.Option) (*store.Store, *keys.Material, string) {
	t.Helper()
	dir := t.TempDir()
	m := keytest.Material(t, dir)
	return store.New(store.Paths{Dir: dir}, m, opts...), m, dir
}

func sampleVault(n int) vault.Vault {
	base := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	v := vault.Vault{}
	for i := 0; i < n; i++ {
		v = append(v, vault.Record{
			Key:       fmt.Sprintf("%05x-%05x-%05x-%05x-%05x-%05x-%02x-", i, i*7, i*13, i*17, i*19, i*23, i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return v
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	st, _, _ := newStore(t)
	v, err := st.Load()
	require.NoError(t, err)
	assert.NotNil(t, v)
	assert.Empty(t, v)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("%d records", n), func(t *testing.T) {
			st, _, _ := newStore(t)
			want := sampleVault(n)

			require.NoError(t, st.Save(want))
			got, err := st.Load()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestSavedFileIsSingleLineBase64(t *testing.T) {
	st, _, _ := newStore(t)
	require.NoError(t, st.Save(sampleVault(2)))

	data, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "\n")
	_, err = base64.StdEncoding.DecodeString(string(data))
	assert.NoError(t, err)
}

func TestSaveOverwritesPreviousContents(t *testing.T) {
	st, _, _ := newStore(t)
	require.NoError(t, st.Save(sampleVault(3)))
	require.NoError(t, st.Save(sampleVault(1)))

	got, err := st.Load()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSaveHitsCapacityAndKeepsPreviousFile(t *testing.T) {
	st, _, _ := newStore(t)

	var (
		v       vault.Vault
		lastOK  []byte
		saveErr error
	)
	for i := 0; i < 40; i++ {
		v = append(v, sampleVault(i + 1)[i])
		if saveErr = st.Save(v); saveErr != nil {
			break
		}
		data, err := os.ReadFile(st.Path())
		require.NoError(t, err)
		lastOK = data
	}

	require.ErrorIs(t, saveErr, vaulterr.ErrPayloadTooLarge)
	assert.Greater(t, len(v), 2, "a few records must fit")

	data, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	assert.Equal(t, lastOK, data, "failed save must leave the previous file")
}

func TestLoadRecoversFromTamperedFile(t *testing.T) {
	st, _, dir := newStore(t)
	require.NoError(t, st.Save(sampleVault(2)))

	data, err := os.ReadFile(st.Path())
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(string(data))
	require.NoError(t, err)
	raw[10] ^= 0x55
	require.NoError(t, os.WriteFile(st.Path(), []byte(base64.StdEncoding.EncodeToString(raw)), 0o600))

	v, err := st.Load()
	assert.Empty(t, v)
	assert.NotNil(t, v)

	var failure *store.LoadFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, vaulterr.ErrIntegrity)
	assert.NoFileExists(t, st.Path())
	assert.FileExists(t, failure.Quarantined)
	assert.Equal(t, dir, filepath.Dir(failure.Quarantined))
	assert.True(t, strings.HasPrefix(filepath.Base(failure.Quarantined), "licenses.dat.corrupt-"))
}

func TestLoadRecoversFromWrongSymmetricKey(t *testing.T) {
	st, _, dir := newStore(t)
	require.NoError(t, st.Save(sampleVault(1)))

	require.NoError(t, os.Remove(keys.Paths{Dir: dir}.SaltPath()))
	m2, err := keys.NewManager(keys.Paths{Dir: dir}).Material()
	require.NoError(t, err)

	v, err := store.New(store.Paths{Dir: dir}, m2, store.WithQuarantine(false)).Load()
	assert.Empty(t, v)

	var failure *store.LoadFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, vaulterr.ErrAuthentication)
	assert.Empty(t, failure.Quarantined)
	assert.FileExists(t, st.Path(), "quarantine disabled leaves the file in place")
}

func TestLoadRecoversFromGarbage(t *testing.T) {
	st, _, _ := newStore(t)
	require.NoError(t, os.WriteFile(st.Path(), []byte("this is not base64 !!"), 0o600))

	v, err := st.Load()
	assert.Empty(t, v)
	var failure *store.LoadFailure
	require.ErrorAs(t, err, &failure)
	assert.ErrorIs(t, err, vaulterr.ErrFormat)
}

func TestLoadBadCompressedPayloadIsFatal(t *testing.T) {
	st, m, _ := newStore(t)
	blob, err := envelope.Seal([]byte("definitely not zlib"), m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(st.Path(), []byte(blob), 0o600))

	v, err := st.Load()
	assert.Nil(t, v)
	assert.ErrorIs(t, err, vaulterr.ErrFormat)
	var failure *store.LoadFailure
	assert.False(t, errors.As(err, &failure))
	assert.FileExists(t, st.Path(), "fatal format errors do not quarantine")
}

func deflate(t *testing.T, raw string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestLoadBadJSONIsFatal(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{name: "object instead of list", json: `{"not":"a list"}`},
		{name: "empty record", json: `[{}]`},
		{name: "unrelated fields", json: `[{"unrelated":1}]`},
		{name: "missing created_at", json: `[{"key":"abc"}]`},
		{name: "empty key", json: `[{"key":"","created_at":"2024-01-02T03:04:05Z"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, m, _ := newStore(t)
			blob, err := envelope.Seal(deflate(t, tt.json), m)
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(st.Path(), []byte(blob), 0o600))

			_, err = st.Load()
			assert.ErrorIs(t, err, vaulterr.ErrFormat)
			var failure *store.LoadFailure
			assert.False(t, errors.As(err, &failure))
		})
	}
}

func TestEncodeDecode(t *testing.T) {
	payload, err := store.Encode(nil)
	require.NoError(t, err)
	v, err := store.Decode(payload)
	require.NoError(t, err)
	assert.Equal(t, vault.Vault{}, v)

	_, err = store.Decode([]byte{0x78, 0x9c, 0x00})
	assert.ErrorIs(t, err, vaulterr.ErrFormat)

	_, err = store.Decode(deflate(t, `[{}]`))
	assert.ErrorIs(t, err, vaulterr.ErrFormat)

	v, err = store.Decode(deflate(t, `[{"key":"abc","created_at":"2024-01-02T03:04:05Z"}]`))
	require.NoError(t, err)
	require.Len(t, v, 1)
	assert.Equal(t, "abc", v[0].Key)
}
