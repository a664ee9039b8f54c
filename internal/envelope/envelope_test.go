package envelope_test

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"encoding/base64"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/envelope"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/keys/keytest"
	"github.com/Hussein-Mazeh/LicenseKeyManager/internal/vaulterr"
	"github.com/Hussein-Mazeh/LicenseKeyManager/krypto"
)

type countingDecrypter struct {
	*rsa.PrivateKey
	calls int
}

func (c *countingDecrypter) Decrypt(rand io.Reader, msg []byte, opts crypto.DecrypterOpts) ([]byte, error) {
	c.calls++
	return c.PrivateKey.Decrypt(rand, msg, opts)
}

func instrumented(m *keys.Material) (*keys.Material, *countingDecrypter) {
	counter := &countingDecrypter{PrivateKey: m.Private.(*rsa.PrivateKey)}
	clone := *m
	clone.Private = counter
	return &clone, counter
}

func TestSealOpenRoundTrip(t *testing.T) {
	m := keytest.Material(t, t.TempDir())

	for _, n := range []int{0, 1, 64, 128, 190} {
		plaintext := bytes.Repeat([]byte{byte(n)}, n)
		blob, err := envelope.Seal(plaintext, m)
		require.NoError(t, err, "size %d", n)
		assert.NotContains(t, blob, "\n")

		out, err := envelope.Open(blob, m)
		require.NoError(t, err, "size %d", n)
		assert.True(t, bytes.Equal(plaintext, out), "size %d", n)
	}
}

func TestSealIsRandomised(t *testing.T) {
	m := keytest.Material(t, t.TempDir())
	a, err := envelope.Seal([]byte("same"), m)
	require.NoError(t, err)
	b, err := envelope.Seal([]byte("same"), m)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestBlobLayout(t *testing.T) {
	m := keytest.Material(t, t.TempDir())
	blob, err := envelope.Seal([]byte("layout"), m)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	require.Len(t, raw, m.Public.Size()+envelope.DigestSize)

	ct, digest := raw[:m.Public.Size()], raw[m.Public.Size():]
	assert.Equal(t, krypto.Digest512(ct), digest)
}

func TestTamperingIsCaughtBeforePrivateKeyUse(t *testing.T) {
	base := keytest.Material(t, t.TempDir())
	m, counter := instrumented(base)

	blob, err := envelope.Seal([]byte("tamper me"), m)
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)

	for i := range raw {
		flipped := append([]byte(nil), raw...)
		flipped[i] ^= 0x01

		out, err := envelope.Open(base64.StdEncoding.EncodeToString(flipped), m)
		require.ErrorIs(t, err, vaulterr.ErrIntegrity, "byte %d", i)
		require.Nil(t, out)
	}
	assert.Zero(t, counter.calls, "private key must not be used on a digest mismatch")

	_, err = envelope.Open(blob, m)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.calls)
}

func TestOpenRejectsMalformedInput(t *testing.T) {
	m, counter := instrumented(keytest.Material(t, t.TempDir()))

	_, err := envelope.Open("%%% not base64 %%%", m)
	assert.ErrorIs(t, err, vaulterr.ErrFormat)

	_, err = envelope.Open(base64.StdEncoding.EncodeToString(make([]byte, envelope.DigestSize-1)), m)
	assert.ErrorIs(t, err, vaulterr.ErrFormat)

	_, err = envelope.Open("", m)
	assert.ErrorIs(t, err, vaulterr.ErrFormat)

	assert.Zero(t, counter.calls)
}

func TestOpenWithDifferentSymmetricKeyFailsAuthentication(t *testing.T) {
	mA := keytest.Material(t, t.TempDir())
	mB := keytest.Material(t, t.TempDir()) // same RSA pair, fresh secret

	blob, err := envelope.Seal([]byte("wrong key"), mA)
	require.NoError(t, err)

	out, err := envelope.Open(blob, mB)
	assert.ErrorIs(t, err, vaulterr.ErrAuthentication)
	assert.Nil(t, out)
}

func TestOpenWithDifferentKeyPairFailsDecryption(t *testing.T) {
	mA := keytest.Material(t, t.TempDir())

	other, err := krypto.GenerateRSAKey(2048)
	require.NoError(t, err)
	mB, err := keytest.ProvisionWith(t, t.TempDir(), other).Material()
	require.NoError(t, err)

	blob, err := envelope.Seal([]byte("wrong pair"), mA)
	require.NoError(t, err)

	out, err := envelope.Open(blob, mB)
	assert.ErrorIs(t, err, vaulterr.ErrAsymmetricDecrypt)
	assert.Nil(t, out)
}

func TestCapacityBoundary(t *testing.T) {
	m := keytest.Material(t, t.TempDir())
	require.Equal(t, 382, envelope.Capacity(m))

	limit := envelope.MaxPlaintext(m)
	require.Equal(t, envelope.Capacity(m), krypto.TokenLen(limit), "token at the limit fills the capacity exactly")
	require.Greater(t, krypto.TokenLen(limit+1), envelope.Capacity(m))

	atLimit := bytes.Repeat([]byte{'k'}, limit)
	blob, err := envelope.Seal(atLimit, m)
	require.NoError(t, err)
	out, err := envelope.Open(blob, m)
	require.NoError(t, err)
	assert.Equal(t, atLimit, out)

	_, err = envelope.Seal(append(atLimit, 'k'), m)
	assert.ErrorIs(t, err, vaulterr.ErrPayloadTooLarge)
}

func TestSealRequiresCompleteMaterial(t *testing.T) {
	_, err := envelope.Seal([]byte("x"), nil)
	assert.Error(t, err)
	_, err = envelope.Open("AAAA", &keys.Material{})
	assert.Error(t, err)
}

func TestInspect(t *testing.T) {
	m := keytest.Material(t, t.TempDir())
	blob, err := envelope.Seal([]byte("inspect"), m)
	require.NoError(t, err)

	rep, err := envelope.Inspect(blob)
	require.NoError(t, err)
	assert.True(t, rep.DigestValid)
	assert.Equal(t, m.Public.Size(), rep.CiphertextSize)
	assert.Equal(t, len(blob), rep.EncodedSize)

	raw, _ := base64.StdEncoding.DecodeString(blob)
	raw[0] ^= 0xFF
	rep, err = envelope.Inspect(base64.StdEncoding.EncodeToString(raw))
	require.NoError(t, err)
	assert.False(t, rep.DigestValid)

	_, err = envelope.Inspect("***")
	assert.ErrorIs(t, err, vaulterr.ErrFormat)
}
