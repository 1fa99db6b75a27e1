package database

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locdb/locdb/format"
	"github.com/locdb/locdb/writer"
)

// makeKeyPair generates an Ed25519 key pair in PEM encoding.
func makeKeyPair(t *testing.T) (privPEM, pubPEM []byte) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	require.NoError(t, err)
	privPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})

	pubDER, err := x509.MarshalPKIXPublicKey(pub)
	require.NoError(t, err)
	pubPEM = pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})

	return privPEM, pubPEM
}

func TestVerify(t *testing.T) {
	t.Parallel()

	privPEM, pubPEM := makeKeyPair(t)
	_, otherPubPEM := makeKeyPair(t)

	w, err := writer.New(privPEM, nil)
	require.NoError(t, err)
	require.NoError(t, w.SetVendor("Test Vendor"))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))

	db := openWritten(t, w)

	assert.NoError(t, db.Verify(pubPEM))
	assert.ErrorIs(t, db.Verify(otherPubPEM), ErrBadSignature)
	require.NoError(t, db.Close())
}

func TestVerifyDetectsMutation(t *testing.T) {
	t.Parallel()

	privPEM, pubPEM := makeKeyPair(t)

	w, err := writer.New(privPEM, nil)
	require.NoError(t, err)
	require.NoError(t, w.SetVendor("Test Vendor"))
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))

	db := openWritten(t, w)
	require.NoError(t, db.Verify(pubPEM))

	// Flip one byte in the string pool body on disk. The pool is the
	// first section after the header.
	path := writeMutated(t, db, format.MagicSize+format.HeaderSize+1)
	require.NoError(t, db.Close())

	mutated, err := Open(path)
	require.NoError(t, err)
	defer func() {
		_ = mutated.Close()
	}()
	assert.ErrorIs(t, mutated.Verify(pubPEM), ErrBadSignature)
}

func TestVerifyUnsigned(t *testing.T) {
	t.Parallel()

	_, pubPEM := makeKeyPair(t)

	w, err := writer.New(nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.AddNetwork(netip.MustParsePrefix("10.0.0.0/8"), "US", 64512, 0))

	db := openWritten(t, w)
	assert.ErrorIs(t, db.Verify(pubPEM), ErrNoSignature)
}

func TestVerifyBadKey(t *testing.T) {
	t.Parallel()

	privPEM, _ := makeKeyPair(t)

	w, err := writer.New(privPEM, nil)
	require.NoError(t, err)

	db := openWritten(t, w)
	assert.ErrorIs(t, db.Verify([]byte("not a pem block")), format.ErrInvalidArgument)
}

// writeMutated writes a copy of the opened database with the byte at
// the given offset flipped and returns its path.
func writeMutated(t *testing.T, db *Database, offset int) string {
	t.Helper()

	data := make([]byte, len(db.data))
	copy(data, db.data)
	require.Less(t, offset, len(data))
	data[offset] ^= 0xa5

	return writeTempFile(t, data)
}
