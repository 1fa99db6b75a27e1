package database

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"fmt"

	"github.com/locdb/locdb/format"
)

// Verify checks the database signatures against the given PEM-encoded
// Ed25519 public key. It succeeds when at least one of the two
// signatures verifies, returns ErrNoSignature when the database is
// unsigned and ErrBadSignature when no signature matches.
func (db *Database) Verify(pubkeyPEM []byte) error {
	sigs := [][]byte{db.header.Signature1, db.header.Signature2}
	if len(sigs[0]) == 0 && len(sigs[1]) == 0 {
		return ErrNoSignature
	}

	pubKey, err := ParsePublicKey(pubkeyPEM)
	if err != nil {
		return err
	}

	digest, err := format.SignatureDigest(db.data)
	if err != nil {
		return err
	}

	for _, sig := range sigs {
		if len(sig) == 0 {
			continue
		}
		if ed25519.Verify(pubKey, digest, sig) {
			return nil
		}
	}
	return ErrBadSignature
}

// ParsePublicKey parses a PEM-encoded Ed25519 public key.
func ParsePublicKey(pemData []byte) (ed25519.PublicKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in public key", format.ErrInvalidArgument)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse public key: %v", format.ErrInvalidArgument, err)
	}
	pubKey, ok := key.(ed25519.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: public key is not an Ed25519 key", format.ErrInvalidArgument)
	}
	return pubKey, nil
}
