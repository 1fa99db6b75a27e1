package format

import (
	"bytes"

	"github.com/zeebo/blake3"
)

// SignatureDigest computes the digest that database signatures cover:
// a BLAKE3 hash over the whole file with the signature lengths and
// bodies zeroed.
func SignatureDigest(data []byte) ([]byte, error) {
	head := bytes.Clone(data[:min(len(data), MagicSize+HeaderSize)])
	if err := ZeroSignatureFields(head); err != nil {
		return nil, err
	}

	h := blake3.New()
	_, _ = h.Write(head) // blake3 never fails on Write
	_, _ = h.Write(data[MagicSize+HeaderSize:])
	return h.Sum(nil), nil
}
