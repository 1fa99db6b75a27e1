// Package pool implements the deduplicating string pool of the database.
// Strings are stored NUL-terminated and addressed by 32-bit offsets;
// offset 0 is always the empty string.
package pool

import (
	"bytes"
	"fmt"
	"math"

	"github.com/locdb/locdb/format"
)

// Pool is a read-only view over a serialised string pool.
type Pool struct {
	data []byte
}

// New returns a pool view over the given data.
func New(data []byte) Pool {
	return Pool{data: data}
}

// Get returns the string starting at the given offset, bounded by the
// next NUL. An offset outside the pool or a missing terminator fails
// with ErrInvalidData.
func (p Pool) Get(off uint32) (string, error) {
	if off == 0 && len(p.data) == 0 {
		return "", nil
	}
	if int64(off) >= int64(len(p.data)) {
		return "", fmt.Errorf("%w: string pool offset %d out of range", format.ErrInvalidData, off)
	}
	end := bytes.IndexByte(p.data[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("%w: string pool offset %d has no terminator", format.ErrInvalidData, off)
	}
	return string(p.data[off : int(off)+end]), nil
}

// Arena is a writer-side pool that grows a private buffer and
// deduplicates exact matches.
type Arena struct {
	buf   []byte
	index map[string]uint32
}

// NewArena returns an empty arena. It holds a single NUL so that
// offset 0 resolves to the empty string.
func NewArena() *Arena {
	return &Arena{
		buf:   []byte{0},
		index: map[string]uint32{"": 0},
	}
}

// Add appends the string to the arena and returns its offset. A string
// already present is returned at its prior offset.
func (a *Arena) Add(s string) (uint32, error) {
	if off, ok := a.index[s]; ok {
		return off, nil
	}
	if int64(len(a.buf))+int64(len(s))+1 > math.MaxUint32 {
		return 0, fmt.Errorf("%w: string pool exceeds offset space", format.ErrInvalidArgument)
	}
	off := uint32(len(a.buf))
	a.buf = append(a.buf, s...)
	a.buf = append(a.buf, 0)
	a.index[s] = off
	return off, nil
}

// Bytes returns the serialised pool.
func (a *Arena) Bytes() []byte {
	return a.buf
}
