//go:build !unix

package database

import (
	"fmt"
	"io"
	"os"

	"github.com/locdb/locdb/format"
)

// mapOrRead reads the whole file onto the heap. Platforms without a
// usable mmap share the reader semantics through this fallback.
func (db *Database) mapOrRead(f *os.File) error {
	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat database: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		return fmt.Errorf("%w: file is empty", format.ErrNotADatabase)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), buf); err != nil {
		return fmt.Errorf("read database: %w", err)
	}
	db.data = buf
	return nil
}

func unmapFile(_ []byte) error {
	return nil
}
