//go:build unix

package database

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"

	"github.com/locdb/locdb/format"
)

// mapOrRead duplicates the file handle and memory-maps it read-only.
// If the backing object cannot be mapped, the whole file is read onto
// the heap instead, with identical semantics.
func (db *Database) mapOrRead(f *os.File) error {
	fd, err := unix.Dup(int(f.Fd()))
	if err != nil {
		return fmt.Errorf("duplicate database handle: %w", err)
	}
	dup := os.NewFile(uintptr(fd), f.Name())

	fi, err := dup.Stat()
	if err != nil {
		_ = dup.Close()
		return fmt.Errorf("stat database: %w", err)
	}
	size := fi.Size()
	if size == 0 {
		_ = dup.Close()
		return fmt.Errorf("%w: file is empty", format.ErrNotADatabase)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		// Not mappable, e.g. a pipe or an odd filesystem.
		buf := make([]byte, size)
		if _, rerr := io.ReadFull(io.NewSectionReader(dup, 0, size), buf); rerr != nil {
			_ = dup.Close()
			return fmt.Errorf("read database: %w", rerr)
		}
		_ = dup.Close()
		db.data = buf
		return nil
	}

	// Lookups jump around the tree, read-ahead does not help.
	_ = unix.Madvise(data, unix.MADV_RANDOM)

	db.file = dup
	db.data = data
	db.mapped = true
	return nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
