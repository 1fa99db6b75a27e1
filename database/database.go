// Package database implements the reader side of the location database:
// opening and validating a database file, memory-mapped table access,
// longest-prefix-match lookup, network enumeration and signature
// verification.
package database

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tevino/abool"

	"github.com/locdb/locdb/format"
	"github.com/locdb/locdb/pool"
)

// Errors.
var (
	ErrNoSignature  = errors.New("database is not signed")
	ErrBadSignature = errors.New("database signature verification failed")
)

// DefaultPath is the default database location.
const DefaultPath = "/var/lib/location/database.db"

// Database is an opened location database. It is immutable and safe for
// concurrent use by multiple goroutines. All returned values copy their
// data out of the backing store, so only the Database itself must not be
// used after Close.
type Database struct {
	file   *os.File // duplicated handle, nil with the heap fallback
	data   []byte
	mapped bool
	closed abool.AtomicBool

	version uint16
	header  *format.Header

	vendor      string
	description string
	license     string

	pool      pool.Pool
	asData    []byte
	countries []byte
	networks  []byte
	tree      []byte
}

// Open opens and validates the database at the given path.
func Open(path string) (*Database, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	defer f.Close() // the database works on its own duplicated handle

	return FromFile(f)
}

// FromFile opens a database from the given file. The caller may close
// its copy independently: on unix the handle is duplicated for the
// mapping, elsewhere the file is read onto the heap.
func FromFile(f *os.File) (*Database, error) {
	db := &Database{}

	// Map the file. The caller's handle is duplicated first so the
	// mapping has its own descriptor. If mapping is not possible, fall
	// back to reading the file onto the heap.
	if err := db.mapOrRead(f); err != nil {
		return nil, err
	}

	if err := db.parse(); err != nil {
		db.release()
		return nil, err
	}
	return db, nil
}

func (db *Database) parse() error {
	version, err := format.ParseMagic(db.data)
	if err != nil {
		return err
	}
	if version != format.Version1 {
		return fmt.Errorf("%w: version %d", format.ErrUnsupportedVersion, version)
	}
	db.version = version

	hdr, err := format.ParseHeader(db.data)
	if err != nil {
		return err
	}
	if err := hdr.CheckSections(uint64(len(db.data))); err != nil {
		return err
	}
	db.header = hdr

	// Section views.
	db.pool = pool.New(db.data[hdr.PoolOff : hdr.PoolOff+hdr.PoolLen])
	db.asData = db.data[hdr.ASOff : hdr.ASOff+hdr.ASLen]
	db.countries = db.data[hdr.CountriesOff : hdr.CountriesOff+hdr.CountriesLen]
	db.networks = db.data[hdr.NetworksOff : hdr.NetworksOff+hdr.NetworksLen]
	db.tree = db.data[hdr.TreeOff : hdr.TreeOff+hdr.TreeLen]

	// Resolve header strings now so metadata access cannot fail later.
	if db.vendor, err = db.pool.Get(hdr.VendorOff); err != nil {
		return err
	}
	if db.description, err = db.pool.Get(hdr.DescriptionOff); err != nil {
		return err
	}
	if db.license, err = db.pool.Get(hdr.LicenseOff); err != nil {
		return err
	}

	if err := db.checkTableOrder(); err != nil {
		return err
	}
	return nil
}

// checkTableOrder checks that the AS and country tables are sorted, as
// the binary searches depend on it.
func (db *Database) checkTableOrder() error {
	for i := format.ASRecordSize; i < len(db.asData); i += format.ASRecordSize {
		prev := format.GetAS(db.asData[i-format.ASRecordSize:])
		cur := format.GetAS(db.asData[i:])
		if prev.ASN >= cur.ASN {
			return fmt.Errorf("%w: AS table is not sorted", format.ErrInvalidData)
		}
	}
	for i := format.CountryRecordSize; i < len(db.countries); i += format.CountryRecordSize {
		prev := format.GetCountry(db.countries[i-format.CountryRecordSize:])
		cur := format.GetCountry(db.countries[i:])
		if string(prev.Code[:]) >= string(cur.Code[:]) {
			return fmt.Errorf("%w: country table is not sorted", format.ErrInvalidData)
		}
	}
	return nil
}

// Version returns the database format version.
func (db *Database) Version() uint16 {
	return db.version
}

// Vendor returns the database vendor string.
func (db *Database) Vendor() string {
	return db.vendor
}

// Description returns the database description.
func (db *Database) Description() string {
	return db.description
}

// License returns the database license.
func (db *Database) License() string {
	return db.license
}

// CreatedAt returns the database creation time.
func (db *Database) CreatedAt() time.Time {
	return time.Unix(int64(db.header.CreatedAt), 0).UTC()
}

// Close releases the mapping and the duplicated file handle. Values
// returned by lookups stay valid, as they do not reference the mapping.
func (db *Database) Close() error {
	// Only release once, further calls are no-ops.
	if !db.closed.SetToIf(false, true) {
		return nil
	}
	return db.release()
}

func (db *Database) release() error {
	var mapErr error
	if db.mapped {
		mapErr = unmapFile(db.data)
		db.mapped = false
	}
	db.data = nil

	if db.file != nil {
		closeErr := db.file.Close()
		db.file = nil
		if mapErr == nil {
			mapErr = closeErr
		}
	}
	return mapErr
}
