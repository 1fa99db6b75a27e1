// Package format defines the on-disk layout of the location database:
// the magic, the version 1 header, the fixed-size table records and the
// big-endian codec shared by the reader and the writer.
package format

import (
	"bytes"
	"errors"
	"fmt"
)

// Magic:
// --- 9B
// - "LOCDBXX" [7]byte
// - Version (uint16)
// Header V1:
// --- 60B
// - Vendor Offset (uint32) [into string pool]
// - Description Offset (uint32)
// - License Offset (uint32)
// - Created At (uint64) [unix seconds]
// - Pool Offset/Length (2x uint32)
// - AS Offset/Length (2x uint32)
// - Network Tree Offset/Length (2x uint32)
// - Networks Offset/Length (2x uint32)
// - Countries Offset/Length (2x uint32)
// --- 2x 2050B
// - Signature Length (uint16)
// - Signature [2048]byte
//
// All offsets are from the start of the file.

// Errors.
var (
	ErrNotADatabase      = errors.New("not a location database")
	ErrUnsupportedVersion = errors.New("unsupported database version")
	ErrInvalidData       = errors.New("invalid database data")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// Versions.
const (
	// VersionUnset selects the latest supported version.
	VersionUnset = 0

	// Version1 is the current database format version.
	Version1 = 1

	// VersionLatest is the most recent version this implementation writes.
	VersionLatest = Version1
)

// Sizes and sentinels.
const (
	MagicSize  = 9
	HeaderSize = 60 + 2*(2+SignatureMaxSize)

	ASRecordSize      = 8
	CountryRecordSize = 8
	NetworkRecordSize = 8
	TreeNodeSize      = 12

	SignatureMaxSize = 2048

	// NullIndex marks an absent tree child or network index.
	NullIndex = 0xFFFFFFFF
)

// magicBytes are the first seven bytes of every database file.
var magicBytes = []byte("LOCDBXX")

// Header field positions, relative to the header start (after the magic).
const (
	posVendor       = 0
	posDescription  = 4
	posLicense      = 8
	posCreatedAt    = 12
	posPool         = 20
	posAS           = 28
	posTree         = 36
	posNetworks     = 44
	posCountries    = 52
	posSignature1   = 60
	posSignature2   = 60 + 2 + SignatureMaxSize
)

// Flag is a network attribute flag.
type Flag uint16

// Network flags.
const (
	FlagAnonymousProxy    Flag = 0x1
	FlagSatelliteProvider Flag = 0x2
	FlagAnycast           Flag = 0x4
	FlagDrop              Flag = 0x8

	// FlagsAll is the set of all defined flags.
	FlagsAll = FlagAnonymousProxy | FlagSatelliteProvider | FlagAnycast | FlagDrop
)

var flagNames = []struct {
	flag Flag
	name string
}{
	{FlagAnonymousProxy, "anonymous-proxy"},
	{FlagSatelliteProvider, "satellite-provider"},
	{FlagAnycast, "anycast"},
	{FlagDrop, "drop"},
}

// String returns the flag set as a comma separated list of flag names.
func (f Flag) String() string {
	var b []byte
	for _, fn := range flagNames {
		if f&fn.flag == fn.flag {
			if len(b) > 0 {
				b = append(b, ',')
			}
			b = append(b, fn.name...)
		}
	}
	return string(b)
}

// ParseFlag parses a single flag name.
func ParseFlag(name string) (Flag, error) {
	for _, fn := range flagNames {
		if fn.name == name {
			return fn.flag, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown flag %q", ErrInvalidArgument, name)
}

// Special country codes reserved by the database.
const (
	SpecialCountryAnonymousProxy    = "A1"
	SpecialCountrySatelliteProvider = "A2"
	SpecialCountryAnycast           = "A3"
	SpecialCountryDrop              = "XD"
)

// IsSpecialCountryCode reports whether the given code is one of the
// reserved special codes.
func IsSpecialCountryCode(code string) bool {
	switch code {
	case SpecialCountryAnonymousProxy,
		SpecialCountrySatelliteProvider,
		SpecialCountryAnycast,
		SpecialCountryDrop:
		return true
	default:
		return false
	}
}

// CheckCountryCode checks that the given code is a two-letter uppercase
// code, a reserved special code, and not an unreserved X-code.
func CheckCountryCode(code string) error {
	// The reserved codes skip the alphabetic and X-range rules.
	if IsSpecialCountryCode(code) {
		return nil
	}
	if len(code) != 2 {
		return fmt.Errorf("%w: country code %q must have two letters", ErrInvalidArgument, code)
	}
	for i := 0; i < 2; i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return fmt.Errorf("%w: country code %q must be uppercase A-Z", ErrInvalidArgument, code)
		}
	}
	if code[0] == 'X' {
		return fmt.Errorf("%w: country code %q is in the reserved X range", ErrInvalidArgument, code)
	}
	return nil
}

// PutMagic writes the magic and version to the first MagicSize bytes.
func PutMagic(dst []byte, version uint16) {
	copy(dst[:7], magicBytes)
	PutUint16(dst[7:9], version)
}

// ParseMagic checks the magic and returns the declared version.
func ParseMagic(data []byte) (version uint16, err error) {
	if len(data) < MagicSize {
		return 0, fmt.Errorf("%w: file too short for magic", ErrNotADatabase)
	}
	if !bytes.Equal(data[:7], magicBytes) {
		return 0, ErrNotADatabase
	}
	return GetUint16(data[7:9]), nil
}

// Header is the parsed version 1 header.
type Header struct {
	VendorOff      uint32
	DescriptionOff uint32
	LicenseOff     uint32
	CreatedAt      uint64

	PoolOff      uint32
	PoolLen      uint32
	ASOff        uint32
	ASLen        uint32
	TreeOff      uint32
	TreeLen      uint32
	NetworksOff  uint32
	NetworksLen  uint32
	CountriesOff uint32
	CountriesLen uint32

	Signature1 []byte
	Signature2 []byte
}

// ParseHeader parses a version 1 header from the given file data.
func ParseHeader(data []byte) (*Header, error) {
	if len(data) < MagicSize+HeaderSize {
		return nil, fmt.Errorf("%w: file too short for header", ErrInvalidData)
	}
	h := data[MagicSize : MagicSize+HeaderSize]

	hdr := &Header{
		VendorOff:      GetUint32(h[posVendor:]),
		DescriptionOff: GetUint32(h[posDescription:]),
		LicenseOff:     GetUint32(h[posLicense:]),
		CreatedAt:      GetUint64(h[posCreatedAt:]),
		PoolOff:        GetUint32(h[posPool:]),
		PoolLen:        GetUint32(h[posPool+4:]),
		ASOff:          GetUint32(h[posAS:]),
		ASLen:          GetUint32(h[posAS+4:]),
		TreeOff:        GetUint32(h[posTree:]),
		TreeLen:        GetUint32(h[posTree+4:]),
		NetworksOff:    GetUint32(h[posNetworks:]),
		NetworksLen:    GetUint32(h[posNetworks+4:]),
		CountriesOff:   GetUint32(h[posCountries:]),
		CountriesLen:   GetUint32(h[posCountries+4:]),
	}

	sig1Len := GetUint16(h[posSignature1:])
	sig2Len := GetUint16(h[posSignature2:])
	if sig1Len > SignatureMaxSize || sig2Len > SignatureMaxSize {
		return nil, fmt.Errorf("%w: signature length out of bounds", ErrInvalidData)
	}
	if sig1Len > 0 {
		hdr.Signature1 = bytes.Clone(h[posSignature1+2 : posSignature1+2+int(sig1Len)])
	}
	if sig2Len > 0 {
		hdr.Signature2 = bytes.Clone(h[posSignature2+2 : posSignature2+2+int(sig2Len)])
	}

	return hdr, nil
}

// PutHeader writes the header to the header area of the given file data.
func (hdr *Header) PutHeader(data []byte) error {
	if len(data) < MagicSize+HeaderSize {
		return fmt.Errorf("%w: buffer too short for header", ErrInvalidArgument)
	}
	if len(hdr.Signature1) > SignatureMaxSize || len(hdr.Signature2) > SignatureMaxSize {
		return fmt.Errorf("%w: signature exceeds %d bytes", ErrInvalidArgument, SignatureMaxSize)
	}
	h := data[MagicSize : MagicSize+HeaderSize]

	PutUint32(h[posVendor:], hdr.VendorOff)
	PutUint32(h[posDescription:], hdr.DescriptionOff)
	PutUint32(h[posLicense:], hdr.LicenseOff)
	PutUint64(h[posCreatedAt:], hdr.CreatedAt)
	PutUint32(h[posPool:], hdr.PoolOff)
	PutUint32(h[posPool+4:], hdr.PoolLen)
	PutUint32(h[posAS:], hdr.ASOff)
	PutUint32(h[posAS+4:], hdr.ASLen)
	PutUint32(h[posTree:], hdr.TreeOff)
	PutUint32(h[posTree+4:], hdr.TreeLen)
	PutUint32(h[posNetworks:], hdr.NetworksOff)
	PutUint32(h[posNetworks+4:], hdr.NetworksLen)
	PutUint32(h[posCountries:], hdr.CountriesOff)
	PutUint32(h[posCountries+4:], hdr.CountriesLen)

	PutUint16(h[posSignature1:], uint16(len(hdr.Signature1)))
	clear(h[posSignature1+2 : posSignature1+2+SignatureMaxSize])
	copy(h[posSignature1+2:], hdr.Signature1)
	PutUint16(h[posSignature2:], uint16(len(hdr.Signature2)))
	clear(h[posSignature2+2 : posSignature2+2+SignatureMaxSize])
	copy(h[posSignature2+2:], hdr.Signature2)

	return nil
}

// ZeroSignatureFields zeroes both signature lengths and bodies in the
// given file data. The signature digest is computed over the file with
// these fields zeroed, so signer and verifier must share this exact
// transformation.
func ZeroSignatureFields(data []byte) error {
	if len(data) < MagicSize+HeaderSize {
		return fmt.Errorf("%w: file too short for header", ErrInvalidData)
	}
	h := data[MagicSize : MagicSize+HeaderSize]
	clear(h[posSignature1 : posSignature1+2+SignatureMaxSize])
	clear(h[posSignature2 : posSignature2+2+SignatureMaxSize])
	return nil
}

// section is a named byte range used for bounds checking.
type section struct {
	name       string
	off, size  uint64
	recordSize uint64
}

// CheckSections checks that all declared sections lie within the file,
// are multiples of their record size and do not overlap each other or
// the header.
func (hdr *Header) CheckSections(fileSize uint64) error {
	sections := []section{
		{"header", 0, MagicSize + HeaderSize, 1},
		{"pool", uint64(hdr.PoolOff), uint64(hdr.PoolLen), 1},
		{"as", uint64(hdr.ASOff), uint64(hdr.ASLen), ASRecordSize},
		{"network tree", uint64(hdr.TreeOff), uint64(hdr.TreeLen), TreeNodeSize},
		{"networks", uint64(hdr.NetworksOff), uint64(hdr.NetworksLen), NetworkRecordSize},
		{"countries", uint64(hdr.CountriesOff), uint64(hdr.CountriesLen), CountryRecordSize},
	}

	for i, s := range sections {
		if s.size%s.recordSize != 0 {
			return fmt.Errorf("%w: %s section size %d is not a multiple of %d", ErrInvalidData, s.name, s.size, s.recordSize)
		}
		if s.off+s.size > fileSize {
			return fmt.Errorf("%w: %s section exceeds file size", ErrInvalidData, s.name)
		}
		for _, t := range sections[:i] {
			if s.size == 0 || t.size == 0 {
				continue
			}
			if s.off < t.off+t.size && t.off < s.off+s.size {
				return fmt.Errorf("%w: %s section overlaps %s section", ErrInvalidData, s.name, t.name)
			}
		}
	}
	return nil
}

// RawAS is an AS table record.
type RawAS struct {
	ASN     uint32
	NameOff uint32
}

// GetAS parses an AS record.
func GetAS(b []byte) RawAS {
	return RawAS{
		ASN:     GetUint32(b[0:4]),
		NameOff: GetUint32(b[4:8]),
	}
}

// PutAS writes an AS record.
func PutAS(dst []byte, r RawAS) {
	PutUint32(dst[0:4], r.ASN)
	PutUint32(dst[4:8], r.NameOff)
}

// RawCountry is a country table record.
type RawCountry struct {
	Code      [2]byte
	Continent [2]byte
	NameOff   uint32
}

// GetCountry parses a country record.
func GetCountry(b []byte) RawCountry {
	return RawCountry{
		Code:      [2]byte(b[0:2]),
		Continent: [2]byte(b[2:4]),
		NameOff:   GetUint32(b[4:8]),
	}
}

// PutCountry writes a country record.
func PutCountry(dst []byte, r RawCountry) {
	copy(dst[0:2], r.Code[:])
	copy(dst[2:4], r.Continent[:])
	PutUint32(dst[4:8], r.NameOff)
}

// RawNetwork is a network-leaf record.
type RawNetwork struct {
	Country [2]byte
	Flags   Flag
	ASN     uint32
}

// GetNetwork parses a network-leaf record.
func GetNetwork(b []byte) RawNetwork {
	return RawNetwork{
		Country: [2]byte(b[0:2]),
		Flags:   Flag(GetUint16(b[2:4])),
		ASN:     GetUint32(b[4:8]),
	}
}

// PutNetwork writes a network-leaf record.
func PutNetwork(dst []byte, r RawNetwork) {
	copy(dst[0:2], r.Country[:])
	PutUint16(dst[2:4], uint16(r.Flags))
	PutUint32(dst[4:8], r.ASN)
}

// RawTreeNode is a network tree node record.
type RawTreeNode struct {
	Zero         uint32
	One          uint32
	NetworkIndex uint32
}

// GetTreeNode parses a tree node record.
func GetTreeNode(b []byte) RawTreeNode {
	return RawTreeNode{
		Zero:         GetUint32(b[0:4]),
		One:          GetUint32(b[4:8]),
		NetworkIndex: GetUint32(b[8:12]),
	}
}

// PutTreeNode writes a tree node record.
func PutTreeNode(dst []byte, r RawTreeNode) {
	PutUint32(dst[0:4], r.Zero)
	PutUint32(dst[4:8], r.One)
	PutUint32(dst[8:12], r.NetworkIndex)
}
