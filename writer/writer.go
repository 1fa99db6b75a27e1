// Package writer builds location database files: it collects metadata,
// AS, country and network records, canonicalises the network tree and
// serialises everything into the on-disk format, optionally signed.
package writer

import (
	"bytes"
	"cmp"
	"crypto/ed25519"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"slices"
	"time"

	"github.com/locdb/locdb/addr"
	"github.com/locdb/locdb/format"
	"github.com/locdb/locdb/pool"
)

// Errors.
var (
	ErrDuplicate = errors.New("duplicate record")
	ErrSealed    = errors.New("writer is sealed")
)

type state uint8

const (
	stateEmpty state = iota
	statePopulated
	stateSealed
)

type asEntry struct {
	asn  uint32
	name string
}

type countryEntry struct {
	code      [2]byte
	continent [2]byte
	name      string
}

type networkEntry struct {
	addr [16]byte
	bits int
	leaf leafData
}

// Writer builds a database image. It is not safe for concurrent use.
type Writer struct {
	state state

	vendor      string
	description string
	license     string

	privateKeys [2]ed25519.PrivateKey

	as        []asEntry
	countries []countryEntry
	networks  []networkEntry
}

// New creates an empty writer. Each private key may be nil for unsigned
// output; present keys must be PEM-encoded PKCS#8 Ed25519 keys.
func New(privateKeyPEM1, privateKeyPEM2 []byte) (*Writer, error) {
	w := &Writer{}
	for i, pemData := range [][]byte{privateKeyPEM1, privateKeyPEM2} {
		if len(pemData) == 0 {
			continue
		}
		key, err := ParsePrivateKey(pemData)
		if err != nil {
			return nil, err
		}
		w.privateKeys[i] = key
	}
	return w, nil
}

// ParsePrivateKey parses a PEM-encoded PKCS#8 Ed25519 private key.
func ParsePrivateKey(pemData []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(pemData)
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block in private key", format.ErrInvalidArgument)
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: parse private key: %v", format.ErrInvalidArgument, err)
	}
	privKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: private key is not an Ed25519 key", format.ErrInvalidArgument)
	}
	return privKey, nil
}

func (w *Writer) populate() error {
	if w.state == stateSealed {
		return ErrSealed
	}
	w.state = statePopulated
	return nil
}

// SetVendor sets the database vendor string.
func (w *Writer) SetVendor(vendor string) error {
	if err := w.populate(); err != nil {
		return err
	}
	w.vendor = vendor
	return nil
}

// SetDescription sets the database description.
func (w *Writer) SetDescription(description string) error {
	if err := w.populate(); err != nil {
		return err
	}
	w.description = description
	return nil
}

// SetLicense sets the database license.
func (w *Writer) SetLicense(license string) error {
	if err := w.populate(); err != nil {
		return err
	}
	w.license = license
	return nil
}

// AddAS adds an autonomous system record.
func (w *Writer) AddAS(asn uint32, name string) error {
	if err := w.populate(); err != nil {
		return err
	}
	if asn == 0 {
		return fmt.Errorf("%w: ASN must not be zero", format.ErrInvalidArgument)
	}
	w.as = append(w.as, asEntry{asn: asn, name: name})
	return nil
}

// AddCountry adds a country record. The continent may be empty, which
// is the norm for the special codes.
func (w *Writer) AddCountry(code, continent, name string) error {
	if err := w.populate(); err != nil {
		return err
	}
	if err := format.CheckCountryCode(code); err != nil {
		return err
	}
	entry := countryEntry{name: name}
	copy(entry.code[:], code)
	if continent != "" {
		if len(continent) != 2 || continent[0] < 'A' || continent[0] > 'Z' || continent[1] < 'A' || continent[1] > 'Z' {
			return fmt.Errorf("%w: continent code %q must be two uppercase letters", format.ErrInvalidArgument, continent)
		}
		copy(entry.continent[:], continent)
	}
	w.countries = append(w.countries, entry)
	return nil
}

// AddNetwork adds a network with its attributes. The country may be
// empty; flags must be a subset of the defined flag set.
func (w *Writer) AddNetwork(prefix netip.Prefix, country string, asn uint32, flags format.Flag) error {
	if err := w.populate(); err != nil {
		return err
	}
	if !prefix.IsValid() {
		return fmt.Errorf("%w: invalid network prefix", format.ErrInvalidArgument)
	}
	if flags&^format.FlagsAll != 0 {
		return fmt.Errorf("%w: unknown flags %#x", format.ErrInvalidArgument, uint16(flags))
	}

	entry := networkEntry{
		leaf: leafData{flags: flags, asn: asn},
	}
	if country != "" {
		if err := format.CheckCountryCode(country); err != nil {
			return err
		}
		copy(entry.leaf.country[:], country)
	}

	bits := prefix.Bits()
	if prefix.Addr().Is4() {
		bits += 96
	}
	entry.addr = addr.First(prefix).As16()
	entry.bits = bits

	w.networks = append(w.networks, entry)
	return nil
}

// Write canonicalises the collected records and writes the database
// image to the sink. Passing format.VersionUnset selects the latest
// supported version. A failed write leaves the writer usable for
// another attempt.
func (w *Writer) Write(sink io.Writer, version uint16) error {
	if version == format.VersionUnset {
		version = format.VersionLatest
	}
	if version != format.Version1 {
		return fmt.Errorf("%w: cannot write version %d", format.ErrUnsupportedVersion, version)
	}

	image, err := w.build(version)
	if err != nil {
		return err
	}
	if _, err := sink.Write(image); err != nil {
		return fmt.Errorf("write database: %w", err)
	}

	w.state = stateSealed
	return nil
}

func (w *Writer) build(version uint16) ([]byte, error) {
	arena := pool.NewArena()
	hdr := &format.Header{
		CreatedAt: uint64(time.Now().Unix()),
	}

	var err error
	if hdr.VendorOff, err = arena.Add(w.vendor); err != nil {
		return nil, err
	}
	if hdr.DescriptionOff, err = arena.Add(w.description); err != nil {
		return nil, err
	}
	if hdr.LicenseOff, err = arena.Add(w.license); err != nil {
		return nil, err
	}

	asData, err := w.buildAS(arena)
	if err != nil {
		return nil, err
	}
	countryData, err := w.buildCountries(arena)
	if err != nil {
		return nil, err
	}
	treeData, networkData := w.buildTree()

	// Section layout: header stub, pool, AS, networks, tree, countries.
	image := make([]byte, format.MagicSize+format.HeaderSize)
	appendSection := func(data []byte) (off, size uint32) {
		off = uint32(len(image))
		image = append(image, data...)
		return off, uint32(len(data))
	}
	hdr.PoolOff, hdr.PoolLen = appendSection(arena.Bytes())
	hdr.ASOff, hdr.ASLen = appendSection(asData)
	hdr.NetworksOff, hdr.NetworksLen = appendSection(networkData)
	hdr.TreeOff, hdr.TreeLen = appendSection(treeData)
	hdr.CountriesOff, hdr.CountriesLen = appendSection(countryData)

	format.PutMagic(image, version)
	if err := hdr.PutHeader(image); err != nil {
		return nil, err
	}

	// The signatures cover the image with their own fields zeroed, so
	// they are computed on the finished layout and patched in last.
	if err := w.sign(hdr, image); err != nil {
		return nil, err
	}
	return image, nil
}

func (w *Writer) sign(hdr *format.Header, image []byte) error {
	if w.privateKeys[0] == nil && w.privateKeys[1] == nil {
		return nil
	}

	digest, err := format.SignatureDigest(image)
	if err != nil {
		return err
	}
	if w.privateKeys[0] != nil {
		hdr.Signature1 = ed25519.Sign(w.privateKeys[0], digest)
	}
	if w.privateKeys[1] != nil {
		hdr.Signature2 = ed25519.Sign(w.privateKeys[1], digest)
	}
	return hdr.PutHeader(image)
}

func (w *Writer) buildAS(arena *pool.Arena) ([]byte, error) {
	entries := slices.Clone(w.as)
	slices.SortFunc(entries, func(a, b asEntry) int {
		return cmp.Compare(a.asn, b.asn)
	})

	buf := make([]byte, len(entries)*format.ASRecordSize)
	for i, entry := range entries {
		if i > 0 && entries[i-1].asn == entry.asn {
			return nil, fmt.Errorf("%w: AS%d", ErrDuplicate, entry.asn)
		}
		nameOff, err := arena.Add(entry.name)
		if err != nil {
			return nil, err
		}
		format.PutAS(buf[i*format.ASRecordSize:], format.RawAS{
			ASN:     entry.asn,
			NameOff: nameOff,
		})
	}
	return buf, nil
}

func (w *Writer) buildCountries(arena *pool.Arena) ([]byte, error) {
	entries := slices.Clone(w.countries)
	slices.SortFunc(entries, func(a, b countryEntry) int {
		return bytes.Compare(a.code[:], b.code[:])
	})

	buf := make([]byte, len(entries)*format.CountryRecordSize)
	for i, entry := range entries {
		if i > 0 && entries[i-1].code == entry.code {
			return nil, fmt.Errorf("%w: country %s", ErrDuplicate, entry.code[:])
		}
		nameOff, err := arena.Add(entry.name)
		if err != nil {
			return nil, err
		}
		format.PutCountry(buf[i*format.CountryRecordSize:], format.RawCountry{
			Code:      entry.code,
			Continent: entry.continent,
			NameOff:   nameOff,
		})
	}
	return buf, nil
}

func (w *Writer) buildTree() (treeData, networkData []byte) {
	// Insert supernets first so that enclosed networks with identical
	// payloads deduplicate regardless of the order they were added in.
	entries := slices.Clone(w.networks)
	slices.SortFunc(entries, func(a, b networkEntry) int {
		if a.bits != b.bits {
			return a.bits - b.bits
		}
		return bytes.Compare(a.addr[:], b.addr[:])
	})

	tree := newBuildTree()
	for _, entry := range entries {
		tree.insert(entry.addr, entry.bits, entry.leaf)
	}
	tree.canonicalize()

	nodes, leaves := tree.serialize()
	treeData = make([]byte, len(nodes)*format.TreeNodeSize)
	for i, node := range nodes {
		format.PutTreeNode(treeData[i*format.TreeNodeSize:], node)
	}
	networkData = make([]byte, len(leaves)*format.NetworkRecordSize)
	for i, leaf := range leaves {
		format.PutNetwork(networkData[i*format.NetworkRecordSize:], leaf)
	}
	return treeData, networkData
}
