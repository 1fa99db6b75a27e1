// Package config defines the composition document: a declarative source
// file describing the metadata, autonomous systems, countries and
// networks a database is built from.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/locdb/locdb/format"
	"github.com/locdb/locdb/writer"
)

// Source is a composition document.
type Source struct {
	Vendor      string `json:"vendor,omitempty"      yaml:"vendor,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	License     string `json:"license,omitempty"     yaml:"license,omitempty"`

	// SigningKeys are paths to PEM-encoded PKCS#8 Ed25519 private keys.
	// Up to two keys are supported; none means unsigned output.
	SigningKeys []string `json:"signingKeys,omitempty" yaml:"signingKeys,omitempty"`

	AS        []ASSource      `json:"as,omitempty"        yaml:"as,omitempty"`
	Countries []CountrySource `json:"countries,omitempty" yaml:"countries,omitempty"`
	Networks  []NetworkSource `json:"networks,omitempty"  yaml:"networks,omitempty"`
}

// ASSource describes one autonomous system.
type ASSource struct {
	Number uint32 `json:"number" yaml:"number"`
	Name   string `json:"name"   yaml:"name"`
}

// CountrySource describes one country.
type CountrySource struct {
	Code      string `json:"code"                yaml:"code"`
	Continent string `json:"continent,omitempty" yaml:"continent,omitempty"`
	Name      string `json:"name"                yaml:"name"`
}

// NetworkSource describes one network.
type NetworkSource struct {
	Prefix  string   `json:"prefix"            yaml:"prefix"`
	Country string   `json:"country,omitempty" yaml:"country,omitempty"`
	ASN     uint32   `json:"asn,omitempty"     yaml:"asn,omitempty"`
	Flags   []string `json:"flags,omitempty"   yaml:"flags,omitempty"`
}

// LoadSource loads a composition document from the given file.
func LoadSource(filename string) (*Source, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read source file at %s: %w", filename, err)
	}

	source := &Source{}
	switch {
	case strings.HasSuffix(filename, ".json"):
		err = json.Unmarshal(data, source)
	case strings.HasSuffix(filename, ".yml"):
		fallthrough
	case strings.HasSuffix(filename, ".yaml"):
		err = yaml.Unmarshal(data, source)
	default:
		return nil, errors.New("unknown source file type")
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", filename, err)
	}

	return source, nil
}

// NewWriter feeds the document into a fresh database writer, loading
// the signing keys from disk.
func (s *Source) NewWriter() (*writer.Writer, error) {
	if len(s.SigningKeys) > 2 {
		return nil, fmt.Errorf("%w: at most two signing keys are supported", format.ErrInvalidArgument)
	}
	var keys [2][]byte
	for i, path := range s.SigningKeys {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read signing key at %s: %w", path, err)
		}
		keys[i] = data
	}

	w, err := writer.New(keys[0], keys[1])
	if err != nil {
		return nil, err
	}
	if err := s.apply(w); err != nil {
		return nil, err
	}
	return w, nil
}

func (s *Source) apply(w *writer.Writer) error {
	if err := w.SetVendor(s.Vendor); err != nil {
		return err
	}
	if err := w.SetDescription(s.Description); err != nil {
		return err
	}
	if err := w.SetLicense(s.License); err != nil {
		return err
	}

	for _, as := range s.AS {
		if err := w.AddAS(as.Number, as.Name); err != nil {
			return fmt.Errorf("as %d: %w", as.Number, err)
		}
	}
	for _, country := range s.Countries {
		if err := w.AddCountry(country.Code, country.Continent, country.Name); err != nil {
			return fmt.Errorf("country %q: %w", country.Code, err)
		}
	}
	for _, network := range s.Networks {
		prefix, err := netip.ParsePrefix(network.Prefix)
		if err != nil {
			return fmt.Errorf("%w: network %q is not a prefix", format.ErrInvalidArgument, network.Prefix)
		}
		var flags format.Flag
		for _, name := range network.Flags {
			flag, err := format.ParseFlag(name)
			if err != nil {
				return fmt.Errorf("network %q: %w", network.Prefix, err)
			}
			flags |= flag
		}
		if err := w.AddNetwork(prefix, network.Country, network.ASN, flags); err != nil {
			return fmt.Errorf("network %q: %w", network.Prefix, err)
		}
	}
	return nil
}
