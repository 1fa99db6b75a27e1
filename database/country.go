package database

import (
	"fmt"
	"sort"
	"strings"

	"github.com/locdb/locdb/format"
)

// Country is a country record.
type Country struct {
	Code      string
	Continent string
	Name      string
}

// CountryCount returns the number of country records.
func (db *Database) CountryCount() int {
	return len(db.countries) / format.CountryRecordSize
}

func (db *Database) countryAt(i int) format.RawCountry {
	return format.GetCountry(db.countries[i*format.CountryRecordSize:])
}

// GetCountry looks up a country by its two-letter code. Special codes
// are accepted and carry no continent.
func (db *Database) GetCountry(code string) (Country, bool, error) {
	if !format.IsSpecialCountryCode(code) {
		if len(code) != 2 {
			return Country{}, false, fmt.Errorf("%w: country code %q must have two letters", format.ErrInvalidArgument, code)
		}
		for i := 0; i < 2; i++ {
			if code[i] < 'A' || code[i] > 'Z' {
				return Country{}, false, fmt.Errorf("%w: country code %q must be uppercase A-Z", format.ErrInvalidArgument, code)
			}
		}
	}

	n := db.CountryCount()
	i := sort.Search(n, func(i int) bool {
		raw := db.countryAt(i)
		return string(raw.Code[:]) >= code
	})
	if i >= n {
		return Country{}, false, nil
	}
	raw := db.countryAt(i)
	if string(raw.Code[:]) != code {
		return Country{}, false, nil
	}

	name, err := db.pool.Get(raw.NameOff)
	if err != nil {
		return Country{}, false, err
	}
	continent := trimCode(raw.Continent)
	if format.IsSpecialCountryCode(code) {
		continent = ""
	}
	return Country{
		Code:      code,
		Continent: continent,
		Name:      name,
	}, true, nil
}

// trimCode returns the two-byte code as a string, with zero bytes
// meaning "not set".
func trimCode(code [2]byte) string {
	return strings.TrimRight(string(code[:]), "\x00")
}
