package database

import (
	"fmt"
	"sort"

	"github.com/locdb/locdb/format"
)

// AS is an autonomous system record.
type AS struct {
	Number uint32
	Name   string
}

// String returns the AS in the common "AS<number> - <name>" form.
func (a AS) String() string {
	if a.Name == "" {
		return fmt.Sprintf("AS%d", a.Number)
	}
	return fmt.Sprintf("AS%d - %s", a.Number, a.Name)
}

// ASCount returns the number of AS records.
func (db *Database) ASCount() int {
	return len(db.asData) / format.ASRecordSize
}

func (db *Database) asAt(i int) format.RawAS {
	return format.GetAS(db.asData[i*format.ASRecordSize:])
}

// GetAS looks up an autonomous system by number.
func (db *Database) GetAS(asn uint32) (AS, bool, error) {
	n := db.ASCount()
	i := sort.Search(n, func(i int) bool {
		return db.asAt(i).ASN >= asn
	})
	if i >= n {
		return AS{}, false, nil
	}
	raw := db.asAt(i)
	if raw.ASN != asn {
		return AS{}, false, nil
	}

	name, err := db.pool.Get(raw.NameOff)
	if err != nil {
		return AS{}, false, err
	}
	return AS{Number: raw.ASN, Name: name}, true, nil
}
