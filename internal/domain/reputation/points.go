package reputation

import (
	"fmt"

	"github.com/okian/headhunt/internal/domain/proposal"
)

// Table maps a transition kind to the points it awards. Kinds missing from
// the table award nothing.
type Table map[proposal.Kind]int64

// DefaultTable returns the stock point values.
func DefaultTable() Table {
	return Table{
		proposal.KindSubmitted: 10,
		proposal.KindApproved:  50,
		proposal.KindHired:     150,
	}
}

// Points returns the award for kind.
func (t Table) Points(kind proposal.Kind) int64 {
	return t[kind]
}

// TableFromConfig builds a table from a kind-name keyed map, rejecting
// unknown kinds and negative values.
func TableFromConfig(values map[string]int64) (Table, error) {
	t := Table{}
	for name, v := range values {
		kind := proposal.Kind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("unknown transition kind %q", name)
		}
		if v < 0 {
			return nil, fmt.Errorf("points for %q must not be negative", name)
		}
		t[kind] = v
	}
	return t, nil
}
