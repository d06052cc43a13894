package rom

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/retroenv/romsync/internal/saver"
	"github.com/retroenv/romsync/internal/tsa"
)

var errNoResolver = errors.New("no resolver configured")

// Verifier compares and merges ROMs for a saver manager.
type Verifier struct {
	resolve saver.Resolver[*ROM]
}

// NewVerifier returns a verifier that asks resolve which ROM to keep when the
// image diverged.
func NewVerifier(resolve saver.Resolver[*ROM]) *Verifier {
	return &Verifier{resolve: resolve}
}

// IsLike compares the tables of both ROMs by position. Names are ignored.
// Tables that are stored in a different order are considered different.
func (v *Verifier) IsLike(a, b *ROM) bool {
	if len(a.tables) != len(b.tables) {
		return false
	}
	for i, t := range a.tables {
		other := b.tables[i]
		if t.Offset != other.Offset {
			return false
		}
		if !bytes.Equal(t.Bytes(), other.Bytes()) {
			return false
		}
	}
	return true
}

// Resolution returns the ROM chosen by the resolver.
func (v *Verifier) Resolution(primary, secondary *ROM) (*ROM, error) {
	if v.resolve == nil {
		return nil, errNoResolver
	}
	chosen, err := v.resolve(primary, secondary)
	if err != nil {
		return nil, fmt.Errorf("resolving rom: %w", err)
	}
	return chosen, nil
}

// Apply returns a copy of primary with the tables of secondary.
func (v *Verifier) Apply(primary, secondary *ROM) (*ROM, error) {
	merged := primary.Copy()
	if err := merged.CopyFrom(secondary); err != nil {
		return nil, fmt.Errorf("applying rom: %w", err)
	}
	return merged, nil
}

// Mismatch describes a difference between two ROMs.
type Mismatch struct {
	Table  int // index of the table
	Offset int // offset of the table in the first ROM, -1 if it has none
	Block  int // index of the first differing block, -1 if the tables differ as a whole
}

// Compare returns the differences of both ROMs in table order, using the
// same positional comparison as IsLike.
func Compare(a, b *ROM) []Mismatch {
	var mismatches []Mismatch
	count := max(len(a.tables), len(b.tables))

	for i := range count {
		if i >= len(a.tables) || i >= len(b.tables) {
			offset := -1
			if i < len(a.tables) {
				offset = a.tables[i].Offset
			}
			mismatches = append(mismatches, Mismatch{Table: i, Offset: offset, Block: -1})
			continue
		}

		t, other := a.tables[i], b.tables[i]
		if t.Offset != other.Offset {
			mismatches = append(mismatches, Mismatch{Table: i, Offset: t.Offset, Block: -1})
			continue
		}
		for block := range tsa.BlockCount {
			if t.Block(block).Patterns != other.Block(block).Patterns {
				mismatches = append(mismatches, Mismatch{Table: i, Offset: t.Offset, Block: block})
				break
			}
		}
	}
	return mismatches
}
