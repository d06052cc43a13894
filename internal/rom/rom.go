// Package rom implements the ROM aggregate: the ordered tile square
// assemblies of one image that are saved together.
package rom

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/tsa"
)

var (
	// ErrForeignTable is returned when a table does not use the arena of the ROM.
	ErrForeignTable = errors.New("tile square assembly does not use the arena of the ROM")
	// ErrDuplicateOffset is returned when two tables are stored at the same offset.
	ErrDuplicateOffset = errors.New("tile square assemblies share an offset")
)

// Reader reads raw bytes from a binary image.
type Reader interface {
	ReadBytes(length, offset int) ([]byte, error)
}

// Writer writes raw bytes into a binary image.
type Writer interface {
	WriteBytes(data []byte, offset int) error
}

// Location describes where a tile square assembly is stored in the image and
// which pattern tables it is displayed with.
type Location struct {
	Name   string
	Offset int
	Top    tsa.PatternTable
	Bottom tsa.PatternTable
}

// ROM is the ordered collection of tile square assemblies of an image. All
// tables of a ROM store their blocks in the same arena.
type ROM struct {
	Name string

	arena  *tsa.Arena
	tables []*tsa.TileSquareAssembly
}

// New returns an empty ROM.
func New(name string) *ROM {
	return &ROM{
		Name:  name,
		arena: tsa.NewArena(),
	}
}

// FromTables returns a ROM of already decoded tables. All tables have to use
// arena and every table needs its own offset.
func FromTables(name string, arena *tsa.Arena, tables []*tsa.TileSquareAssembly) (*ROM, error) {
	offsets := make(map[int]struct{}, len(tables))
	for i, t := range tables {
		if t.Arena() != arena {
			return nil, errs.Errorf(errs.Construction, "creating rom", "%w: table %d", ErrForeignTable, i)
		}
		if _, ok := offsets[t.Offset]; ok {
			return nil, errs.Errorf(errs.Construction, "creating rom", "%w: table %d at 0x%X",
				ErrDuplicateOffset, i, t.Offset)
		}
		offsets[t.Offset] = struct{}{}
	}
	return &ROM{
		Name:   name,
		arena:  arena,
		tables: append([]*tsa.TileSquareAssembly(nil), tables...),
	}, nil
}

// FromImage decodes the tables at the given locations. Blocks are
// deduplicated within this import only. Every location needs its own offset,
// tables sharing a region would overwrite each other when applied.
func FromImage(name string, reader Reader, locations []Location) (*ROM, error) {
	r := New(name)
	session := tsa.NewSession(r.arena)

	offsets := make(map[int]struct{}, len(locations))
	for i, loc := range locations {
		if _, ok := offsets[loc.Offset]; ok {
			return nil, errs.Errorf(errs.Construction, "reading rom", "%w: location %d at 0x%X",
				ErrDuplicateOffset, i, loc.Offset)
		}
		offsets[loc.Offset] = struct{}{}

		raw, err := reader.ReadBytes(tsa.TableSize, loc.Offset)
		if err != nil {
			return nil, fmt.Errorf("reading tile square assembly at 0x%X: %w", loc.Offset, err)
		}
		t, err := tsa.FromROM(session, loc.Name, loc.Offset, loc.Top, loc.Bottom, raw)
		if err != nil {
			return nil, fmt.Errorf("decoding tile square assembly at 0x%X: %w", loc.Offset, err)
		}
		r.tables = append(r.tables, t)
	}
	return r, nil
}

func (r *ROM) String() string {
	return fmt.Sprintf("ROM(%s, %d tables, %d blocks)", r.Name, len(r.tables), r.arena.Len())
}

// Arena returns the arena of the ROM.
func (r *ROM) Arena() *tsa.Arena {
	return r.arena
}

// TileSquareAssemblies returns the tables in order.
func (r *ROM) TileSquareAssemblies() []*tsa.TileSquareAssembly {
	return append([]*tsa.TileSquareAssembly(nil), r.tables...)
}

// Len returns the number of tables.
func (r *ROM) Len() int {
	return len(r.tables)
}

// Copy returns an independent duplicate, including the name.
func (r *ROM) Copy() *ROM {
	c := New(r.Name)
	session := tsa.NewSession(c.arena)
	c.tables = make([]*tsa.TileSquareAssembly, len(r.tables))
	for i, t := range r.tables {
		c.tables[i] = t.Copy(session)
	}
	return c
}

// CopyFrom copies the tables of other into r, keeping the name of r. When
// both ROMs have the same tables by offset, the existing tables are updated
// in the order of other, otherwise the table list is replaced.
func (r *ROM) CopyFrom(other *ROM) error {
	session := tsa.NewSession(r.arena)

	if matched, ok := r.matchByOffset(other); ok {
		for i, t := range matched {
			if err := t.CopyFrom(session, other.tables[i]); err != nil {
				return fmt.Errorf("copying tile square assembly %d: %w", i, err)
			}
		}
		r.tables = matched
		return nil
	}

	tables := make([]*tsa.TileSquareAssembly, len(other.tables))
	for i, t := range other.tables {
		tables[i] = t.Copy(session)
	}
	r.tables = tables
	return nil
}

// matchByOffset returns the own tables in the order of the tables of other
// if both have the same length and every offset is present exactly once.
func (r *ROM) matchByOffset(other *ROM) ([]*tsa.TileSquareAssembly, bool) {
	if len(r.tables) != len(other.tables) {
		return nil, false
	}

	byOffset := make(map[int]*tsa.TileSquareAssembly, len(r.tables))
	for _, t := range r.tables {
		byOffset[t.Offset] = t
	}
	if len(byOffset) != len(r.tables) {
		return nil, false
	}

	matched := make([]*tsa.TileSquareAssembly, len(other.tables))
	for i, t := range other.tables {
		own, ok := byOffset[t.Offset]
		if !ok {
			return nil, false
		}
		delete(byOffset, t.Offset)
		matched[i] = own
	}
	return matched, true
}

// Compact drops blocks that are no longer referenced by any table.
func (r *ROM) Compact() error {
	arena, err := tsa.Compact(r.tables)
	if err != nil {
		return fmt.Errorf("compacting rom: %w", err)
	}
	r.arena = arena
	return nil
}

// Snapshot returns a fingerprint of the content that IsLike compares.
// Different snapshots imply ROMs that are not alike, equal snapshots still
// need a full comparison.
func (r *ROM) Snapshot() uint64 {
	digest := xxhash.New()
	var buf [8]byte

	binary.LittleEndian.PutUint64(buf[:], uint64(len(r.tables)))
	_, _ = digest.Write(buf[:])
	for _, t := range r.tables {
		binary.LittleEndian.PutUint64(buf[:], uint64(t.Offset))
		_, _ = digest.Write(buf[:])
		_, _ = digest.Write(t.Bytes())
	}
	return digest.Sum64()
}

// ApplyTo writes the encoded tables at their offsets.
func (r *ROM) ApplyTo(writer Writer) error {
	for _, t := range r.tables {
		if err := writer.WriteBytes(t.Bytes(), t.Offset); err != nil {
			return fmt.Errorf("writing tile square assembly at 0x%X: %w", t.Offset, err)
		}
	}
	return nil
}
