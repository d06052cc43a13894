package tsa

import (
	"errors"
	"fmt"

	"github.com/retroenv/romsync/internal/errs"
)

const (
	// BlockCount is the fixed number of blocks of a tile square assembly.
	BlockCount = 0x100
	// PlaneSize is the size of one pattern plane in the encoded table.
	PlaneSize = BlockCount
	// TableSize is the size of an encoded tile square assembly.
	TableSize = 4 * PlaneSize
	// PaletteGroupSize is the number of consecutive blocks sharing a palette.
	PaletteGroupSize = 0x40
)

var (
	// ErrBlockCount is returned for block sequences that are not exactly BlockCount long.
	ErrBlockCount = errors.New("invalid block count")
	// ErrTableSize is returned for encoded tables that are not exactly TableSize long.
	ErrTableSize = errors.New("invalid table size")
	// ErrForeignArena is returned when a copy target does not use the arena of the session.
	ErrForeignArena = errors.New("tile square assembly uses a different arena")
	// ErrBlockIndex is returned for slot indexes outside of the table.
	ErrBlockIndex = errors.New("block index out of range")
)

// TileSquareAssembly is a table of 0x100 blocks displayed with two pattern
// tables. The palette of a block is determined by its index, split into four
// equal partitions.
type TileSquareAssembly struct {
	Name          string
	Offset        int // offset of the encoded table in the ROM
	PatternTables [2]PatternTable

	arena  *Arena
	blocks [BlockCount]BlockID
}

// New returns a tile square assembly referencing blocks of arena. blocks has
// to contain exactly BlockCount handles.
func New(arena *Arena, name string, offset int, top, bottom PatternTable,
	blocks []BlockID) (*TileSquareAssembly, error) {

	if len(blocks) != BlockCount {
		return nil, errs.Errorf(errs.Construction, "creating tile square assembly", "%w: %d",
			ErrBlockCount, len(blocks))
	}

	t := &TileSquareAssembly{
		Name:          name,
		Offset:        offset,
		PatternTables: [2]PatternTable{top, bottom},
		arena:         arena,
	}
	for i, id := range blocks {
		if !arena.Valid(id) {
			return nil, errs.Errorf(errs.Construction, "creating tile square assembly", "%w: %d at index %d",
				ErrUnknownBlock, id, i)
		}
		t.blocks[i] = id
	}
	return t, nil
}

// FromROM decodes a tile square assembly from its encoded table. The table
// consists of four planes of 0x100 bytes: top left, top right, bottom left and
// bottom right pattern indexes. Blocks are deduplicated through the session,
// keyed by both pattern tables and the pattern indexes.
func FromROM(session *Session, name string, offset int, top, bottom PatternTable,
	raw []byte) (*TileSquareAssembly, error) {

	if len(raw) != TableSize {
		return nil, errs.Errorf(errs.Construction, "decoding tile square assembly", "%w: 0x%X",
			ErrTableSize, len(raw))
	}

	t := &TileSquareAssembly{
		Name:          name,
		Offset:        offset,
		PatternTables: [2]PatternTable{top, bottom},
		arena:         session.Arena(),
	}
	for i := range BlockCount {
		block := NewBlock("", raw[i], raw[i+PlaneSize], raw[i+2*PlaneSize], raw[i+3*PlaneSize])
		t.blocks[i] = session.RegisterOrReuse(block.Key(top, bottom), func() Block {
			return block
		})
	}
	return t, nil
}

func (t *TileSquareAssembly) String() string {
	return fmt.Sprintf("TileSquareAssembly(%s, 0x%X, %s, %s)", t.Name, t.Offset,
		t.PatternTables[0], t.PatternTables[1])
}

// Arena returns the arena the blocks of the table are stored in.
func (t *TileSquareAssembly) Arena() *Arena {
	return t.arena
}

// Bytes encodes the table in the same four plane layout that FromROM reads.
// Block names are not encoded.
func (t *TileSquareAssembly) Bytes() []byte {
	b := make([]byte, TableSize)
	for i, id := range t.blocks {
		patterns := t.arena.block(id).Patterns
		for plane, pattern := range patterns {
			b[plane*PlaneSize+i] = pattern
		}
	}
	return b
}

// CopyFrom copies name, offset, pattern tables and blocks of other into t.
// Blocks are matched through the session by pattern tables, name and patterns,
// so names assigned by the user survive the copy. t has to use the arena of
// the session.
func (t *TileSquareAssembly) CopyFrom(session *Session, other *TileSquareAssembly) error {
	if t.arena != session.Arena() {
		return errs.E(errs.Internal, "copying tile square assembly", ErrForeignArena)
	}

	t.Name = other.Name
	t.Offset = other.Offset
	t.PatternTables = other.PatternTables

	top, bottom := t.PatternTables[0], t.PatternTables[1]
	for i, id := range other.blocks {
		block := other.arena.block(id)
		t.blocks[i] = session.Match(block.CopyKey(top, bottom), func() Block {
			return block
		})
	}
	return nil
}

// Copy returns a duplicate of t whose blocks are stored in the arena of session.
func (t *TileSquareAssembly) Copy(session *Session) *TileSquareAssembly {
	c := &TileSquareAssembly{arena: session.Arena()}
	_ = c.CopyFrom(session, t) // the arena of c is the arena of the session
	return c
}

// BlockID returns the block handle at index. Like a slice access it panics
// for indexes failing ValidIndex, setters report those as ErrBlockIndex.
func (t *TileSquareAssembly) BlockID(index int) BlockID {
	return t.blocks[index]
}

// BlockIDs returns the block handles in index order.
func (t *TileSquareAssembly) BlockIDs() []BlockID {
	return append([]BlockID(nil), t.blocks[:]...)
}

// SetBlockID points the slot at index to another block of the arena.
func (t *TileSquareAssembly) SetBlockID(index int, id BlockID) error {
	if !ValidIndex(index) {
		return errs.Errorf(errs.Internal, "setting block", "%w: %d", ErrBlockIndex, index)
	}
	if !t.arena.Valid(id) {
		return errs.Errorf(errs.Internal, "setting block", "%w: %d", ErrUnknownBlock, id)
	}
	t.blocks[index] = id
	return nil
}

// Block returns the block at index. It panics for indexes failing ValidIndex.
func (t *TileSquareAssembly) Block(index int) Block {
	return t.arena.block(t.blocks[index])
}

// SetBlock replaces the block at index. The block is shared, every slot
// referring to the same handle changes as well.
func (t *TileSquareAssembly) SetBlock(index int, block Block) error {
	if !ValidIndex(index) {
		return errs.Errorf(errs.Internal, "setting block", "%w: %d", ErrBlockIndex, index)
	}
	return t.arena.Set(t.blocks[index], block)
}

// Blocks returns the blocks in index order.
func (t *TileSquareAssembly) Blocks() []Block {
	blocks := make([]Block, BlockCount)
	for i, id := range t.blocks {
		blocks[i] = t.arena.block(id)
	}
	return blocks
}

// ValidIndex returns whether index addresses a slot of a table.
func ValidIndex(index int) bool {
	return index >= 0 && index < BlockCount
}

// PaletteGroup returns the palette group of the block at index.
func PaletteGroup(index int) int {
	return index / PaletteGroupSize
}
