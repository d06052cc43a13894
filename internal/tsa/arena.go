package tsa

import (
	"errors"
	"fmt"

	"github.com/retroenv/romsync/internal/errs"
)

// ErrUnknownBlock is returned for block handles that do not belong to an arena.
var ErrUnknownBlock = errors.New("unknown block")

// BlockID is a stable handle of a block inside an arena.
type BlockID uint32

// Arena stores blocks. Handles stay valid for the lifetime of the arena, so
// many table slots can refer to one block.
type Arena struct {
	blocks []Block
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Add stores a new block and returns its handle.
func (a *Arena) Add(block Block) BlockID {
	a.blocks = append(a.blocks, block)
	return BlockID(len(a.blocks) - 1)
}

// Block returns the block for the handle.
func (a *Arena) Block(id BlockID) (Block, error) {
	if !a.Valid(id) {
		return Block{}, errs.Errorf(errs.Internal, "reading block", "%w: %d", ErrUnknownBlock, id)
	}
	return a.blocks[id], nil
}

// Set replaces the block behind the handle, changing every slot that shares it.
func (a *Arena) Set(id BlockID, block Block) error {
	if !a.Valid(id) {
		return errs.Errorf(errs.Internal, "writing block", "%w: %d", ErrUnknownBlock, id)
	}
	a.blocks[id] = block
	return nil
}

// Valid returns whether the handle belongs to the arena.
func (a *Arena) Valid(id BlockID) bool {
	return int(id) < len(a.blocks)
}

// Len returns the number of stored blocks.
func (a *Arena) Len() int {
	return len(a.blocks)
}

func (a *Arena) String() string {
	return fmt.Sprintf("Arena(%d)", len(a.blocks))
}

// block returns the block for a handle that is known to be valid.
func (a *Arena) block(id BlockID) Block {
	return a.blocks[id]
}

// Compact moves the blocks referenced by tables into a new arena, dropping
// unreferenced blocks. Slots that shared a block keep sharing it. All tables
// have to use the same arena.
func Compact(tables []*TileSquareAssembly) (*Arena, error) {
	compacted := NewArena()
	if len(tables) == 0 {
		return compacted, nil
	}

	source := tables[0].arena
	for _, t := range tables {
		if t.arena != source {
			return nil, errs.E(errs.Internal, "compacting arena", ErrForeignArena)
		}
	}

	remapped := make(map[BlockID]BlockID)
	for _, t := range tables {
		for i, id := range t.blocks {
			newID, ok := remapped[id]
			if !ok {
				newID = compacted.Add(source.block(id))
				remapped[id] = newID
			}
			t.blocks[i] = newID
		}
		t.arena = compacted
	}
	return compacted, nil
}
