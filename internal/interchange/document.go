// Package interchange converts ROMs to and from a JSON document that can be
// edited and shared outside of an image. Tables, blocks and pattern tables are
// stored once and referenced by id.
package interchange

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/tsa"
)

var (
	// ErrUnknownBlock is returned for block ids that are not part of the document.
	ErrUnknownBlock = errors.New("unknown block id")
	// ErrUnknownPatternTable is returned for pattern table ids that are not part of the document.
	ErrUnknownPatternTable = errors.New("unknown pattern table id")
)

// Document is the interchange form of a ROM.
type Document struct {
	Name                 string                     `json:"name,omitempty"`
	TileSquareAssemblies map[int]TileSquareAssembly `json:"tile_square_assemblies"`
	Blocks               map[int]Block              `json:"blocks"`
	PatternTables        map[int]PatternTable       `json:"pattern_tables"`
}

// TileSquareAssembly references its blocks and pattern tables by id.
type TileSquareAssembly struct {
	Name               string `json:"name"`
	Offset             int    `json:"tsa_offset"`
	TopPatternTable    int    `json:"top_pattern_table"`
	BottomPatternTable int    `json:"bottom_pattern_table"`
	Blocks             []int  `json:"blocks"`
}

// Block is a block of the document.
type Block struct {
	Name        string `json:"name"`
	TopLeft     uint8  `json:"top_left"`
	TopRight    uint8  `json:"top_right"`
	BottomLeft  uint8  `json:"bottom_left"`
	BottomRight uint8  `json:"bottom_right"`
}

// PatternTable is a pattern table of the document.
type PatternTable struct {
	Offset int `json:"offset"`
}

// FromROM converts a ROM to a document. Ids are renumbered on every
// conversion: tables in ROM order starting at 0, blocks and pattern tables in
// order of first use starting at 1. Blocks with the same name and patterns
// under the same pattern tables are stored once.
func FromROM(r *rom.ROM) *Document {
	d := &Document{
		Name:                 r.Name,
		TileSquareAssemblies: make(map[int]TileSquareAssembly),
		Blocks:               make(map[int]Block),
		PatternTables:        make(map[int]PatternTable),
	}

	patternTableIDs := make(map[int]int)
	patternTableID := func(p tsa.PatternTable) int {
		id, ok := patternTableIDs[p.Offset]
		if !ok {
			id = len(patternTableIDs) + 1
			patternTableIDs[p.Offset] = id
			d.PatternTables[id] = PatternTable{Offset: p.Offset}
		}
		return id
	}

	blockIDs := make(map[tsa.CopyKey]int)
	for i, t := range r.TileSquareAssemblies() {
		top, bottom := t.PatternTables[0], t.PatternTables[1]
		entry := TileSquareAssembly{
			Name:               t.Name,
			Offset:             t.Offset,
			TopPatternTable:    patternTableID(top),
			BottomPatternTable: patternTableID(bottom),
			Blocks:             make([]int, tsa.BlockCount),
		}

		for j, block := range t.Blocks() {
			key := block.CopyKey(top, bottom)
			id, ok := blockIDs[key]
			if !ok {
				id = len(blockIDs) + 1
				blockIDs[key] = id
				d.Blocks[id] = blockEntry(block)
			}
			entry.Blocks[j] = id
		}
		d.TileSquareAssemblies[i] = entry
	}
	return d
}

func blockEntry(b tsa.Block) Block {
	return Block{
		Name:        b.Name,
		TopLeft:     b.Patterns[tsa.TopLeft],
		TopRight:    b.Patterns[tsa.TopRight],
		BottomLeft:  b.Patterns[tsa.BottomLeft],
		BottomRight: b.Patterns[tsa.BottomRight],
	}
}

// ROM converts the document to a ROM. Tables are ordered by id. Every block of
// the document becomes one block of the ROM, shared by all slots that
// reference its id.
func (d *Document) ROM() (*rom.ROM, error) {
	arena := tsa.NewArena()

	blockIDs := make(map[int]tsa.BlockID, len(d.Blocks))
	for _, id := range slices.Sorted(maps.Keys(d.Blocks)) {
		b := d.Blocks[id]
		blockIDs[id] = arena.Add(tsa.NewBlock(b.Name, b.TopLeft, b.TopRight, b.BottomLeft, b.BottomRight))
	}

	var tables []*tsa.TileSquareAssembly
	for _, id := range slices.Sorted(maps.Keys(d.TileSquareAssemblies)) {
		t, err := d.tileSquareAssembly(arena, blockIDs, d.TileSquareAssemblies[id])
		if err != nil {
			return nil, fmt.Errorf("converting tile square assembly %d: %w", id, err)
		}
		tables = append(tables, t)
	}

	return rom.FromTables(d.Name, arena, tables)
}

func (d *Document) tileSquareAssembly(arena *tsa.Arena, blockIDs map[int]tsa.BlockID,
	entry TileSquareAssembly) (*tsa.TileSquareAssembly, error) {

	top, err := d.patternTable(entry.TopPatternTable)
	if err != nil {
		return nil, err
	}
	bottom, err := d.patternTable(entry.BottomPatternTable)
	if err != nil {
		return nil, err
	}

	blocks := make([]tsa.BlockID, len(entry.Blocks))
	for i, id := range entry.Blocks {
		blockID, ok := blockIDs[id]
		if !ok {
			return nil, errs.Errorf(errs.Construction, "resolving block", "%w: %d at index %d", ErrUnknownBlock, id, i)
		}
		blocks[i] = blockID
	}

	return tsa.New(arena, entry.Name, entry.Offset, top, bottom, blocks)
}

func (d *Document) patternTable(id int) (tsa.PatternTable, error) {
	p, ok := d.PatternTables[id]
	if !ok {
		return tsa.PatternTable{}, errs.Errorf(errs.Construction, "resolving pattern table", "%w: %d",
			ErrUnknownPatternTable, id)
	}
	return tsa.PatternTable{Offset: p.Offset}, nil
}
