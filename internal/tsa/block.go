// Package tsa implements tile square assemblies: fixed tables of 0x100 blocks,
// each block made of four 8x8 tile pattern indices. Blocks are stored once in
// an arena and shared by handle between table slots.
package tsa

import "fmt"

// Pattern positions inside a block.
const (
	TopLeft = iota
	TopRight
	BottomLeft
	BottomRight
)

// Patterns are the four tile pattern indices of a block in the order
// top left, top right, bottom left, bottom right.
type Patterns [4]byte

// Block is a 16x16 pixel primitive. Blocks are content equal by their
// patterns, the name is cosmetic.
type Block struct {
	Name     string
	Patterns Patterns
}

// NewBlock returns a block with the given pattern indices.
func NewBlock(name string, topLeft, topRight, bottomLeft, bottomRight byte) Block {
	return Block{
		Name:     name,
		Patterns: Patterns{topLeft, topRight, bottomLeft, bottomRight},
	}
}

func (b Block) String() string {
	return fmt.Sprintf("Block(%s, %02X %02X %02X %02X)", b.Name,
		b.Patterns[TopLeft], b.Patterns[TopRight], b.Patterns[BottomLeft], b.Patterns[BottomRight])
}

// Key returns the content key of the block as displayed with the given pattern
// tables. Identical patterns on different pattern tables produce different keys.
func (b Block) Key(top, bottom PatternTable) Key {
	return Key{Top: top.Offset, Bottom: bottom.Offset, Patterns: b.Patterns}
}

// CopyKey returns the key used to match blocks while copying, which also
// respects user assigned names.
func (b Block) CopyKey(top, bottom PatternTable) CopyKey {
	return CopyKey{Key: b.Key(top, bottom), Name: b.Name}
}

// Key identifies the content of a block under a pair of pattern tables.
type Key struct {
	Top      int
	Bottom   int
	Patterns Patterns
}

// CopyKey identifies a block by content and name.
type CopyKey struct {
	Key
	Name string
}

// PatternTable references a page of tile graphics. Each increment of the
// offset moves the page by 0x80 tiles.
type PatternTable struct {
	Offset int
}

func (p PatternTable) String() string {
	return fmt.Sprintf("PatternTable(0x%02X)", p.Offset)
}
