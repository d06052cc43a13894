// Package tileset discovers the tile square assemblies of the tilesets of a
// ROM image and models the banks they are stored in.
package tileset

import (
	"errors"
	"fmt"

	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/layout"
	"github.com/retroenv/romsync/internal/offset"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/tsa"
)

// ErrInvalidLayout is returned for layouts that can not describe an image.
var ErrInvalidLayout = errors.New("invalid layout")

// Layout describes where the tile square assemblies of the tilesets are
// stored. The bank of tileset 0 is fixed, the banks of all other tilesets are
// read from a list in the image that is terminated by a sentinel byte.
type Layout struct {
	HeaderSize  int  `json:"header_size"`  // size of the image header preceding bank 0
	BankSize    int  `json:"bank_size"`    // size of a switchable bank
	PCWindow    int  `json:"pc_window"`    // CPU address the bank of a table is mapped to
	BankList    int  `json:"bank_list"`    // image offset of the bank number list, indexed by tileset
	Sentinel    byte `json:"sentinel"`     // bank list terminator
	FirstBank   int  `json:"first_bank"`   // bank of tileset 0
	MaxTilesets int  `json:"max_tilesets"` // upper limit if the sentinel is missing

	// Image offsets of the pattern table lists, indexed by tileset. A zero
	// offset selects the tileset index as pattern table.
	TopPatternTables    int `json:"top_pattern_tables"`
	BottomPatternTables int `json:"bottom_pattern_tables"`
}

// DefaultLayout returns the layout of Super Mario Bros. 3.
func DefaultLayout() Layout {
	return Layout{
		HeaderSize:  0x10,
		BankSize:    offset.BankSize,
		PCWindow:    0xA000,
		BankList:    0x3C3F9,
		Sentinel:    0x60,
		FirstBank:   12,
		MaxTilesets: 0x40,
	}
}

// Validate checks the layout for values that can not describe an image.
func (l Layout) Validate() error {
	switch {
	case l.HeaderSize < 0:
		return errs.Errorf(errs.Usage, "validating layout", "%w: negative header size", ErrInvalidLayout)
	case l.BankSize <= 0:
		return errs.Errorf(errs.Usage, "validating layout", "%w: bank size has to be positive", ErrInvalidLayout)
	case l.BankList < 0:
		return errs.Errorf(errs.Usage, "validating layout", "%w: negative bank list offset", ErrInvalidLayout)
	case l.MaxTilesets <= 0:
		return errs.Errorf(errs.Usage, "validating layout", "%w: tileset limit has to be positive", ErrInvalidLayout)
	}
	return nil
}

// BankOffset returns the image offset of a bank.
func (l Layout) BankOffset(bank int) int {
	return l.HeaderSize + bank*l.BankSize
}

// Image is the binary image tilesets are discovered in.
type Image interface {
	rom.Reader
	Len() int
}

// Tileset is a discovered tileset.
type Tileset struct {
	Index    int
	Bank     int
	Location rom.Location
	Filler   *layout.Filler // the tile square assembly inside its bank
}

// Map is the result of a discovery.
type Map struct {
	Root     *layout.Container // the whole image, parent of all banks
	Tilesets []Tileset
}

// Locations returns one location per table region in order of the first
// tileset using it. Tilesets sharing a table are displayed with the pattern
// tables of the first of them.
func (m *Map) Locations() []rom.Location {
	seen := make(map[int]struct{}, len(m.Tilesets))
	var locations []rom.Location
	for _, ts := range m.Tilesets {
		loc := ts.Location
		if _, ok := seen[loc.Offset]; ok {
			continue
		}
		seen[loc.Offset] = struct{}{}
		locations = append(locations, loc)
	}
	return locations
}

// Banks returns the bank containers in offset order.
func (m *Map) Banks() []*layout.Container {
	return m.Root.Children()
}

// Discover reads the bank list and returns every tileset with its bank and
// pattern tables. Each table is placed as a filler into its bank, a table or
// bank that does not fit is reported as an overflow error.
func Discover(img Image, l Layout) (*Map, error) {
	if err := l.Validate(); err != nil {
		return nil, err
	}

	root, err := layout.NewContainer("image", 0, 0, img.Len())
	if err != nil {
		return nil, fmt.Errorf("creating image container: %w", err)
	}
	m := &Map{Root: root}
	banks := make(map[int]*layout.Container)

	count, err := l.count(img)
	if err != nil {
		return nil, err
	}

	for index := range count {
		ts, err := l.tileset(img, root, banks, index)
		if err != nil {
			return nil, fmt.Errorf("discovering tileset %d: %w", index, err)
		}
		m.Tilesets = append(m.Tilesets, ts)
	}

	if !root.SafeToSave() {
		_, err := root.Bytes()
		return nil, fmt.Errorf("placing tile square assemblies: %w", err)
	}
	return m, nil
}

// count returns the number of tilesets, which is the index of the sentinel
// in the bank list.
func (l Layout) count(img Image) (int, error) {
	for index := range l.MaxTilesets {
		b, err := l.readByte(img, l.BankList+index)
		if err != nil {
			return 0, fmt.Errorf("reading bank list: %w", err)
		}
		if b == l.Sentinel {
			return index, nil
		}
	}
	return l.MaxTilesets, nil
}

func (l Layout) tileset(img Image, root *layout.Container, banks map[int]*layout.Container,
	index int) (Tileset, error) {

	bank := l.FirstBank
	if index > 0 {
		b, err := l.readByte(img, l.BankList+index)
		if err != nil {
			return Tileset{}, fmt.Errorf("reading bank: %w", err)
		}
		bank = int(b)
	}

	top, err := l.patternTable(img, l.TopPatternTables, index)
	if err != nil {
		return Tileset{}, err
	}
	bottom, err := l.patternTable(img, l.BottomPatternTables, index)
	if err != nil {
		return Tileset{}, err
	}

	container, ok := banks[bank]
	if !ok {
		container, err = layout.NewContainer(fmt.Sprintf("bank %d", bank), l.BankOffset(bank), l.PCWindow, l.BankSize)
		if err != nil {
			return Tileset{}, fmt.Errorf("creating bank container: %w", err)
		}
		if err := root.AddChild(container); err != nil {
			return Tileset{}, fmt.Errorf("adding bank container: %w", err)
		}
		banks[bank] = container
	}

	address := layout.NewAddress(fmt.Sprintf("tsa %d", index), container, 0)
	filler, err := layout.NewFiller(address, tsa.TableSize, nil)
	if err != nil {
		return Tileset{}, fmt.Errorf("creating table filler: %w", err)
	}
	if err := container.AddFiller(filler); err != nil {
		return Tileset{}, fmt.Errorf("placing table filler: %w", err)
	}

	return Tileset{
		Index: index,
		Bank:  bank,
		Location: rom.Location{
			Offset: address.ROMOffset(),
			Top:    top,
			Bottom: bottom,
		},
		Filler: filler,
	}, nil
}

func (l Layout) patternTable(img Image, list, index int) (tsa.PatternTable, error) {
	if list == 0 {
		return tsa.PatternTable{Offset: index}, nil
	}
	b, err := l.readByte(img, list+index)
	if err != nil {
		return tsa.PatternTable{}, fmt.Errorf("reading pattern table list: %w", err)
	}
	return tsa.PatternTable{Offset: int(b)}, nil
}

func (l Layout) readByte(img Image, offset int) (byte, error) {
	data, err := img.ReadBytes(1, offset)
	if err != nil {
		return 0, err
	}
	return data[0], nil
}
