package controller

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/image"
	"github.com/retroenv/romsync/internal/interchange"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/tileset"
	"github.com/retroenv/romsync/internal/tsa"
)

// table offsets of tileset 0, 1 and 2
const (
	table0 = 0x6010
	table1 = 0x2010
	table2 = 0x4010
)

func testLayout() tileset.Layout {
	return tileset.Layout{
		HeaderSize:  0x10,
		BankSize:    0x2000,
		PCWindow:    0xA000,
		BankList:    0x10,
		Sentinel:    0x60,
		FirstBank:   3,
		MaxTilesets: 8,
	}
}

func buildNESROM() []byte {
	data := make([]byte, 0x10+2*0x4000)
	for i := range data {
		data[i] = byte(i)
	}
	copy(data, []byte{'N', 'E', 'S', 0x1A, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	copy(data[0x10:], []byte{0x00, 1, 2, 0x60})
	return data
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "game.nes")
	assert.NoError(t, os.WriteFile(path, buildNESROM(), 0600))
	return path
}

func newController(t *testing.T, path string, opts Options) *Controller {
	t.Helper()
	logger := log.NewTestLogger(t)
	img, err := image.Open(logger, path, false)
	assert.NoError(t, err)
	c, err := New(logger, img, testLayout(), opts)
	assert.NoError(t, err)
	return c
}

func modifyFile(t *testing.T, path string, offset int, value byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	data[offset] = value
	assert.NoError(t, os.WriteFile(path, data, 0600))
}

type countingResolver struct {
	calls   int
	keepNew bool
}

func (r *countingResolver) resolve(primary, secondary *rom.ROM) (*rom.ROM, error) {
	r.calls++
	if r.keepNew {
		return secondary.Copy(), nil
	}
	return primary.Copy(), nil
}

func TestNew(t *testing.T) {
	c := newController(t, writeImage(t), Options{})

	assert.Equal(t, "game", c.Main().Name)
	assert.Len(t, c.Tilesets().Tilesets, 3)
	assert.Equal(t, 3, c.Main().Len())

	tables := c.Main().TileSquareAssemblies()
	assert.Equal(t, table0, tables[0].Offset)
	assert.Equal(t, table1, tables[1].Offset)
	assert.Equal(t, table2, tables[2].Offset)
	assert.False(t, c.HasChanges())
}

func TestNew_MissingImageData(t *testing.T) {
	logger := log.NewTestLogger(t)
	img, err := image.Open(logger, writeImage(t), false)
	assert.NoError(t, err)

	l := testLayout()
	l.FirstBank = 4
	_, err = New(logger, img, l, Options{})
	assert.ErrorContains(t, err, "discovering tilesets")
}

func TestHasChanges_RefreshInterval(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newController(t, writeImage(t), Options{
		Now: func() time.Time { return now },
	})

	assert.False(t, c.HasChanges())
	assert.NoError(t, c.Working().TileSquareAssemblies()[0].SetBlock(5, tsa.NewBlock("", 1, 2, 3, 4)))

	now = now.Add(time.Second)
	assert.False(t, c.HasChanges())

	now = now.Add(time.Second)
	assert.True(t, c.HasChanges())
}

func TestSave(t *testing.T) {
	path := writeImage(t)
	c := newController(t, path, Options{})

	assert.NoError(t, c.Working().TileSquareAssemblies()[0].SetBlock(5, tsa.NewBlock("edited", 1, 2, 3, 4)))
	assert.True(t, c.HasChanges())
	assert.NoError(t, c.Save())
	assert.False(t, c.HasChanges())
	assert.Equal(t, "edited", c.Main().TileSquareAssemblies()[0].Block(5).Name)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(1), data[table0+5])
	assert.Equal(t, byte(2), data[table0+tsa.PlaneSize+5])
	assert.Equal(t, byte(3), data[table0+2*tsa.PlaneSize+5])
	assert.Equal(t, byte(4), data[table0+3*tsa.PlaneSize+5])

	expected := buildNESROM()
	data[table0+5] = expected[table0+5]
	data[table0+tsa.PlaneSize+5] = expected[table0+tsa.PlaneSize+5]
	data[table0+2*tsa.PlaneSize+5] = expected[table0+2*tsa.PlaneSize+5]
	data[table0+3*tsa.PlaneSize+5] = expected[table0+3*tsa.PlaneSize+5]
	assert.Equal(t, expected, data)

	reopened := newController(t, path, Options{})
	assert.True(t, rom.NewVerifier(nil).IsLike(c.Main(), reopened.Main()))
}

func TestSave_SharedTable(t *testing.T) {
	data := buildNESROM()
	copy(data[0x10:], []byte{0x00, 1, 1, 0x60}) // tileset 1 and 2 share bank 1
	path := filepath.Join(t.TempDir(), "game.nes")
	assert.NoError(t, os.WriteFile(path, data, 0600))

	c := newController(t, path, Options{})
	assert.Len(t, c.Tilesets().Tilesets, 3)
	assert.Equal(t, 2, c.Main().Len())

	tables := c.Working().TileSquareAssemblies()
	assert.Equal(t, table1, tables[1].Offset)
	assert.NoError(t, tables[1].SetBlock(5, tsa.NewBlock("shared", 0xAA, 0xAB, 0xAC, 0xAD)))
	assert.NoError(t, c.Save())

	saved, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(0xAA), saved[table1+5])
	assert.Equal(t, byte(0xAB), saved[table1+tsa.PlaneSize+5])
	assert.Equal(t, byte(0xAC), saved[table1+2*tsa.PlaneSize+5])
	assert.Equal(t, byte(0xAD), saved[table1+3*tsa.PlaneSize+5])

	reopened := newController(t, path, Options{})
	assert.True(t, rom.NewVerifier(nil).IsLike(c.Main(), reopened.Main()))
}

func TestSave_ExternalChange(t *testing.T) {
	path := writeImage(t)
	resolve := &countingResolver{keepNew: true}
	c := newController(t, path, Options{Resolve: resolve.resolve})
	assert.Equal(t, 0, resolve.calls)

	modifyFile(t, path, table1+7, 0xEE)
	diverged, err := c.Diverged()
	assert.NoError(t, err)
	assert.True(t, diverged)

	mismatches, err := c.Mismatches()
	assert.NoError(t, err)
	assert.Equal(t, []rom.Mismatch{{Table: 1, Offset: table1, Block: 7}}, mismatches)

	assert.NoError(t, c.Working().TileSquareAssemblies()[0].SetBlock(5, tsa.NewBlock("", 1, 2, 3, 4)))
	assert.NoError(t, c.Save())
	assert.Equal(t, 1, resolve.calls)

	// the edits replay over the resolved state
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(1), data[table0+5])
	assert.Equal(t, byte(0x17), data[table1+7])

	diverged, err = c.Diverged()
	assert.NoError(t, err)
	assert.False(t, diverged)
}

func TestNew_State(t *testing.T) {
	path := writeImage(t)
	c := newController(t, path, Options{})

	doc := c.Document()
	entry := doc.TileSquareAssemblies[0]
	entry.Name = "world map"
	doc.TileSquareAssemblies[0] = entry

	t.Run("matching state keeps names", func(t *testing.T) {
		resolve := &countingResolver{}
		restored := newController(t, path, Options{State: doc, Resolve: resolve.resolve})
		assert.Equal(t, 0, resolve.calls)
		assert.Equal(t, "world map", restored.Main().TileSquareAssemblies()[0].Name)
		assert.Equal(t, "game", restored.Main().Name)
	})

	t.Run("diverged state is resolved", func(t *testing.T) {
		changed := c.Document()
		id := changed.TileSquareAssemblies[1].Blocks[7]
		block := changed.Blocks[id]
		block.TopLeft ^= 0xFF
		changed.Blocks[id] = block

		resolve := &countingResolver{keepNew: true}
		restored := newController(t, path, Options{State: changed, Resolve: resolve.resolve})
		assert.Equal(t, 1, resolve.calls)
		assert.Equal(t, byte(0x17), restored.Main().TileSquareAssemblies()[1].Block(7).Patterns[tsa.TopLeft])
	})

	t.Run("invalid state", func(t *testing.T) {
		invalid := c.Document()
		entry := invalid.TileSquareAssemblies[0]
		entry.Blocks = append([]int(nil), entry.Blocks...)
		entry.Blocks[0] = 100000
		invalid.TileSquareAssemblies[0] = entry

		img, err := image.Open(log.NewTestLogger(t), path, false)
		assert.NoError(t, err)
		_, err = New(log.NewTestLogger(t), img, testLayout(), Options{State: invalid})
		assert.ErrorContains(t, err, "loading state document")
	})
}

func TestImportNew(t *testing.T) {
	path := writeImage(t)
	c := newController(t, path, Options{})

	doc := c.Document()
	id := doc.TileSquareAssemblies[0].Blocks[5]
	block := doc.Blocks[id]
	block.Name = "imported"
	block.TopLeft = 0xAA
	doc.Blocks[id] = block

	assert.NoError(t, c.ImportNew(doc))
	assert.True(t, c.HasChanges())
	assert.NoError(t, c.Save())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(0xAA), data[table0+5])
	assert.Equal(t, "imported", c.Main().TileSquareAssemblies()[0].Block(5).Name)

	delete(doc.Blocks, id)
	assert.Error(t, c.ImportNew(doc))
}

func TestExport(t *testing.T) {
	path := writeImage(t)
	c := newController(t, path, Options{})
	assert.NoError(t, c.Working().TileSquareAssemblies()[2].SetBlock(0, tsa.NewBlock("", 9, 9, 9, 9)))

	output := filepath.Join(t.TempDir(), "game.json.zst")
	assert.NoError(t, c.Export(output, interchange.JSONZstd))
	assert.False(t, c.HasChanges())

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.Equal(t, byte(9), data[table2])

	doc, err := interchange.ReadFile(output, interchange.JSONZstd)
	assert.NoError(t, err)
	assert.Equal(t, "game", doc.Name)
	assert.Equal(t, 3, len(doc.TileSquareAssemblies))
	assert.Equal(t, table2, doc.TileSquareAssemblies[2].Offset)
}
