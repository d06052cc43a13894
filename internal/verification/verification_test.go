package verification

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/tsa"
)

type memoryImage []byte

func (m memoryImage) ReadBytes(length, offset int) ([]byte, error) {
	return append([]byte(nil), m[offset:offset+length]...), nil
}

func buildMinimalNESROM() []byte {
	data := make([]byte, 16+16384)
	copy(data[0:4], []byte{'N', 'E', 'S', 0x1A})
	data[4] = 1
	for i := 16; i < len(data); i++ {
		data[i] = byte(i / 3)
	}
	return data
}

func writeFile(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.nes")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

func loadROM(t *testing.T, data []byte) *rom.ROM {
	t.Helper()
	locations := []rom.Location{
		{Offset: 0x10, Top: tsa.PatternTable{Offset: 1}, Bottom: tsa.PatternTable{Offset: 2}},
		{Offset: 0x2010, Top: tsa.PatternTable{Offset: 3}, Bottom: tsa.PatternTable{Offset: 4}},
	}
	r, err := rom.FromImage("", memoryImage(data), locations)
	assert.NoError(t, err)
	return r
}

func TestVerifyOutput(t *testing.T) {
	data := buildMinimalNESROM()
	r := loadROM(t, data)

	t.Run("identical image", func(t *testing.T) {
		path := writeFile(t, data)
		assert.NoError(t, VerifyOutput(log.NewTestLogger(t), path, false, data, r))
		assert.NoError(t, VerifyOutput(log.NewTestLogger(t), path, true, data, r))
	})

	t.Run("changed table", func(t *testing.T) {
		saved := append([]byte(nil), data...)
		saved[0x2010+0x123] ^= 0xFF
		path := writeFile(t, saved)

		err := VerifyOutput(log.NewTestLogger(t), path, false, data, r)
		assert.ErrorContains(t, err, "segment PRG mismatch")

		// the in-memory image is the saved one, the table itself differs
		err = VerifyOutput(log.NewTestLogger(t), path, false, saved, r)
		assert.ErrorContains(t, err, "tile square assembly 1 mismatch: 1 offset mismatches")
	})

	t.Run("changed header", func(t *testing.T) {
		saved := append([]byte(nil), data...)
		saved[6] = 0x10
		path := writeFile(t, saved)

		err := VerifyOutput(log.NewTestLogger(t), path, false, data, r)
		assert.ErrorContains(t, err, "mapper mismatch")
	})

	t.Run("missing file", func(t *testing.T) {
		err := VerifyOutput(log.NewTestLogger(t), filepath.Join(t.TempDir(), "missing.nes"), false, data, r)
		assert.Error(t, err)
	})
}

func TestVerifyTables(t *testing.T) {
	data := buildMinimalNESROM()
	r := loadROM(t, data)

	assert.NoError(t, VerifyTables(log.NewTestLogger(t), data, r))
	err := VerifyTables(log.NewTestLogger(t), data[:0x2100], r)
	assert.ErrorContains(t, err, "outside of the image")
}

func TestCheckBufferEqual(t *testing.T) {
	logger := log.NewTestLogger(t)

	assert.NoError(t, checkBufferEqual(logger, []byte{1, 2, 3}, []byte{1, 2, 3}, 0))
	assert.ErrorContains(t, checkBufferEqual(logger, []byte{1, 2}, []byte{1}, 0), "mismatched lengths")

	input := make([]byte, 32)
	output := make([]byte, 32)
	for i := range output {
		output[i] = 1
	}
	assert.ErrorContains(t, checkBufferEqual(logger, input, output, 0x10), "32 offset mismatches")
}
