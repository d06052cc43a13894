// Package verification verifies that a saved image contains the expected
// tile square assemblies.
package verification

import (
	"bytes"
	"fmt"
	"os"

	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/tsa"
)

const (
	headerSize          = 0x10 // iNES header
	maxLoggedMismatches = 10
)

// VerifyOutput reads the image file at path and verifies that it matches the
// in-memory image expected and contains every table of r at its offset.
func VerifyOutput(logger *log.Logger, path string, binary bool, expected []byte, r *rom.ROM) error {
	saved, err := os.ReadFile(path)
	if err != nil {
		return errs.E(errs.IO, "verifying image", fmt.Errorf("reading saved file for comparison: %w", err))
	}

	if !binary {
		if err := compareCartridgeDetails(logger, expected, saved); err != nil {
			return fmt.Errorf("comparing cartridge details: %w", err)
		}
	} else if err := checkBufferEqual(logger, expected, saved, 0); err != nil {
		return fmt.Errorf("image mismatch: %w", err)
	}

	if err := VerifyTables(logger, saved, r); err != nil {
		return err
	}
	return nil
}

// VerifyTables verifies that data contains every table of r at its offset.
func VerifyTables(logger *log.Logger, data []byte, r *rom.ROM) error {
	for i, t := range r.TileSquareAssemblies() {
		end := t.Offset + tsa.TableSize
		if t.Offset < 0 || end > len(data) {
			return fmt.Errorf("tile square assembly %d at 0x%X is outside of the image", i, t.Offset)
		}
		if err := checkBufferEqual(logger, t.Bytes(), data[t.Offset:end], t.Offset); err != nil {
			return fmt.Errorf("tile square assembly %d mismatch: %w", i, err)
		}
	}
	return nil
}

// checkBufferEqual compares both buffers and logs the first mismatches with
// their offset in the image, base being the image offset of both buffers.
func checkBufferEqual(logger *log.Logger, input, output []byte, base int) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}
	if bytes.Equal(input, output) {
		return nil
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs <= maxLoggedMismatches {
			logger.Error("Offset mismatch",
				log.Hex("offset", base+i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	return fmt.Errorf("%d offset mismatches", diffs)
}

func compareCartridgeDetails(logger *log.Logger, input, output []byte) error {
	cart1, err := cartridge.LoadFile(bytes.NewReader(input))
	if err != nil {
		return fmt.Errorf("loading cartridge file: %w", err)
	}
	cart2, err := cartridge.LoadFile(bytes.NewReader(output))
	if err != nil {
		return fmt.Errorf("loading cartridge file: %w", err)
	}

	prgOffset := headerSize + len(cart1.Trainer)
	if err := checkBufferEqual(logger, cart1.PRG, cart2.PRG, prgOffset); err != nil {
		return fmt.Errorf("segment PRG mismatch: %w", err)
	}
	if err := checkBufferEqual(logger, cart1.CHR, cart2.CHR, prgOffset+len(cart1.PRG)); err != nil {
		return fmt.Errorf("segment CHR mismatch: %w", err)
	}
	if err := checkBufferEqual(logger, cart1.Trainer, cart2.Trainer, headerSize); err != nil {
		return fmt.Errorf("trainer mismatch: %w", err)
	}
	if cart1.Mapper != cart2.Mapper {
		return fmt.Errorf("mapper mismatch, expected %d but got %d", cart1.Mapper, cart2.Mapper)
	}
	if cart1.Mirror != cart2.Mirror {
		return fmt.Errorf("mirror mismatch, expected %d but got %d", cart1.Mirror, cart2.Mirror)
	}
	if cart1.Battery != cart2.Battery {
		return fmt.Errorf("battery mismatch, expected %d but got %d", cart1.Battery, cart2.Battery)
	}
	return nil
}
