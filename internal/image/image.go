// Package image handles the binary ROM image that tile square assemblies are
// read from and written to.
package image

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/retroenv/retrogolib/arch/system/nes/cartridge"
	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/errs"
)

// ErrOutOfRange is returned for accesses outside of the image.
var ErrOutOfRange = errors.New("access outside of image")

// Image is a binary ROM image held in memory. Offsets are file offsets,
// including the iNES header. Changes are kept in memory until Save is called.
type Image struct {
	logger *log.Logger
	path   string
	binary bool

	data []byte
	cart *cartridge.Cartridge
}

// Open loads the image file at path. Unless binary is set, the file has to
// start with a valid iNES header.
func Open(logger *log.Logger, path string, binary bool) (*Image, error) {
	img := &Image{
		logger: logger,
		path:   path,
		binary: binary,
	}
	if err := img.Reload(); err != nil {
		return nil, err
	}
	return img, nil
}

// Reload discards all unsaved changes and reads the file again.
func (img *Image) Reload() error {
	data, err := os.ReadFile(img.path)
	if err != nil {
		return errs.E(errs.IO, "reading image", fmt.Errorf("reading file %s: %w", img.path, err))
	}
	return img.load(data)
}

func (img *Image) load(data []byte) error {
	var (
		cart *cartridge.Cartridge
		err  error
	)
	reader := bytes.NewReader(data)
	if img.binary {
		cart, err = cartridge.LoadBuffer(reader)
	} else {
		cart, err = cartridge.LoadFile(reader)
	}
	if err != nil {
		return errs.E(errs.IO, "loading image", fmt.Errorf("loading cartridge: %w", err))
	}

	img.data = data
	img.cart = cart
	img.logger.Debug("Loaded image",
		log.String("file", img.path),
		log.Int("size", len(data)),
		log.Int("prg", len(cart.PRG)),
		log.Int("chr", len(cart.CHR)),
		log.Uint16("mapper", cart.Mapper))
	return nil
}

// Path returns the file the image is stored in.
func (img *Image) Path() string {
	return img.path
}

// Binary returns whether the image is a raw binary without iNES header check.
func (img *Image) Binary() bool {
	return img.binary
}

// Cartridge returns the parsed cartridge of the last load.
func (img *Image) Cartridge() *cartridge.Cartridge {
	return img.cart
}

// Len returns the size of the image.
func (img *Image) Len() int {
	return len(img.data)
}

// Bytes returns a copy of the image content.
func (img *Image) Bytes() []byte {
	return append([]byte(nil), img.data...)
}

// ReadBytes returns a copy of length bytes at offset.
func (img *Image) ReadBytes(length, offset int) ([]byte, error) {
	if err := img.checkRange(length, offset); err != nil {
		return nil, err
	}
	return append([]byte(nil), img.data[offset:offset+length]...), nil
}

// WriteBytes replaces the bytes at offset in memory.
func (img *Image) WriteBytes(data []byte, offset int) error {
	if err := img.checkRange(len(data), offset); err != nil {
		return err
	}
	copy(img.data[offset:], data)
	return nil
}

func (img *Image) checkRange(length, offset int) error {
	if offset < 0 || length < 0 || offset+length > len(img.data) {
		return errs.Errorf(errs.IO, "accessing image", "%w: 0x%X bytes at 0x%X, size 0x%X",
			ErrOutOfRange, length, offset, len(img.data))
	}
	return nil
}

// Save writes the image to its file. The file is replaced atomically so that
// a failed save does not leave a truncated image behind.
func (img *Image) Save() error {
	path := img.path
	file, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return errs.E(errs.IO, "saving image", fmt.Errorf("creating temp file: %w", err))
	}
	tmpName := file.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if info, err := os.Stat(path); err == nil {
		_ = file.Chmod(info.Mode().Perm())
	}

	if _, err := file.Write(img.data); err != nil {
		_ = file.Close()
		return errs.E(errs.IO, "saving image", fmt.Errorf("writing file %s: %w", tmpName, err))
	}
	if err := file.Close(); err != nil {
		return errs.E(errs.IO, "saving image", fmt.Errorf("closing file %s: %w", tmpName, err))
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errs.E(errs.IO, "saving image", fmt.Errorf("renaming file to %s: %w", path, err))
	}

	img.logger.Debug("Saved image", log.String("file", path), log.Int("size", len(img.data)))
	return nil
}
