// Package controller manages an editing session of the tile square assemblies
// of one image: it keeps the saved and the edited generation, writes them
// back to the image and exchanges them with interchange documents.
package controller

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/image"
	"github.com/retroenv/romsync/internal/interchange"
	"github.com/retroenv/romsync/internal/resolver"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/saver"
	"github.com/retroenv/romsync/internal/tileset"
	"github.com/retroenv/romsync/internal/verification"
)

// DefaultRefreshInterval is the time a HasChanges result is reused.
const DefaultRefreshInterval = 2 * time.Second

// Options configures a controller.
type Options struct {
	// Resolve decides between memory and image when the image was changed
	// externally. Defaults to keeping memory.
	Resolve saver.Resolver[*rom.ROM]

	// State is the document of a previous session. Its names and block
	// identities are kept as long as the image still matches it.
	State *interchange.Document

	RefreshInterval time.Duration
	Now             func() time.Time
}

// Controller is an editing session of one image. It is not safe for
// concurrent use.
type Controller struct {
	logger  *log.Logger
	image   *image.Image
	layout  tileset.Layout
	name    string
	manager *saver.Manager[*rom.ROM]
	tiles   *tileset.Map

	interval  time.Duration
	now       func() time.Time
	checkedAt time.Time
	changes   bool
}

// New discovers the tilesets of the image and starts a session for them.
func New(logger *log.Logger, img *image.Image, l tileset.Layout, opts Options) (*Controller, error) {
	c := &Controller{
		logger:   logger,
		image:    img,
		layout:   l,
		name:     romName(img.Path()),
		interval: opts.RefreshInterval,
		now:      opts.Now,
	}
	if c.interval <= 0 {
		c.interval = DefaultRefreshInterval
	}
	if c.now == nil {
		c.now = time.Now
	}

	resolve := opts.Resolve
	if resolve == nil {
		resolve = resolver.KeepMemory[*rom.ROM]
	}

	var (
		main *rom.ROM
		err  error
	)
	if opts.State != nil {
		main, err = opts.State.ROM()
		if err != nil {
			return nil, fmt.Errorf("loading state document: %w", err)
		}
		if main.Name == "" {
			main.Name = c.name
		}
	} else {
		main, err = c.fromFile()
		if err != nil {
			return nil, err
		}
	}

	manager, err := saver.New(logger, rom.NewVerifier(resolve), c.fromFile, main)
	if err != nil {
		return nil, fmt.Errorf("initializing session: %w", err)
	}
	c.manager = manager

	logger.Debug("Started session",
		log.String("rom", c.name),
		log.Int("tilesets", len(c.tiles.Tilesets)),
		log.Int("tile_square_assemblies", manager.Main().Len()))
	return c, nil
}

// fromFile rereads the image and its tilesets from disk.
func (c *Controller) fromFile() (*rom.ROM, error) {
	if err := c.image.Reload(); err != nil {
		return nil, err
	}

	tiles, err := tileset.Discover(c.image, c.layout)
	if err != nil {
		return nil, fmt.Errorf("discovering tilesets: %w", err)
	}
	c.tiles = tiles

	r, err := rom.FromImage(c.name, c.image, tiles.Locations())
	if err != nil {
		return nil, fmt.Errorf("reading tile square assemblies: %w", err)
	}
	return r, nil
}

// Tilesets returns the tilesets of the last read of the image.
func (c *Controller) Tilesets() *tileset.Map {
	return c.tiles
}

// Main returns the last saved generation.
func (c *Controller) Main() *rom.ROM {
	return c.manager.Main()
}

// Working returns the edited generation.
func (c *Controller) Working() *rom.ROM {
	return c.manager.Working()
}

// HasChanges returns whether the edited generation differs from the saved
// one. The result is reused for the refresh interval.
func (c *Controller) HasChanges() bool {
	now := c.now()
	if !c.checkedAt.IsZero() && now.Sub(c.checkedAt) < c.interval {
		return c.changes
	}

	c.changes = c.manager.HasChanges()
	c.checkedAt = now
	return c.changes
}

func (c *Controller) invalidate() {
	c.checkedAt = time.Time{}
}

// ImportNew replaces the edited generation by the content of a document.
func (c *Controller) ImportNew(doc *interchange.Document) error {
	r, err := doc.ROM()
	if err != nil {
		return fmt.Errorf("importing document: %w", err)
	}
	if r.Name == "" {
		r.Name = c.name
	}

	c.manager.ImportNew(r)
	c.invalidate()
	c.logger.Debug("Imported document", log.Int("tile_square_assemblies", r.Len()))
	return nil
}

// Save reconciles the edits with the image on disk, writes the result into
// the image file and verifies the written file.
func (c *Controller) Save() error {
	if err := c.manager.Update(); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	c.invalidate()

	main := c.manager.Main()
	if err := main.ApplyTo(c.image); err != nil {
		return fmt.Errorf("writing tile square assemblies: %w", err)
	}
	if err := c.image.Save(); err != nil {
		return err
	}

	if err := verification.VerifyOutput(c.logger, c.image.Path(), c.image.Binary(), c.image.Bytes(), main); err != nil {
		return fmt.Errorf("verifying saved image: %w", err)
	}

	c.logger.Info("Saved image",
		log.String("file", c.image.Path()),
		log.Int("tile_square_assemblies", main.Len()))
	return nil
}

// Diverged returns whether the image on disk differs from the saved
// generation.
func (c *Controller) Diverged() (bool, error) {
	diverged, err := c.manager.Diverged()
	if err != nil {
		return false, fmt.Errorf("checking image: %w", err)
	}
	return diverged, nil
}

// Mismatches returns the differences between the image on disk and the saved
// generation.
func (c *Controller) Mismatches() ([]rom.Mismatch, error) {
	stored, err := c.fromFile()
	if err != nil {
		return nil, err
	}
	return rom.Compare(c.manager.Main(), stored), nil
}

// Document returns the saved generation as interchange document.
func (c *Controller) Document() *interchange.Document {
	return interchange.FromROM(c.manager.Main())
}

// Export saves pending edits and writes the saved generation to a document
// file.
func (c *Controller) Export(path string, format interchange.Format) error {
	if c.manager.HasChanges() {
		if err := c.Save(); err != nil {
			return err
		}
	}

	if err := interchange.WriteFile(path, format, c.Document()); err != nil {
		return fmt.Errorf("exporting document: %w", err)
	}

	c.logger.Info("Exported document",
		log.String("file", path),
		log.String("format", string(format)),
		log.Int("tile_square_assemblies", c.manager.Main().Len()))
	return nil
}

func romName(path string) string {
	if path == "" {
		return ""
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
