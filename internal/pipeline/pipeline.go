// Package pipeline orchestrates the synchronization commands.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/retroenv/retrogolib/log"
	"github.com/retroenv/romsync/internal/config"
	"github.com/retroenv/romsync/internal/controller"
	"github.com/retroenv/romsync/internal/detector"
	"github.com/retroenv/romsync/internal/errs"
	"github.com/retroenv/romsync/internal/fileprocessor"
	"github.com/retroenv/romsync/internal/image"
	"github.com/retroenv/romsync/internal/interchange"
	"github.com/retroenv/romsync/internal/options"
	"github.com/retroenv/romsync/internal/resolver"
	"github.com/retroenv/romsync/internal/rom"
	"github.com/retroenv/romsync/internal/saver"
	"github.com/retroenv/romsync/internal/tileset"
)

// ErrDiverged is returned by the check command if the image does not match
// the state document.
var ErrDiverged = errors.New("image diverged from state document")

// Pipeline runs the commands of the program.
type Pipeline struct {
	logger   *log.Logger
	detector *detector.Detector
	layout   tileset.Layout
	resolve  saver.Resolver[*rom.ROM]
}

// New creates a new pipeline. resolve decides about external changes of the
// image, nil keeps the values in memory.
func New(logger *log.Logger, l tileset.Layout, resolve saver.Resolver[*rom.ROM]) *Pipeline {
	if resolve == nil {
		resolve = resolver.KeepMemory[*rom.ROM]
	}
	return &Pipeline{
		logger:   logger,
		detector: detector.New(logger),
		layout:   l,
		resolve:  resolve,
	}
}

// Execute runs the command of the options for the input file.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	img, err := image.Open(p.logger, opts.Input, opts.Binary)
	if err != nil {
		return fmt.Errorf("opening image: %w", err)
	}
	p.printInfo(opts, img)

	switch opts.Command {
	case options.CommandLayout:
		return p.printLayout(img, opts.Output)
	case options.CommandExport:
		return p.export(img, opts)
	case options.CommandImport:
		return p.importDocument(img, opts)
	case options.CommandSync:
		return p.sync(img, opts)
	case options.CommandCheck:
		return p.check(img, opts)
	default:
		return errs.Errorf(errs.Usage, "executing command", "unsupported command '%s'", opts.Command)
	}
}

// printLayout logs every discovered tileset and the banks containing them.
// If output is set, the layout is written to it as config file.
func (p *Pipeline) printLayout(img *image.Image, output string) error {
	m, err := tileset.Discover(img, p.layout)
	if err != nil {
		return fmt.Errorf("discovering tilesets: %w", err)
	}

	for _, ts := range m.Tilesets {
		p.logger.Info("Tileset",
			log.Int("index", ts.Index),
			log.Int("bank", ts.Bank),
			log.Hex("offset", ts.Location.Offset),
			log.Hex("pc", ts.Filler.Address().PCOffset()),
			log.Int("top_pattern_table", ts.Location.Top.Offset),
			log.Int("bottom_pattern_table", ts.Location.Bottom.Offset))
	}
	for _, bank := range m.Banks() {
		p.logger.Info("Bank",
			log.String("name", bank.Name()),
			log.Hex("offset", bank.ROMOffset()),
			log.Hex("size", bank.Size()),
			log.Int("tables", len(bank.Fillers())))
	}
	p.logger.Info("Layout",
		log.Int("tilesets", len(m.Tilesets)),
		log.Int("tile_square_assemblies", len(m.Locations())),
		log.Int("banks", len(m.Banks())))

	if output == "" {
		return nil
	}
	if err := config.SaveLayout(output, p.layout); err != nil {
		return err
	}
	p.logger.Info("Saved layout config", log.String("file", output))
	return nil
}

func (p *Pipeline) export(img *image.Image, opts options.Program) error {
	state, statePath, err := p.loadState(opts)
	if err != nil {
		return err
	}
	c, err := p.controller(img, state)
	if err != nil {
		return err
	}

	output := opts.Output
	format := p.detector.Detect(output, opts.Format)
	if output == "" {
		output = fileprocessor.GenerateOutputFilename(opts.Input, format)
	}
	if err := c.Export(output, format); err != nil {
		return err
	}

	if state != nil {
		return p.saveState(c, statePath)
	}
	return nil
}

func (p *Pipeline) importDocument(img *image.Image, opts options.Program) error {
	doc, err := interchange.ReadFile(opts.Document, p.detector.Detect(opts.Document, opts.Format))
	if err != nil {
		return fmt.Errorf("reading document: %w", err)
	}

	state, statePath, err := p.loadState(opts)
	if err != nil {
		return err
	}
	c, err := p.controller(img, state)
	if err != nil {
		return err
	}

	if err := c.ImportNew(doc); err != nil {
		return err
	}
	if err := c.Save(); err != nil {
		return err
	}
	return p.saveState(c, statePath)
}

func (p *Pipeline) sync(img *image.Image, opts options.Program) error {
	state, statePath, err := p.loadState(opts)
	if err != nil {
		return err
	}
	c, err := p.controller(img, state)
	if err != nil {
		return err
	}

	if err := c.Save(); err != nil {
		return err
	}
	return p.saveState(c, statePath)
}

func (p *Pipeline) check(img *image.Image, opts options.Program) error {
	state, statePath, err := p.loadState(opts)
	if err != nil {
		return err
	}
	if state == nil {
		return errs.Errorf(errs.Usage, "checking image", "state document %s does not exist, run sync first", statePath)
	}

	// checking never changes the state, the divergence is reported instead
	c, err := controller.New(p.logger, img, p.layout, controller.Options{
		Resolve: resolver.KeepMemory[*rom.ROM],
		State:   state,
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	mismatches, err := c.Mismatches()
	if err != nil {
		return err
	}
	if len(mismatches) == 0 {
		p.logger.Info("Image matches state document", log.String("state", statePath))
		return nil
	}

	for _, m := range mismatches {
		p.logger.Warn("Tile square assembly differs",
			log.Int("table", m.Table),
			log.Hex("offset", m.Offset),
			log.Int("block", m.Block))
	}
	return errs.Errorf(errs.Divergence, "checking image", "%w: %d tile square assemblies differ",
		ErrDiverged, len(mismatches))
}

func (p *Pipeline) controller(img *image.Image, state *interchange.Document) (*controller.Controller, error) {
	c, err := controller.New(p.logger, img, p.layout, controller.Options{
		Resolve: p.resolve,
		State:   state,
	})
	if err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	return c, nil
}

// loadState returns the state document of the input file and its path. The
// document is nil if it does not exist yet.
func (p *Pipeline) loadState(opts options.Program) (*interchange.Document, string, error) {
	path := opts.State
	if path == "" {
		path = fileprocessor.GenerateStateFilename(opts.Input, interchange.JSON)
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			p.logger.Debug("No state document found", log.String("state", path))
			return nil, path, nil
		}
		return nil, path, errs.E(errs.IO, "loading state", err)
	}

	doc, err := interchange.ReadFile(path, p.detector.Detect(path, ""))
	if err != nil {
		return nil, path, fmt.Errorf("reading state document: %w", err)
	}
	return doc, path, nil
}

func (p *Pipeline) saveState(c *controller.Controller, path string) error {
	if err := interchange.WriteFile(path, p.detector.Detect(path, ""), c.Document()); err != nil {
		return fmt.Errorf("writing state document: %w", err)
	}
	p.logger.Debug("Saved state document", log.String("state", path))
	return nil
}

// printInfo prints information about the ROM being processed.
func (p *Pipeline) printInfo(opts options.Program, img *image.Image) {
	if opts.Quiet {
		return
	}

	cart := img.Cartridge()
	p.logger.Info("Processing NES ROM",
		log.String("file", opts.Input),
		log.String("command", opts.Command),
		log.Uint16("mapper", cart.Mapper),
		log.Int("prg", len(cart.PRG)),
		log.Int("chr", len(cart.CHR)))
}
