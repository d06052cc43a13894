// Package layout tracks named regions of a ROM image in linear ROM and bank
// relative program counter coordinates, and the payloads placed inside them.
package layout

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/retroenv/retrogolib/set"
	"github.com/retroenv/romsync/internal/errs"
)

var (
	// ErrNegativeSize is returned for containers or fillers with a negative size.
	ErrNegativeSize = errors.New("negative size")
	// ErrCycle is returned when adding a child would create a cycle.
	ErrCycle = errors.New("container cycle")
	// ErrForeignFiller is returned when a filler is anchored to another container.
	ErrForeignFiller = errors.New("filler is anchored to a different container")
)

// Container is a region of the ROM, addressable in both coordinate systems.
// Container level mutation is serialized against placement checks.
type Container struct {
	mu sync.Mutex

	name      string
	romOffset int
	pcOffset  int
	size      int

	parent   *Container
	children set.Set[*Container]
	fillers  set.Set[*Filler]
}

// NewContainer returns a new container describing a memory region.
func NewContainer(name string, romOffset, pcOffset, size int) (*Container, error) {
	if size < 0 {
		return nil, errs.E(errs.Construction, "creating container "+name, ErrNegativeSize)
	}
	return &Container{
		name:      name,
		romOffset: romOffset,
		pcOffset:  pcOffset,
		size:      size,
		children:  set.New[*Container](),
		fillers:   set.New[*Filler](),
	}, nil
}

func (c *Container) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return fmt.Sprintf("Container(%s, 0x%X, 0x%04X, 0x%X)", c.name, c.romOffset, c.pcOffset, c.size)
}

// Name returns the name of the container.
func (c *Container) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.name
}

// SetName sets the name of the container.
func (c *Container) SetName(name string) {
	c.mu.Lock()
	c.name = name
	c.mu.Unlock()
}

// ROMOffset returns the linear offset of the container in the ROM.
func (c *Container) ROMOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.romOffset
}

// SetROMOffset sets the linear ROM offset. The program counter offset is
// not changed.
func (c *Container) SetROMOffset(romOffset int) {
	c.mu.Lock()
	c.romOffset = romOffset
	c.mu.Unlock()
}

// PCOffset returns the 16 bit program counter offset of the container.
func (c *Container) PCOffset() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pcOffset
}

// SetPCOffset sets the program counter offset. The ROM offset is not changed.
func (c *Container) SetPCOffset(pcOffset int) {
	c.mu.Lock()
	c.pcOffset = pcOffset
	c.mu.Unlock()
}

// Size returns the number of bytes the container spans.
func (c *Container) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// SetSize resizes the container. Fillers are not checked until saving.
func (c *Container) SetSize(size int) error {
	if size < 0 {
		return errs.E(errs.Construction, "resizing container "+c.Name(), ErrNegativeSize)
	}
	c.mu.Lock()
	c.size = size
	c.mu.Unlock()
	return nil
}

// Parent returns the parent container or nil.
func (c *Container) Parent() *Container {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.parent
}

// Children returns the child containers ordered by ROM offset.
func (c *Container) Children() []*Container {
	c.mu.Lock()
	children := make([]*Container, 0, len(c.children))
	for child := range c.children {
		children = append(children, child)
	}
	c.mu.Unlock()

	sort.Slice(children, func(i, j int) bool {
		return children[i].ROMOffset() < children[j].ROMOffset()
	})
	return children
}

// AddChild adds child to the container, detaching it from a previous parent.
// Offsets of the child are stored fields and are not recomputed.
func (c *Container) AddChild(child *Container) error {
	for p := c; p != nil; p = p.Parent() {
		if p == child {
			return errs.E(errs.Construction, "adding child "+child.Name(), ErrCycle)
		}
	}

	if old := child.Parent(); old != nil && old != c {
		old.RemoveChild(child)
	}

	c.mu.Lock()
	c.children.Add(child)
	c.mu.Unlock()

	child.mu.Lock()
	child.parent = c
	child.mu.Unlock()
	return nil
}

// RemoveChild removes child from the container if it is a child of it.
func (c *Container) RemoveChild(child *Container) {
	c.mu.Lock()
	if !c.children.Contains(child) {
		c.mu.Unlock()
		return
	}
	delete(c.children, child)
	c.mu.Unlock()

	child.mu.Lock()
	if child.parent == c {
		child.parent = nil
	}
	child.mu.Unlock()
}

// RemoveChildren removes all children of the container.
func (c *Container) RemoveChildren() {
	for _, child := range c.Children() {
		c.RemoveChild(child)
	}
}

// AddFiller places filler inside the container. The filler has to be anchored
// to an address of this container.
func (c *Container) AddFiller(filler *Filler) error {
	if filler.Address().Container() != c {
		return errs.E(errs.Construction, "placing filler", ErrForeignFiller)
	}
	c.mu.Lock()
	c.fillers.Add(filler)
	c.mu.Unlock()
	return nil
}

// RemoveFiller removes filler from the container.
func (c *Container) RemoveFiller(filler *Filler) {
	c.mu.Lock()
	delete(c.fillers, filler)
	c.mu.Unlock()
}

// Fillers returns the fillers placed directly inside the container, ordered by
// their container offset.
func (c *Container) Fillers() []*Filler {
	c.mu.Lock()
	fillers := make([]*Filler, 0, len(c.fillers))
	for filler := range c.fillers {
		fillers = append(fillers, filler)
	}
	c.mu.Unlock()

	sort.SliceStable(fillers, func(i, j int) bool {
		return fillers[i].Address().ContainerOffset() < fillers[j].Address().ContainerOffset()
	})
	return fillers
}

// AllFillers returns the fillers of the container and all of its descendants.
func (c *Container) AllFillers() []*Filler {
	fillers := c.Fillers()
	for _, child := range c.Children() {
		fillers = append(fillers, child.AllFillers()...)
	}
	return fillers
}

// SafeToSave returns whether every filler transitively anchored within the
// container fits inside its own container.
func (c *Container) SafeToSave() bool {
	for _, filler := range c.AllFillers() {
		if !filler.InsideContainer() {
			return false
		}
	}
	return len(c.misplacedChildren()) == 0
}

// Bytes renders the container into a buffer of its size. Fillers are placed
// at their container offsets and children at their relative ROM offsets.
// An OverflowError naming every offending filler is returned instead of
// truncated data.
func (c *Container) Bytes() ([]byte, error) {
	overflow := &OverflowError{Container: c}
	for _, filler := range c.AllFillers() {
		if !filler.InsideContainer() {
			overflow.Fillers = append(overflow.Fillers, filler)
		}
	}
	overflow.Children = c.misplacedChildren()
	if len(overflow.Fillers) > 0 || len(overflow.Children) > 0 {
		return nil, overflow
	}

	return c.render(c.Children()), nil
}

func (c *Container) render(children []*Container) []byte {
	buf := make([]byte, c.Size())
	base := c.ROMOffset()

	for _, child := range children {
		childBytes := child.render(child.Children())
		copy(buf[child.ROMOffset()-base:], childBytes)
	}
	for _, filler := range c.Fillers() {
		copy(buf[filler.Address().ContainerOffset():], filler.Bytes())
	}
	return buf
}

// misplacedChildren returns all descendants that do not lie inside their parent.
func (c *Container) misplacedChildren() []*Container {
	var misplaced []*Container
	for _, child := range c.Children() {
		if !c.encloses(child) {
			misplaced = append(misplaced, child)
		}
		misplaced = append(misplaced, child.misplacedChildren()...)
	}
	return misplaced
}

// encloses returns whether child lies completely inside the container.
func (c *Container) encloses(child *Container) bool {
	start := child.ROMOffset() - c.ROMOffset()
	return start >= 0 && start+child.Size() <= c.Size()
}
