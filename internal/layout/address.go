package layout

import "fmt"

// Address is a position inside a container. It may point outside of its
// container while being edited, containment is only enforced when saving.
type Address struct {
	name            string
	container       *Container
	containerOffset int
}

// NewAddress returns an address at containerOffset inside container.
func NewAddress(name string, container *Container, containerOffset int) *Address {
	return &Address{
		name:            name,
		container:       container,
		containerOffset: containerOffset,
	}
}

func (a *Address) String() string {
	return fmt.Sprintf("Address(%s, %s, 0x%X)", a.name, a.container, a.containerOffset)
}

// Name returns the name of the address.
func (a *Address) Name() string { return a.name }

// SetName sets the name of the address.
func (a *Address) SetName(name string) { a.name = name }

// Container returns the container the address is housed inside.
func (a *Address) Container() *Container { return a.container }

// ContainerOffset returns the offset of the address inside its container.
func (a *Address) ContainerOffset() int { return a.containerOffset }

// SetContainerOffset moves the address inside its container.
func (a *Address) SetContainerOffset(containerOffset int) { a.containerOffset = containerOffset }

// ROMOffset returns the linear ROM offset of the address.
func (a *Address) ROMOffset() int {
	return a.container.ROMOffset() + a.containerOffset
}

// SetROMOffset moves the address to the given linear ROM offset.
func (a *Address) SetROMOffset(romOffset int) {
	a.containerOffset = romOffset - a.container.ROMOffset()
}

// PCOffset returns the program counter offset of the address.
func (a *Address) PCOffset() int {
	return a.container.PCOffset() + a.containerOffset
}

// SetPCOffset moves the address to the given program counter offset.
func (a *Address) SetPCOffset(pcOffset int) {
	a.containerOffset = pcOffset - a.container.PCOffset()
}

// InsideContainer returns whether the address points inside its container.
func (a *Address) InsideContainer() bool {
	return a.container.Size() > a.containerOffset
}

// SpaceRemaining returns the number of bytes between the address and the end
// of its container.
func (a *Address) SpaceRemaining() int {
	return a.container.Size() - a.containerOffset
}
