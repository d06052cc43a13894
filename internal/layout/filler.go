package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/retroenv/romsync/internal/errs"
)

// ErrPayloadTooLarge is returned when a payload exceeds the size of its filler.
var ErrPayloadTooLarge = errors.New("payload exceeds filler size")

// Filler is a variable length payload anchored to an address.
type Filler struct {
	address *Address
	size    int
	payload []byte
}

// NewFiller returns a filler of size bytes at address. The payload is copied
// and may be shorter than size, the remainder is filled with zeros.
func NewFiller(address *Address, size int, payload []byte) (*Filler, error) {
	if size < 0 {
		return nil, errs.E(errs.Construction, "creating filler", ErrNegativeSize)
	}
	if len(payload) > size {
		return nil, errs.Errorf(errs.Construction, "creating filler", "%w: %d > %d",
			ErrPayloadTooLarge, len(payload), size)
	}

	return &Filler{
		address: address,
		size:    size,
		payload: append([]byte(nil), payload...),
	}, nil
}

func (f *Filler) String() string {
	return fmt.Sprintf("Filler(%s, 0x%X)", f.address, f.size)
}

// Address returns the address the filler is anchored to.
func (f *Filler) Address() *Address { return f.address }

// Size returns the number of bytes the filler reserves.
func (f *Filler) Size() int { return f.size }

// Payload returns a copy of the payload.
func (f *Filler) Payload() []byte {
	return append([]byte(nil), f.payload...)
}

// SetPayload replaces the payload, keeping the reserved size.
func (f *Filler) SetPayload(payload []byte) error {
	if len(payload) > f.size {
		return errs.Errorf(errs.Construction, "setting filler payload", "%w: %d > %d",
			ErrPayloadTooLarge, len(payload), f.size)
	}
	f.payload = append(f.payload[:0], payload...)
	return nil
}

// InsideContainer returns whether the whole filler fits inside the container
// of its address.
func (f *Filler) InsideContainer() bool {
	start := f.address.ContainerOffset()
	return start >= 0 && start+f.size <= f.address.Container().Size()
}

// SpaceRemaining returns the bytes left in the container after the filler.
func (f *Filler) SpaceRemaining() int {
	return f.address.Container().Size() - f.address.ContainerOffset() - f.size
}

// Bytes returns exactly Size bytes, the payload left aligned and zero filled.
func (f *Filler) Bytes() []byte {
	b := make([]byte, f.size)
	copy(b, f.payload)
	return b
}

// OverflowError reports every filler and child container that does not fit
// inside its container.
type OverflowError struct {
	Container *Container
	Fillers   []*Filler
	Children  []*Container
}

func (e *OverflowError) Error() string {
	var parts []string
	for _, filler := range e.Fillers {
		parts = append(parts, filler.String())
	}
	for _, child := range e.Children {
		parts = append(parts, child.String())
	}
	return fmt.Sprintf("%s can not be saved, not inside container: %s",
		e.Container, strings.Join(parts, ", "))
}

// ErrorKind marks the error as an overflow.
func (e *OverflowError) ErrorKind() errs.Kind {
	return errs.Overflow
}
