// Package errs defines error kinds that let callers tell user actionable
// conditions apart from internal failures without inspecting messages.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind uint8

const (
	// Internal marks arithmetic, index or invariant failures inside the engine.
	Internal Kind = iota
	// Construction marks values that were rejected while being built.
	Construction
	// Overflow marks payloads that do not fit their container.
	Overflow
	// Divergence marks in-memory state that differs from the state on disk.
	Divergence
	// IO marks failures reading or writing the binary image or documents.
	IO
	// Usage marks invalid command line input.
	Usage
)

var kindNames = map[Kind]string{
	Internal:     "internal",
	Construction: "construction",
	Overflow:     "overflow",
	Divergence:   "divergence",
	IO:           "io",
	Usage:        "usage",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Error attaches a kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E returns a new kinded error for the given operation.
func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf returns a new kinded error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of the first kinded error in the chain of err.
// Errors without a kind are reported as Internal.
func KindOf(err error) Kind {
	var kinded *Error
	if errors.As(err, &kinded) {
		return kinded.Kind
	}
	var kindErr interface{ ErrorKind() Kind }
	if errors.As(err, &kindErr) {
		return kindErr.ErrorKind()
	}
	return Internal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
