// Package saver reconciles an editable in-memory value with the version that
// is stored on disk.
package saver

// Saver is a value that can be managed.
type Saver[T any] interface {
	// Snapshot returns a content fingerprint. Different snapshots have to
	// imply that the verifier considers both values not alike.
	Snapshot() uint64
	// Copy returns an independent duplicate.
	Copy() T
}

// Compactor is implemented by values that can release storage that is no
// longer referenced after they became the main value.
type Compactor interface {
	Compact() error
}

// Resolver chooses the value to continue with when the stored value diverged
// from the value in memory. It may block until a user decided.
type Resolver[T any] func(primary, secondary T) (T, error)

// Verifier compares and merges values.
type Verifier[T any] interface {
	// IsLike returns whether both values have the same content.
	IsLike(a, b T) bool
	// Resolution decides between the value in memory and the stored value.
	Resolution(primary, secondary T) (T, error)
	// Apply returns a copy of primary with the content of secondary.
	Apply(primary, secondary T) (T, error)
}

// Source reads the current stored value.
type Source[T any] func() (T, error)
