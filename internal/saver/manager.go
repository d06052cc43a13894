package saver

import (
	"fmt"

	"github.com/retroenv/retrogolib/log"
)

// Manager keeps the generations of a value: main is the last saved value,
// working is the edited copy of main and the stored value is read on demand
// from the source. A manager is not safe for concurrent use.
type Manager[T Saver[T]] struct {
	logger   *log.Logger
	verifier Verifier[T]
	fromFile Source[T]

	main    T
	working T
}

// New returns a manager for main and initializes it against the stored value.
// If the stored value diverged from main, the resolution of the verifier
// decides which value becomes main.
func New[T Saver[T]](logger *log.Logger, verifier Verifier[T], fromFile Source[T], main T) (*Manager[T], error) {
	m := &Manager[T]{
		logger:   logger,
		verifier: verifier,
		fromFile: fromFile,
	}

	stored, err := fromFile()
	if err != nil {
		return nil, fmt.Errorf("reading stored value: %w", err)
	}

	if !verifier.IsLike(stored, main) {
		m.logger.Debug("Stored value diverged on initialization")
		main, err = verifier.Resolution(main, stored)
		if err != nil {
			return nil, fmt.Errorf("resolving diverged value: %w", err)
		}
	}

	if err := m.setMain(main); err != nil {
		return nil, err
	}
	return m, nil
}

// Main returns the last saved value.
func (m *Manager[T]) Main() T {
	return m.main
}

// Working returns the edited value.
func (m *Manager[T]) Working() T {
	return m.working
}

// HasChanges returns whether the working value differs from main.
func (m *Manager[T]) HasChanges() bool {
	if m.main.Snapshot() != m.working.Snapshot() {
		return true
	}
	return !m.verifier.IsLike(m.main, m.working)
}

// ImportNew replaces the working value. main is not touched until the next
// update.
func (m *Manager[T]) ImportNew(value T) {
	m.working = value
}

// Diverged returns whether the stored value differs from main.
func (m *Manager[T]) Diverged() (bool, error) {
	stored, err := m.fromFile()
	if err != nil {
		return false, fmt.Errorf("reading stored value: %w", err)
	}
	return !m.verifier.IsLike(stored, m.main), nil
}

// Update rereads the stored value, resolves a divergence against main and
// merges the working value into the result, which becomes the new main.
// The resolution runs at most once per update.
func (m *Manager[T]) Update() error {
	stored, err := m.fromFile()
	if err != nil {
		return fmt.Errorf("reading stored value: %w", err)
	}

	primary := m.main
	if !m.verifier.IsLike(stored, m.main) {
		m.logger.Debug("Stored value diverged on update")
		primary, err = m.verifier.Resolution(m.main, stored)
		if err != nil {
			return fmt.Errorf("resolving diverged value: %w", err)
		}
	}

	merged, err := m.verifier.Apply(primary, m.working)
	if err != nil {
		return fmt.Errorf("applying working value: %w", err)
	}
	return m.setMain(merged)
}

// setMain replaces main and resets working to a copy of it.
func (m *Manager[T]) setMain(value T) error {
	if c, ok := any(value).(Compactor); ok {
		if err := c.Compact(); err != nil {
			return fmt.Errorf("compacting value: %w", err)
		}
	}
	m.main = value
	m.working = value.Copy()
	return nil
}
