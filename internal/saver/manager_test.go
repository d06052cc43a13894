package saver

import (
	"errors"
	"hash/fnv"
	"testing"

	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type document struct {
	name      string
	content   string
	compacted int
	colliding bool // every colliding document has the same snapshot
}

func (d *document) Snapshot() uint64 {
	if d.colliding {
		return 1
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(d.content))
	return h.Sum64()
}

func (d *document) Copy() *document {
	return &document{name: d.name, content: d.content, colliding: d.colliding}
}

func (d *document) Compact() error {
	d.compacted++
	return nil
}

type documentVerifier struct {
	resolutions int
	resolve     Resolver[*document]
}

func (v *documentVerifier) IsLike(a, b *document) bool {
	return a.content == b.content
}

func (v *documentVerifier) Resolution(primary, secondary *document) (*document, error) {
	v.resolutions++
	return v.resolve(primary, secondary)
}

func (v *documentVerifier) Apply(primary, secondary *document) (*document, error) {
	merged := primary.Copy()
	merged.content = secondary.content
	return merged, nil
}

func keepSecondary(_, secondary *document) (*document, error) {
	return secondary.Copy(), nil
}

func keepPrimary(primary, _ *document) (*document, error) {
	return primary.Copy(), nil
}

type storage struct {
	stored *document
	reads  int
	err    error
}

func (s *storage) read() (*document, error) {
	s.reads++
	if s.err != nil {
		return nil, s.err
	}
	return s.stored.Copy(), nil
}

func TestNew(t *testing.T) {
	t.Run("alike values keep main", func(t *testing.T) {
		disk := &storage{stored: &document{content: "a"}}
		verifier := &documentVerifier{resolve: keepSecondary}
		main := &document{name: "main", content: "a"}

		m, err := New(log.NewTestLogger(t), verifier, disk.read, main)
		assert.NoError(t, err)
		assert.Equal(t, 0, verifier.resolutions)
		assert.True(t, m.Main() == main)
		assert.True(t, m.Working() != main)
		assert.Equal(t, "a", m.Working().content)
		assert.Equal(t, 1, main.compacted)
		assert.False(t, m.HasChanges())
	})

	t.Run("diverged values are resolved", func(t *testing.T) {
		disk := &storage{stored: &document{content: "disk"}}
		verifier := &documentVerifier{resolve: keepSecondary}

		m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "memory"})
		assert.NoError(t, err)
		assert.Equal(t, 1, verifier.resolutions)
		assert.Equal(t, "disk", m.Main().content)
		assert.Equal(t, "disk", m.Working().content)
	})

	t.Run("read errors propagate", func(t *testing.T) {
		readErr := errors.New("device gone")
		disk := &storage{err: readErr}
		verifier := &documentVerifier{resolve: keepSecondary}

		_, err := New(log.NewTestLogger(t), verifier, disk.read, &document{})
		assert.True(t, errors.Is(err, readErr))
		assert.Equal(t, 1, disk.reads)
		assert.Equal(t, 0, verifier.resolutions)
	})

	t.Run("resolution errors propagate", func(t *testing.T) {
		resolveErr := errors.New("cancelled")
		disk := &storage{stored: &document{content: "disk"}}
		verifier := &documentVerifier{resolve: func(_, _ *document) (*document, error) {
			return nil, resolveErr
		}}

		_, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "memory"})
		assert.True(t, errors.Is(err, resolveErr))
	})
}

//nolint:funlen // test functions can be long
func TestUpdate(t *testing.T) {
	t.Run("working changes become main", func(t *testing.T) {
		disk := &storage{stored: &document{content: "a"}}
		verifier := &documentVerifier{resolve: keepSecondary}
		m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{name: "main", content: "a"})
		assert.NoError(t, err)

		m.Working().content = "b"
		assert.True(t, m.HasChanges())

		assert.NoError(t, m.Update())
		assert.Equal(t, 0, verifier.resolutions)
		assert.Equal(t, "b", m.Main().content)
		assert.Equal(t, "main", m.Main().name)
		assert.False(t, m.HasChanges())
		assert.True(t, m.Main() != m.Working())
	})

	t.Run("divergence resolves exactly once and the result is the basis", func(t *testing.T) {
		disk := &storage{stored: &document{content: "a"}}
		verifier := &documentVerifier{}
		verifier.resolve = func(primary, secondary *document) (*document, error) {
			chosen := secondary.Copy()
			chosen.name = "resolved"
			return chosen, nil
		}
		m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{name: "main", content: "a"})
		assert.NoError(t, err)

		disk.stored = &document{content: "changed on disk"}
		m.Working().content = "edited"

		assert.NoError(t, m.Update())
		assert.Equal(t, 1, verifier.resolutions)
		assert.Equal(t, "resolved", m.Main().name)
		assert.Equal(t, "edited", m.Main().content)
	})

	t.Run("converges after update", func(t *testing.T) {
		disk := &storage{stored: &document{content: "a"}}
		verifier := &documentVerifier{resolve: keepPrimary}
		m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "a"})
		assert.NoError(t, err)

		m.Working().content = "b"
		assert.NoError(t, m.Update())
		disk.stored = m.Main().Copy()

		diverged, err := m.Diverged()
		assert.NoError(t, err)
		assert.False(t, diverged)

		assert.NoError(t, m.Update())
		assert.Equal(t, 0, verifier.resolutions)
		assert.Equal(t, "b", m.Main().content)
	})

	t.Run("read errors propagate without retry", func(t *testing.T) {
		disk := &storage{stored: &document{content: "a"}}
		verifier := &documentVerifier{resolve: keepSecondary}
		m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "a"})
		assert.NoError(t, err)

		readErr := errors.New("read failed")
		disk.err = readErr
		main := m.Main()
		err = m.Update()
		assert.True(t, errors.Is(err, readErr))
		assert.Equal(t, 2, disk.reads)
		assert.True(t, m.Main() == main)

		_, err = m.Diverged()
		assert.True(t, errors.Is(err, readErr))
	})
}

func TestImportNew(t *testing.T) {
	disk := &storage{stored: &document{content: "a"}}
	verifier := &documentVerifier{resolve: keepSecondary}
	m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "a"})
	assert.NoError(t, err)
	main := m.Main()

	imported := &document{content: "imported"}
	m.ImportNew(imported)
	assert.True(t, m.Working() == imported)
	assert.True(t, m.Main() == main)
	assert.Equal(t, "a", m.Main().content)
	assert.True(t, m.HasChanges())

	assert.NoError(t, m.Update())
	assert.Equal(t, "imported", m.Main().content)
	assert.Equal(t, 0, verifier.resolutions)
}

func TestHasChanges_SnapshotCollision(t *testing.T) {
	disk := &storage{stored: &document{content: "a", colliding: true}}
	verifier := &documentVerifier{resolve: keepSecondary}
	m, err := New(log.NewTestLogger(t), verifier, disk.read, &document{content: "a", colliding: true})
	assert.NoError(t, err)
	assert.False(t, m.HasChanges())

	m.Working().content = "b"
	assert.Equal(t, m.Main().Snapshot(), m.Working().Snapshot())
	assert.True(t, m.HasChanges())

	assert.NoError(t, m.Update())
	assert.Equal(t, "b", m.Main().content)
	assert.False(t, m.HasChanges())
}
