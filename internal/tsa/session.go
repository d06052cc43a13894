package tsa

// Session is the deduplication table of one import or copy operation. All
// blocks created through a session are stored in its arena. A session is not
// safe for concurrent use; concurrent imports use their own sessions.
type Session struct {
	arena    *Arena
	imported map[Key]BlockID
	copied   map[CopyKey]BlockID
}

// NewSession returns an empty session that stores new blocks in arena.
func NewSession(arena *Arena) *Session {
	return &Session{
		arena:    arena,
		imported: make(map[Key]BlockID),
		copied:   make(map[CopyKey]BlockID),
	}
}

// Arena returns the arena that receives the blocks of the session.
func (s *Session) Arena() *Arena {
	return s.arena
}

// RegisterOrReuse returns the block registered for key, or stores the block
// returned by construct under key. Every block created during an import has
// to pass through here to stay deduplicated.
func (s *Session) RegisterOrReuse(key Key, construct func() Block) BlockID {
	if id, ok := s.imported[key]; ok {
		return id
	}
	id := s.arena.Add(construct())
	s.imported[key] = id
	return id
}

// Match returns the block registered for key while copying, or stores the
// block returned by construct under key.
func (s *Session) Match(key CopyKey, construct func() Block) BlockID {
	if id, ok := s.copied[key]; ok {
		return id
	}
	id := s.arena.Add(construct())
	s.copied[key] = id
	return id
}

// Len returns the number of registered keys.
func (s *Session) Len() int {
	return len(s.imported) + len(s.copied)
}

// Reset clears the session, keeping its arena.
func (s *Session) Reset() {
	clear(s.imported)
	clear(s.copied)
}
