package resources

import "sync/atomic"

// Shared is a reference to the current [Storage] that can be replaced while
// other goroutines read it.  Readers either see the old storage or the new one
// and never a partially updated one.
type Shared struct {
	current atomic.Pointer[Storage]
}

// NewShared returns a new *Shared with s as the current storage.  s may be
// nil, in which case the shared storage is empty.
func NewShared(s *Storage) (sh *Shared) {
	sh = &Shared{}
	sh.Store(s)

	return sh
}

// Load returns the current storage.  It is never nil.
func (sh *Shared) Load() (s *Storage) {
	return sh.current.Load()
}

// Store replaces the current storage with s.  A nil s is stored as an empty
// storage.
func (sh *Shared) Store(s *Storage) {
	if s == nil {
		s = &Storage{byName: map[string]*stored{}}
	}

	sh.current.Store(s)
}

// UseJSON parses data as in [Parse] and replaces the current storage with the
// result.  If data is invalid, the current storage is left untouched.
func (sh *Shared) UseJSON(data []byte) (err error) {
	s, err := Parse(data)
	if err != nil {
		return err
	}

	sh.Store(s)

	return nil
}
