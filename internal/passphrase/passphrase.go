// Package passphrase supplies the volume passphrase used to unwrap a
// Core Storage KEK. The original tool (original_source/CoreStorage/
// Password.cpp) reads it from a terminal with echo disabled and left a
// "FIXME: zero out string" on the way out. The echo-suppressed prompt
// lives in cmd/csrecover; this package defines the Source interface it
// implements and honors that FIXME with an explicit Zero() that every
// caller is expected to defer.
package passphrase

// Source supplies a passphrase on demand and can wipe it from memory once
// the caller is done with it.
type Source interface {
	// Get returns the passphrase bytes. The returned slice is owned by the
	// Source; callers must not retain it past a call to Zero.
	Get() ([]byte, error)
	// Zero overwrites the held passphrase bytes with zero.
	Zero()
}

// Static is a Source over passphrase bytes already held in memory, e.g.
// from a CLI flag or an environment variable.
type Static struct {
	b []byte
}

// NewStatic takes ownership of b; the caller must not use b after
// constructing a Static from it.
func NewStatic(b []byte) *Static {
	return &Static{b: b}
}

func (s *Static) Get() ([]byte, error) {
	return s.b, nil
}

func (s *Static) Zero() {
	for i := range s.b {
		s.b[i] = 0
	}
}
