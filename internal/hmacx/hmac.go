// Package hmacx implements HMAC generic over the sha2.Digest-shaped hash
// capability used throughout this module, rather than crypto/hmac's
// hash.Hash. It exists because PBKDF2 needs to clone a keyed HMAC once per
// iteration instead of re-absorbing the key on every call (see
// original_source/src/WarpedDrive/HMAC.cpp).
package hmacx

// Hash is the capability HMAC is generic over: anything that can be written
// to, finalized non-destructively via Sum, and cloned mid-stream.
// internal/sha2.Digest satisfies Hash[*sha2.Digest].
type Hash[S any] interface {
	Write([]byte) (int, error)
	Sum([]byte) []byte
	Size() int
	BlockSize() int
	Clone() S
}

// HMAC holds the inner and outer hash states absorbed from a key, one
// block long each, so that a fresh HMAC of the same key is just a Clone
// away. New does the key padding once; PBKDF2 clones per iteration.
type HMAC[S Hash[S]] struct {
	inner S
	outer S
	size  int
}

// New derives an HMAC over newHash() from key. newHash is a hash
// constructor, e.g. sha2.New256.
func New[S Hash[S]](newHash func() S, key []byte) *HMAC[S] {
	inner := newHash()
	outer := newHash()
	chunk := inner.BlockSize()

	block := make([]byte, chunk)
	if len(key) > chunk {
		h := newHash()
		h.Write(key)
		copy(block, h.Sum(nil))
	} else {
		copy(block, key)
	}

	ipad := make([]byte, chunk)
	opad := make([]byte, chunk)
	for i := 0; i < chunk; i++ {
		ipad[i] = 0x36 ^ block[i]
		opad[i] = 0x5c ^ block[i]
	}
	inner.Write(ipad)
	outer.Write(opad)

	return &HMAC[S]{inner: inner, outer: outer, size: outer.Size()}
}

// Clone returns an independent copy of h, absorbing the same key-padded
// prefix without recomputing it.
func (h *HMAC[S]) Clone() *HMAC[S] {
	return &HMAC[S]{inner: h.inner.Clone(), outer: h.outer.Clone(), size: h.size}
}

// Write absorbs more message data. It is equivalent to the source's
// update(), which always routes to the inner state.
func (h *HMAC[S]) Write(p []byte) (int, error) {
	return h.inner.Write(p)
}

// Size returns the MAC length in bytes.
func (h *HMAC[S]) Size() int { return h.size }

// Sum finalizes the inner hash, feeds its digest through a clone of the
// outer state, and returns the MAC appended to b. Like sha2.Digest.Sum, it
// does not mutate h.
func (h *HMAC[S]) Sum(b []byte) []byte {
	innerSum := h.inner.Sum(nil)
	outer := h.outer.Clone()
	outer.Write(innerSum)
	return outer.Sum(b)
}
