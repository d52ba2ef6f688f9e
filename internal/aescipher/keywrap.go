package aescipher

import (
	"crypto/subtle"
	"fmt"
)

// integrityConstant is the fixed initial value RFC 3394 section 2.2.3.1
// requires chaining variable A to equal on a successful unwrap.
var integrityConstant = [8]byte{0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6, 0xa6}

// Unwrap reverses RFC 3394 AES key-wrap: given a 16/24/32-byte KEK and
// wrapped, a multiple of 8 bytes with len(wrapped) >= 16, it recovers the
// n*8 = len(wrapped)-8 wrapped bytes. Grounded on
// original_source/CoreStorage/KEK.cpp (aes_unwrap), which implements the
// same chaining-variable loop but — per spec.md section 9 — never checks A
// against the integrity constant; this implementation enforces it, as the
// source recommends.
func Unwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped) < 16 || len(wrapped)%8 != 0 {
		return nil, fmt.Errorf("aescipher: wrapped key length %d is not a multiple of 8 bytes >= 16", len(wrapped))
	}
	cipher, err := New(kek, Decrypt)
	if err != nil {
		return nil, err
	}
	defer cipher.Zero()

	n := (len(wrapped) - 8) / 8
	var a [8]byte
	copy(a[:], wrapped[:8])

	r := make([][8]byte, n+1) // 1-indexed; r[0] unused
	for i := 1; i <= n; i++ {
		copy(r[i][:], wrapped[i*8:i*8+8])
	}

	var block [16]byte
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			copy(block[:8], a[:])
			for k := 0; k < 8; k++ {
				block[k] ^= byte(t >> (uint(7-k) * 8))
			}
			copy(block[8:], r[i][:])

			cipher.ECB(block[:], block[:])

			copy(a[:], block[:8])
			copy(r[i][:], block[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], integrityConstant[:]) != 1 {
		return nil, fmt.Errorf("aescipher: key-unwrap integrity check failed")
	}

	out := make([]byte, n*8)
	for i := 1; i <= n; i++ {
		copy(out[(i-1)*8:], r[i][:])
	}
	return out, nil
}

// Wrap implements the forward RFC 3394 AES key-wrap, provided for
// completeness and testing symmetry with Unwrap.
func Wrap(kek, plain []byte) ([]byte, error) {
	if len(plain) < 16 || len(plain)%8 != 0 {
		return nil, fmt.Errorf("aescipher: plaintext key length %d is not a multiple of 8 bytes >= 16", len(plain))
	}
	cipher, err := New(kek, Encrypt)
	if err != nil {
		return nil, err
	}
	defer cipher.Zero()

	n := len(plain) / 8
	a := integrityConstant
	r := make([][8]byte, n+1)
	for i := 1; i <= n; i++ {
		copy(r[i][:], plain[(i-1)*8:i*8])
	}

	var block [16]byte
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(block[:8], a[:])
			copy(block[8:], r[i][:])

			cipher.ECB(block[:], block[:])

			copy(a[:], block[:8])
			t := uint64(n*j + i)
			for k := 0; k < 8; k++ {
				a[k] ^= byte(t >> (uint(7-k) * 8))
			}
			copy(r[i][:], block[8:])
		}
	}

	out := make([]byte, 8+n*8)
	copy(out[:8], a[:])
	for i := 1; i <= n; i++ {
		copy(out[i*8:], r[i][:])
	}
	return out, nil
}
