// Package sha2 implements the SHA-2 family (SHA-224/256/384/512) as a single
// state machine parameterized by bit width, rather than as four unrelated
// stdlib types. It exists because the HMAC and PBKDF2 layers built on top of
// it need to clone mid-stream digest state, which hash.Hash does not expose.
package sha2

import "encoding/binary"

// the fractional parts of the square roots of the first 16 primes 2..53
var primeSquareRoots = [16]uint64{
	0x6a09e667f3bcc908, 0xbb67ae8584caa73b, 0x3c6ef372fe94f82b, 0xa54ff53a5f1d36f1,
	0x510e527fade682d1, 0x9b05688c2b3e6c1f, 0x1f83d9abfb41bd6b, 0x5be0cd19137e2179,
	0xcbbb9d5dc1059ed8, 0x629a292a367cd507, 0x9159015a3070dd17, 0x152fecd8f70e5939,
	0x67332667ffc00b31, 0x8eb44a8768581511, 0xdb0c2e0d64f98fa7, 0x47b5481dbefa4fa4,
}

// the fractional parts of the cube roots of the first 80 primes 2..409
var primeCubeRoots = [80]uint64{
	0x428a2f98d728ae22, 0x7137449123ef65cd, 0xb5c0fbcfec4d3b2f, 0xe9b5dba58189dbbc,
	0x3956c25bf348b538, 0x59f111f1b605d019, 0x923f82a4af194f9b, 0xab1c5ed5da6d8118,
	0xd807aa98a3030242, 0x12835b0145706fbe, 0x243185be4ee4b28c, 0x550c7dc3d5ffb4e2,
	0x72be5d74f27b896f, 0x80deb1fe3b1696b1, 0x9bdc06a725c71235, 0xc19bf174cf692694,
	0xe49b69c19ef14ad2, 0xefbe4786384f25e3, 0x0fc19dc68b8cd5b5, 0x240ca1cc77ac9c65,
	0x2de92c6f592b0275, 0x4a7484aa6ea6e483, 0x5cb0a9dcbd41fbd4, 0x76f988da831153b5,
	0x983e5152ee66dfab, 0xa831c66d2db43210, 0xb00327c898fb213f, 0xbf597fc7beef0ee4,
	0xc6e00bf33da88fc2, 0xd5a79147930aa725, 0x06ca6351e003826f, 0x142929670a0e6e70,
	0x27b70a8546d22ffc, 0x2e1b21385c26c926, 0x4d2c6dfc5ac42aed, 0x53380d139d95b3df,
	0x650a73548baf63de, 0x766a0abb3c77b2a8, 0x81c2c92e47edaee6, 0x92722c851482353b,
	0xa2bfe8a14cf10364, 0xa81a664bbc423001, 0xc24b8b70d0f89791, 0xc76c51a30654be30,
	0xd192e819d6ef5218, 0xd69906245565a910, 0xf40e35855771202a, 0x106aa07032bbd1b8,
	0x19a4c116b8d2d0c8, 0x1e376c085141ab53, 0x2748774cdf8eeb99, 0x34b0bcb5e19b48a8,
	0x391c0cb3c5c95a63, 0x4ed8aa4ae3418acb, 0x5b9cca4f7763e373, 0x682e6ff3d6b2b8a3,
	0x748f82ee5defb2fc, 0x78a5636f43172f60, 0x84c87814a1f0ab72, 0x8cc702081a6439ec,
	0x90befffa23631e28, 0xa4506cebde82bde9, 0xbef9a3f7b2c67915, 0xc67178f2e372532b,
	0xca273eceea26619c, 0xd186b8c721c0c207, 0xeada7dd6cde0eb1e, 0xf57d4f7fee6ed178,
	0x06f067aa72176fba, 0x0a637dc5a2c898a6, 0x113f9804bef90dae, 0x1b710b35131c471b,
	0x28db77f523047d84, 0x32caab7b40c72493, 0x3c9ebe0a15c9bebc, 0x431d67c49c100d4c,
	0x4cc5d4becb3e42b6, 0x597f299cfc657e2a, 0x5fcb6fab3ad6faec, 0x6c44198c4a475817,
}

// Digest is SHA-2 generic over bit width. The zero value is not usable; use
// New224/New256/New384/New512.
type Digest struct {
	bits  int // 224, 256, 384 or 512
	width int // word width in bits: 32 for bits<=256, else 64
	chunk int // block size in bytes: 64 or 128
	h     [8]uint64
	buf   [128]byte
	nbuf  int    // bytes currently buffered in buf
	n     uint64 // total bytes written so far (not including buf)
}

func newDigest(bits int) *Digest {
	d := &Digest{bits: bits}
	if bits <= 256 {
		d.width = 32
		d.chunk = 64
	} else {
		d.width = 64
		d.chunk = 128
	}
	switch bits {
	case 224:
		for i := 0; i < 8; i++ {
			d.h[i] = primeSquareRoots[i+8] & 0xFFFFFFFF
		}
	case 256:
		for i := 0; i < 8; i++ {
			d.h[i] = primeSquareRoots[i] >> 32
		}
	case 384:
		copy(d.h[:], primeSquareRoots[8:16])
	case 512:
		copy(d.h[:], primeSquareRoots[:8])
	}
	return d
}

// New224 returns a new SHA-224 Digest.
func New224() *Digest { return newDigest(224) }

// New256 returns a new SHA-256 Digest.
func New256() *Digest { return newDigest(256) }

// New384 returns a new SHA-384 Digest.
func New384() *Digest { return newDigest(384) }

// New512 returns a new SHA-512 Digest.
func New512() *Digest { return newDigest(512) }

// BlockSize returns the chunk size used internally, i.e. HMAC's key-padding
// length for this width.
func (d *Digest) BlockSize() int { return d.chunk }

// Size returns the digest length in bytes.
func (d *Digest) Size() int { return d.bits / 8 }

// Clone returns an independent copy of d's state, letting HMAC and PBKDF2
// fork a keyed digest without re-absorbing the key.
func (d *Digest) Clone() *Digest {
	c := *d
	return &c
}

func rotr(v uint64, width, shift uint) uint64 {
	return (v >> shift) | (v << (width - shift))
}

func (d *Digest) block(data []byte) {
	var values [80]uint64
	rounds := 64
	if d.width == 64 {
		rounds = 80
	}

	w := uint(d.width)
	for i := 0; i < 16; i++ {
		off := i * d.width / 8
		if d.width == 32 {
			values[i] = uint64(binary.BigEndian.Uint32(data[off:]))
		} else {
			values[i] = binary.BigEndian.Uint64(data[off:])
		}
	}

	for i := 16; i < rounds; i++ {
		var s0, s1 uint64
		if d.width == 32 {
			s0 = rotr(values[i-15], w, 7) ^ rotr(values[i-15], w, 18) ^ (values[i-15] >> 3)
			s1 = rotr(values[i-2], w, 17) ^ rotr(values[i-2], w, 19) ^ (values[i-2] >> 10)
		} else {
			s0 = rotr(values[i-15], w, 1) ^ rotr(values[i-15], w, 8) ^ (values[i-15] >> 7)
			s1 = rotr(values[i-2], w, 19) ^ rotr(values[i-2], w, 61) ^ (values[i-2] >> 6)
		}
		values[i] = values[i-16] + s0 + values[i-7] + s1
		if d.width == 32 {
			values[i] &= 0xFFFFFFFF
		}
	}

	hash := d.h

	for i := 0; i < rounds; i++ {
		var s0, s1, t1, t2 uint64
		if d.width == 32 {
			s0 = rotr(hash[0], w, 2) ^ rotr(hash[0], w, 13) ^ rotr(hash[0], w, 22)
			s1 = rotr(hash[4], w, 6) ^ rotr(hash[4], w, 11) ^ rotr(hash[4], w, 25)
			t1 = primeCubeRoots[i] >> 32
		} else {
			s0 = rotr(hash[0], w, 28) ^ rotr(hash[0], w, 34) ^ rotr(hash[0], w, 39)
			s1 = rotr(hash[4], w, 14) ^ rotr(hash[4], w, 18) ^ rotr(hash[4], w, 41)
			t1 = primeCubeRoots[i]
		}
		t1 += s1 + hash[7] + values[i] + ((hash[4] & hash[5]) ^ (^hash[4] & hash[6]))
		t2 = s0 + ((hash[0] & hash[1]) ^ (hash[0] & hash[2]) ^ (hash[1] & hash[2]))

		for j := 7; j > 0; j-- {
			hash[j] = hash[j-1]
		}
		hash[0] = t1 + t2
		hash[4] += t1
		if d.width == 32 {
			hash[0] &= 0xFFFFFFFF
			hash[4] &= 0xFFFFFFFF
		}
	}

	for i := 0; i < 8; i++ {
		d.h[i] += hash[i]
		if d.width == 32 {
			d.h[i] &= 0xFFFFFFFF
		}
	}
}

// Write absorbs more data into the digest.
func (d *Digest) Write(p []byte) (int, error) {
	total := len(p)
	if d.nbuf > 0 {
		need := d.chunk - d.nbuf
		if len(p) >= need {
			copy(d.buf[d.nbuf:], p[:need])
			d.block(d.buf[:d.chunk])
			d.n += uint64(d.chunk)
			p = p[need:]
			d.nbuf = 0
		} else {
			copy(d.buf[d.nbuf:], p)
			d.nbuf += len(p)
			return total, nil
		}
	}
	for len(p) >= d.chunk {
		d.block(p[:d.chunk])
		d.n += uint64(d.chunk)
		p = p[d.chunk:]
	}
	if len(p) > 0 {
		copy(d.buf[:], p)
		d.nbuf = len(p)
	}
	return total, nil
}

// Sum finalizes a clone of d (leaving d itself untouched, matching
// hash.Hash's documented Sum semantics) and appends the digest to b.
func (d *Digest) Sum(b []byte) []byte {
	c := d.Clone()
	bits := c.n*8 + uint64(c.nbuf)*8

	c.buf[c.nbuf] = 0x80
	c.nbuf++
	for i := c.nbuf; i < c.chunk; i++ {
		c.buf[i] = 0
	}

	if c.nbuf > c.chunk-8 {
		c.block(c.buf[:c.chunk])
		for i := range c.buf[:c.chunk] {
			c.buf[i] = 0
		}
	}

	for j := 1; j <= 8; j++ {
		c.buf[c.chunk-j] = byte(bits >> (uint(j-1) * 8))
	}
	c.block(c.buf[:c.chunk])

	out := make([]byte, 0, c.Size())
	words := c.bits / c.width
	for i := 0; i < words; i++ {
		for j := c.width; j > 0; j -= 8 {
			out = append(out, byte(c.h[i]>>(uint(j)-8)))
		}
	}
	return append(b, out...)
}

// Sum224 computes the SHA-224 digest of data in one call.
func Sum224(data []byte) [28]byte {
	d := New224()
	d.Write(data)
	var out [28]byte
	copy(out[:], d.Sum(nil))
	return out
}

// Sum256 computes the SHA-256 digest of data in one call.
func Sum256(data []byte) [32]byte {
	d := New256()
	d.Write(data)
	var out [32]byte
	copy(out[:], d.Sum(nil))
	return out
}

// Sum384 computes the SHA-384 digest of data in one call.
func Sum384(data []byte) [48]byte {
	d := New384()
	d.Write(data)
	var out [48]byte
	copy(out[:], d.Sum(nil))
	return out
}

// Sum512 computes the SHA-512 digest of data in one call.
func Sum512(data []byte) [64]byte {
	d := New512()
	d.Write(data)
	var out [64]byte
	copy(out[:], d.Sum(nil))
	return out
}
