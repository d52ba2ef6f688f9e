package aescipher

import "fmt"

// XTS is IEEE P1619 tweakable AES in XTS mode, with the tweak cipher owned
// independently of the data cipher (the tweak direction is always
// Encrypt, per spec.md section 4.4). Ciphertext stealing is not
// implemented: XTS.Process requires inputs that are a multiple of 16
// bytes, which Core Storage's 8192-byte sector units always are. Grounded
// on original_source/C++/src/WarpedDrive/AES.h's AESCipher(key, tweakKey)
// constructor and xts() entry point.
type XTS struct {
	data  *AES
	tweak *AES
}

// NewXTS builds an XTS cipher. dataKey is used in dir (Encrypt or
// Decrypt); tweakKey always runs in the encrypt direction.
func NewXTS(dataKey []byte, dir Direction, tweakKey []byte) (*XTS, error) {
	data, err := New(dataKey, dir)
	if err != nil {
		return nil, fmt.Errorf("aescipher: xts data key: %w", err)
	}
	tweak, err := New(tweakKey, Encrypt)
	if err != nil {
		return nil, fmt.Errorf("aescipher: xts tweak key: %w", err)
	}
	return &XTS{data: data, tweak: tweak}, nil
}

// Zero wipes both the data and tweak round-key schedules. Callers must
// call this once an XTS is no longer needed, including on error paths.
func (x *XTS) Zero() {
	x.data.Zero()
	x.tweak.Zero()
}

// gfMulAlpha multiplies a 16-byte little-endian tweak value by alpha
// (x) in GF(2^128) using the standard 0x87 reduction polynomial.
func gfMulAlpha(t *[16]byte) {
	var carry byte
	for i := 0; i < 16; i++ {
		next := t[i] >> 7
		t[i] = (t[i] << 1) | carry
		carry = next
	}
	if carry != 0 {
		t[0] ^= 0x87
	}
}

// Process runs XTS over in (a multiple of 16 bytes), writing len(in) bytes
// to out, using initialTweak (16 bytes, interpreted as the caller's raw
// tweak value prior to the per-unit AES-encrypt step).
func (x *XTS) Process(in, out []byte, initialTweak [16]byte) error {
	if len(in)%BlockSize != 0 {
		return fmt.Errorf("aescipher: xts input length %d is not a multiple of %d", len(in), BlockSize)
	}
	var t [16]byte
	x.tweak.block(initialTweak[:], t[:])

	units := len(in) / BlockSize
	for u := 0; u < units; u++ {
		off := u * BlockSize
		var block [16]byte
		for i := 0; i < 16; i++ {
			block[i] = in[off+i] ^ t[i]
		}
		x.data.block(block[:], block[:])
		for i := 0; i < 16; i++ {
			out[off+i] = block[i] ^ t[i]
		}
		if u != units-1 {
			gfMulAlpha(&t)
		}
	}
	return nil
}

// SectorTweak builds the 16-byte little-endian counter tweak spec.md
// section 9 specifies: the low 8 bytes hold the sector/record index, the
// high 8 bytes are zero.
func SectorTweak(index uint64) [16]byte {
	var t [16]byte
	for i := 0; i < 8; i++ {
		t[i] = byte(index >> (uint(i) * 8))
	}
	return t
}
