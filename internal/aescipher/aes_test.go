package aescipher

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func hexBytes(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex %q: %v", s, err)
	}
	return b
}

// FIPS-197 Appendix C known-answer vectors.
func TestECBKnownAnswers(t *testing.T) {
	cases := []struct {
		name string
		key  string
		pt   string
		ct   string
	}{
		{"aes128", "000102030405060708090a0b0c0d0e0f", "00112233445566778899aabbccddeeff", "69c4e0d86a7b0430d8cdb78070b4c55a"},
		{"aes192", "000102030405060708090a0b0c0d0e0f1011121314151617", "00112233445566778899aabbccddeeff", "dda97ca4864cdfe06eaf70a0ec0d7191"},
		{"aes256", "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f", "00112233445566778899aabbccddeeff", "8ea2b7ca516745bfeafc49904b496089"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			key := hexBytes(t, c.key)
			pt := hexBytes(t, c.pt)
			wantCT := hexBytes(t, c.ct)

			enc, err := New(key, Encrypt)
			if err != nil {
				t.Fatal(err)
			}
			ct := make([]byte, BlockSize)
			enc.ECB(pt, ct)
			if !bytes.Equal(ct, wantCT) {
				t.Fatalf("encrypt = %x, want %x", ct, wantCT)
			}

			dec, err := New(key, Decrypt)
			if err != nil {
				t.Fatal(err)
			}
			got := make([]byte, BlockSize)
			dec.ECB(ct, got)
			if !bytes.Equal(got, pt) {
				t.Fatalf("decrypt = %x, want %x", got, pt)
			}
		})
	}
}

func TestECBMultipleBlocks(t *testing.T) {
	key := hexBytes(t, "000102030405060708090a0b0c0d0e0f")
	pt := bytes.Repeat(hexBytes(t, "00112233445566778899aabbccddeeff"), 3)

	enc, err := New(key, Encrypt)
	if err != nil {
		t.Fatal(err)
	}
	ct := make([]byte, len(pt))
	n := enc.ECB(pt, ct)
	if n != len(pt) {
		t.Fatalf("ECB processed %d bytes, want %d", n, len(pt))
	}

	dec, err := New(key, Decrypt)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, len(pt))
	dec.ECB(ct, got)
	if !bytes.Equal(got, pt) {
		t.Fatalf("round trip = %x, want %x", got, pt)
	}
}

func TestAESZeroWipesRoundKeys(t *testing.T) {
	key := hexBytes(t, "000102030405060708090a0b0c0d0e0f")
	a, err := New(key, Encrypt)
	if err != nil {
		t.Fatal(err)
	}
	a.Zero()
	for _, w := range a.roundKeys {
		if w != ([4]byte{}) {
			t.Fatalf("round key %v not wiped after Zero", w)
		}
	}
}

func TestXTSZeroWipesBothCiphers(t *testing.T) {
	x, err := NewXTS(hexBytes(t, "000102030405060708090a0b0c0d0e0f"), Decrypt, hexBytes(t, "101112131415161718191a1b1c1d1e1f"))
	if err != nil {
		t.Fatal(err)
	}
	x.Zero()
	for _, w := range x.data.roundKeys {
		if w != ([4]byte{}) {
			t.Fatalf("data round key %v not wiped after Zero", w)
		}
	}
	for _, w := range x.tweak.roundKeys {
		if w != ([4]byte{}) {
			t.Fatalf("tweak round key %v not wiped after Zero", w)
		}
	}
}

// RFC 3394 section 4.1: wrap a 128-bit key with a 128-bit KEK.
func TestKeyUnwrapRFC3394(t *testing.T) {
	kek := hexBytes(t, "000102030405060708090A0B0C0D0E0F")
	// 8-byte integrity IV + the wrapped 128-bit key.
	wrapped := hexBytes(t, "1FA68B0A8112B447AEF34BD8FB5A7B829D3E862371D2CFE5")
	want := hexBytes(t, "00112233445566778899AABBCCDDEEFF")

	got, err := Unwrap(kek, wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("Unwrap = %x, want %x", got, want)
	}
}

func TestKeyWrapUnwrapRoundTrip(t *testing.T) {
	kek := hexBytes(t, "000102030405060708090A0B0C0D0E0F")
	plain := hexBytes(t, "00112233445566778899AABBCCDDEEFF")

	wrapped, err := Wrap(kek, plain)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	got, err := Unwrap(kek, wrapped)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(got, plain) {
		t.Fatalf("round trip = %x, want %x", got, plain)
	}
}

func TestKeyUnwrapIntegrityFailure(t *testing.T) {
	kek := hexBytes(t, "000102030405060708090A0B0C0D0E0F")
	plain := hexBytes(t, "00112233445566778899AABBCCDDEEFF")
	wrapped, err := Wrap(kek, plain)
	if err != nil {
		t.Fatal(err)
	}
	wrapped[0] ^= 0xff // corrupt
	if _, err := Unwrap(kek, wrapped); err == nil {
		t.Fatalf("Unwrap of corrupted data should fail the integrity check")
	}
}

// IEEE P1619 128-bit test vector (Vector 4): data unit 0, first 128-bit
// block of its 00 01 02 ... plaintext and of the matching ciphertext.
func TestXTSIEEEVector(t *testing.T) {
	key1 := hexBytes(t, "27182818284590452353602874713526")
	key2 := hexBytes(t, "31415926535897932384626433832795")
	pt := hexBytes(t, "000102030405060708090a0b0c0d0e0f")
	wantCT := hexBytes(t, "27a7479befa1d476489f308cd4cfa6e2")

	enc, err := NewXTS(key1, Encrypt, key2)
	if err != nil {
		t.Fatal(err)
	}
	ct := make([]byte, len(pt))
	if err := enc.Process(pt, ct, SectorTweak(0)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ct, wantCT) {
		t.Fatalf("xts encrypt = %x, want %x", ct, wantCT)
	}

	dec, err := NewXTS(key1, Decrypt, key2)
	if err != nil {
		t.Fatal(err)
	}
	gotPT := make([]byte, len(ct))
	if err := dec.Process(ct, gotPT, SectorTweak(0)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(gotPT, pt) {
		t.Fatalf("xts decrypt = %x, want %x", gotPT, pt)
	}
}

func TestXTSRoundTripSector(t *testing.T) {
	key1 := bytes.Repeat([]byte{0x11}, 16)
	key2 := bytes.Repeat([]byte{0x22}, 16)
	plain := bytes.Repeat([]byte{0xAB}, 8192)

	for _, sector := range []uint64{0, 1, 42, 1 << 40} {
		enc, err := NewXTS(key1, Encrypt, key2)
		if err != nil {
			t.Fatal(err)
		}
		ct := make([]byte, len(plain))
		if err := enc.Process(plain, ct, SectorTweak(sector)); err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(ct, plain) {
			t.Fatalf("sector %d: ciphertext equals plaintext", sector)
		}

		dec, err := NewXTS(key1, Decrypt, key2)
		if err != nil {
			t.Fatal(err)
		}
		got := make([]byte, len(ct))
		if err := dec.Process(ct, got, SectorTweak(sector)); err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, plain) {
			t.Fatalf("sector %d: round trip mismatch", sector)
		}
	}
}

func TestXTSRejectsNonBlockMultiple(t *testing.T) {
	key1 := bytes.Repeat([]byte{0x01}, 16)
	key2 := bytes.Repeat([]byte{0x02}, 16)
	x, err := NewXTS(key1, Encrypt, key2)
	if err != nil {
		t.Fatal(err)
	}
	in := make([]byte, 17)
	out := make([]byte, 17)
	if err := x.Process(in, out, SectorTweak(0)); err == nil {
		t.Fatalf("expected an error for a non-block-multiple input")
	}
}
