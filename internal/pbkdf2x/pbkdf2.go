// Package pbkdf2x implements RFC 2898 PBKDF2 generic over the hmacx.HMAC
// keyed-hash primitive, grounded on
// original_source/C++/src/WarpedDrive/PBKDF.cpp. It exists alongside
// golang.org/x/crypto/pbkdf2 because it is defined in terms of hmacx.HMAC's
// clone-per-iteration shape rather than a plain hash.Hash factory.
package pbkdf2x

import "github.com/csforensics/corestorage-recover/internal/hmacx"

// Key derives keyLen bytes from password and salt using iterations rounds
// of newHMAC-based PBKDF2. newHMAC must return an HMAC already keyed with
// password, e.g. hmacx.New(sha2.New256, password).
func Key[S hmacx.Hash[S]](newHMAC func([]byte) *hmacx.HMAC[S], password, salt []byte, iterations, keyLen int) []byte {
	prf := newHMAC(password)
	size := prf.Size()

	derived := make([]byte, 0, keyLen)
	for block := uint32(1); len(derived) < keyLen; block++ {
		u := prf.Clone()
		u.Write(salt)
		u.Write([]byte{byte(block >> 24), byte(block >> 16), byte(block >> 8), byte(block)})
		t := u.Sum(nil)

		acc := make([]byte, size)
		copy(acc, t)

		for j := 1; j < iterations; j++ {
			iter := prf.Clone()
			iter.Write(t)
			t = iter.Sum(nil)
			for k := 0; k < size; k++ {
				acc[k] ^= t[k]
			}
		}

		need := keyLen - len(derived)
		if need > size {
			need = size
		}
		derived = append(derived, acc[:need]...)
	}
	return derived
}
