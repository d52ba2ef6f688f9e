package corestorage

import (
	"encoding/binary"
	"fmt"

	"github.com/csforensics/corestorage-recover/internal/aescipher"
	"github.com/csforensics/corestorage-recover/internal/b64"
	"github.com/csforensics/corestorage-recover/internal/hmacx"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/csforensics/corestorage-recover/internal/pbkdf2x"
	"github.com/csforensics/corestorage-recover/internal/plist"
	"github.com/csforensics/corestorage-recover/internal/sha2"
)

// CryptoUsersHeader is the decrypted block-type 0x0019 payload:
// CS_BLOCK_19_HEADER. It embeds a plist under
// com.apple.corestorage.lvf.encryption.context carrying one or more
// CryptoUsers entries.
type CryptoUsersHeader struct {
	XmlOffset uint32
	XmlSize   uint32
}

const cryptoUsersPayloadSize = 8*4 + 4*2 + 4 + 4

// ParseCryptoUsersHeader parses a 0x0019 block payload.
func ParseCryptoUsersHeader(payload []byte) (CryptoUsersHeader, error) {
	if len(payload) < cryptoUsersPayloadSize {
		return CryptoUsersHeader{}, fmt.Errorf("corestorage: %w: 0x19 header: got %d bytes, want %d", ErrShortHeader, len(payload), cryptoUsersPayloadSize)
	}
	return CryptoUsersHeader{
		XmlOffset: binary.LittleEndian.Uint32(payload[40:44]),
		XmlSize:   binary.LittleEndian.Uint32(payload[44:48]),
	}, nil
}

// PassphraseWrappedKEK is CS_PASSPHRASE_WRAPPED_KEK: a PBKDF2 salt and
// iteration count, plus an RFC-3394-wrapped 128-bit KEK.
type PassphraseWrappedKEK struct {
	Salt       [16]byte
	Key        [24]byte
	Iterations uint32
}

const passphraseWrappedKEKSize = 4 + 4 + 16 + 4 + 4 + 24 + (4 + 8 + 4 + 72 + 4*3 + 12 + 4) + 4

// ParsePassphraseWrappedKEK decodes a base64'd 284-byte
// PassphraseWrappedKEKStruct record.
func ParsePassphraseWrappedKEK(b64Data string) (PassphraseWrappedKEK, error) {
	data := b64.Decode(b64Data)
	if len(data) < passphraseWrappedKEKSize {
		return PassphraseWrappedKEK{}, fmt.Errorf("corestorage: %w: PassphraseWrappedKEKStruct: got %d bytes, want %d", ErrShortHeader, len(data), passphraseWrappedKEKSize)
	}

	var k PassphraseWrappedKEK
	copy(k.Salt[:], data[8:24])
	copy(k.Key[:], data[32:56])
	k.Iterations = binary.LittleEndian.Uint32(data[172:176])
	return k, nil
}

// KEKWrappedVolumeKey is CS_KEK_WRAPPED_VOLUME_KEY: an RFC-3394-wrapped
// 128-bit Volume Master Key. Only the leading ~32 bytes of the 256-byte
// on-disk record are consumed.
type KEKWrappedVolumeKey struct {
	Key [24]byte
}

const kekWrappedVolumeKeyMinSize = 4 + 4 + 24

// ParseKEKWrappedVolumeKey decodes a base64'd KEKWrappedVolumeKeyStruct
// record.
func ParseKEKWrappedVolumeKey(b64Data string) (KEKWrappedVolumeKey, error) {
	data := b64.Decode(b64Data)
	if len(data) < kekWrappedVolumeKeyMinSize {
		return KEKWrappedVolumeKey{}, fmt.Errorf("corestorage: %w: KEKWrappedVolumeKeyStruct: got %d bytes, want %d", ErrShortHeader, len(data), kekWrappedVolumeKeyMinSize)
	}
	var k KEKWrappedVolumeKey
	copy(k.Key[:], data[8:32])
	return k, nil
}

// RecoverVolumeMasterKey walks every CryptoUsers/WrappedVolumeKeys pair in
// root, deriving a KEK from src's passphrase against each
// PassphraseWrappedKEKStruct and using it to unwrap the matching
// KEKWrappedVolumeKeyStruct. It returns the first successfully unwrapped
// 16-byte Volume Master Key.
//
// When every candidate is rejected, the returned error wraps
// ErrWrongPassphrase together with the last rejected candidate's error;
// the errors of earlier candidates are not reported.
func RecoverVolumeMasterKey(root plist.Entry, src passphrase.Source) ([]byte, error) {
	cryptoUsers := root.Get("CryptoUsers")
	if cryptoUsers == nil {
		return nil, fmt.Errorf("corestorage: %w: no CryptoUsers entry", ErrMalformedPlist)
	}

	var lastErr error
	for _, user := range cryptoUsers.Children {
		kekEntry := user.Get("PassphraseWrappedKEKStruct")
		vmkEntry := user.Get("WrappedVolumeKeys")
		if kekEntry == nil || vmkEntry == nil {
			continue
		}
		for _, vmk := range vmkEntry.Children {
			vmkStructEntry := vmk.Get("KEKWrappedVolumeKeyStruct")
			if vmkStructEntry == nil {
				continue
			}
			key, err := unwrapOneCandidate(kekEntry.Value, vmkStructEntry.Value, src)
			if err != nil {
				lastErr = err
				continue
			}
			return key, nil
		}
	}
	if lastErr == nil {
		lastErr = ErrMalformedPlist
	}
	return nil, fmt.Errorf("corestorage: %w: %w", ErrWrongPassphrase, lastErr)
}

func unwrapOneCandidate(kekB64, vmkB64 string, src passphrase.Source) (_ []byte, err error) {
	kekStruct, err := ParsePassphraseWrappedKEK(kekB64)
	if err != nil {
		return nil, err
	}
	vmkStruct, err := ParseKEKWrappedVolumeKey(vmkB64)
	if err != nil {
		return nil, err
	}

	password, err := src.Get()
	if err != nil {
		return nil, err
	}

	derivedKey := derivePassKey(password, kekStruct.Salt[:], int(kekStruct.Iterations))
	defer zero(derivedKey)

	kek, err := aescipher.Unwrap(derivedKey, kekStruct.Key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
	}
	defer zero(kek)

	vmk, err := aescipher.Unwrap(kek, vmkStruct.Key[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrWrongPassphrase, err)
	}
	return vmk, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// derivePassKey computes PBKDF2-HMAC-SHA-256(password, salt, iterations,
// 16 bytes), the pass_key step of CryptoUsers recovery.
func derivePassKey(password, salt []byte, iterations int) []byte {
	return pbkdf2x.Key(func(key []byte) *hmacx.HMAC[*sha2.Digest] {
		return hmacx.New(sha2.New256, key)
	}, password, salt, iterations, 16)
}
