package corestorage

import (
	"fmt"
	"io"

	"github.com/csforensics/corestorage-recover/internal/aescipher"
	"github.com/csforensics/corestorage-recover/internal/sha2"
)

// defaultSectorCacheSectors bounds the VolumeReader decrypted-sector cache
// to 4096 entries (32 MiB of plaintext at the 8192-byte record size).
const defaultSectorCacheSectors = 4096

// VolumeReader performs AES-XTS-backed logical-to-physical decrypting
// reads over a recovered Core Storage logical volume, caching decrypted
// sectors so overlapping or repeated reads skip re-decryption.
type VolumeReader struct {
	dev        io.ReaderAt
	xts        *aescipher.XTS
	firstBlock uint64
	blockSize  uint64
	volumeSize uint64
	cache      *sectorCache
}

// CipherContext assembles the volume's AES-XTS cipher context from the
// Walker's latched state: `volume_tweak_key = SHA-256(VMK ‖
// family_uuid)[:16]`, data key = VMK (decrypt direction), tweak key =
// volume_tweak_key (always encrypt direction). Requires Mountable().
func (w *Walker) CipherContext() (*VolumeReader, error) {
	if !w.Mountable() {
		return nil, ErrNotMountable
	}

	digestInput := make([]byte, 0, len(w.vmk)+16)
	digestInput = append(digestInput, w.vmk...)
	digestInput = append(digestInput, w.familyUUID[:]...)
	digest := sha2.Sum256(digestInput)
	tweakKey := digest[:16]

	xts, err := aescipher.NewXTS(w.vmk, aescipher.Decrypt, tweakKey)
	for i := range tweakKey {
		tweakKey[i] = 0
	}
	if err != nil {
		return nil, fmt.Errorf("corestorage: volume cipher setup: %w", err)
	}

	return &VolumeReader{
		dev:        w.dev,
		xts:        xts,
		firstBlock: w.firstBlock,
		blockSize:  w.blockSize,
		volumeSize: w.volumeSize,
		cache:      newSectorCache(defaultSectorCacheSectors),
	}, nil
}

// Zero wipes the volume cipher's AES-XTS round-key schedules. Callers
// must call this once a VolumeReader is no longer needed.
func (r *VolumeReader) Zero() {
	r.xts.Zero()
}

// ReadAt decrypts and reads len(p) bytes from the logical volume starting
// at logical byte offset off, per §4.8's physical-offset mapping
// first_block*block_size + s*8192 for 8192-byte XTS units. Ciphertext
// stealing is not implemented; off and len(p) need not themselves be
// sector-aligned, but each covered 8192-byte logical sector is decrypted
// whole.
func (r *VolumeReader) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || uint64(off) >= r.volumeSize {
		return 0, ErrOffsetOutOfRange
	}

	raw := make([]byte, EncryptedRecordSize)

	cur := uint64(off)
	read := 0
	for read < len(p) && cur < r.volumeSize {
		sector := cur / EncryptedRecordSize
		sectorOff := cur % EncryptedRecordSize

		plain := r.cache.get(sector)
		if plain == nil {
			physOff := r.firstBlock*r.blockSize + sector*EncryptedRecordSize
			if _, err := r.dev.ReadAt(raw, int64(physOff)); err != nil && err != io.EOF {
				return read, fmt.Errorf("corestorage: read logical sector %d: %w", sector, err)
			}
			decrypted := make([]byte, EncryptedRecordSize)
			if err := r.xts.Process(raw, decrypted, aescipher.SectorTweak(sector)); err != nil {
				return read, fmt.Errorf("corestorage: decrypt logical sector %d: %w", sector, err)
			}
			r.cache.put(sector, decrypted)
			plain = decrypted
		}

		n := EncryptedRecordSize - int(sectorOff)
		if remaining := len(p) - read; n > remaining {
			n = remaining
		}
		if remaining := r.volumeSize - cur; uint64(n) > remaining {
			n = int(remaining)
		}
		copy(p[read:read+n], plain[sectorOff:int(sectorOff)+n])

		read += n
		cur += uint64(n)
	}

	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}
