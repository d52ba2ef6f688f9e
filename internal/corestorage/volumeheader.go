package corestorage

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

// VolumeHeader is the plaintext block-type 0x0010 payload: CS_BLOCK_10_HEADER
// in original_source/C++/src/WarpedDrive/CoreStorage.cpp.
type VolumeHeader struct {
	Signature           [2]byte
	ChecksumAlgorithm   uint32
	MetadataBlocks      uint16
	BlockSize           uint32
	MetadataSize        uint32
	MetadataBlock       [8]uint64
	KeyDataSize         uint32
	EncryptionAlgorithm uint32
	KeyData             [16]byte
	PhysicalVolumeUUID  uuid.UUID
	GroupVolumeUUID     uuid.UUID
}

const volumeHeaderPayloadSize = 16 + 2 + 4 + 2 + 4 + 4 + 8*8 + 4 + 4 + 16 + 112 + 16 + 16 + 176

// ParseVolumeHeader parses a 0x0010 block payload (the bytes following the
// generic BlockHeader).
func ParseVolumeHeader(payload []byte) (VolumeHeader, error) {
	if len(payload) < volumeHeaderPayloadSize {
		return VolumeHeader{}, fmt.Errorf("corestorage: %w: volume header payload: got %d bytes, want %d", ErrShortHeader, len(payload), volumeHeaderPayloadSize)
	}

	var h VolumeHeader
	copy(h.Signature[:], payload[16:18])
	if string(h.Signature[:]) != "CS" {
		return VolumeHeader{}, fmt.Errorf("corestorage: %w: volume header signature %q", ErrBadMagic, h.Signature)
	}

	h.ChecksumAlgorithm = binary.LittleEndian.Uint32(payload[18:22])
	h.MetadataBlocks = binary.LittleEndian.Uint16(payload[22:24])
	h.BlockSize = binary.LittleEndian.Uint32(payload[24:28])
	h.MetadataSize = binary.LittleEndian.Uint32(payload[28:32])
	for i := 0; i < 8; i++ {
		off := 32 + i*8
		h.MetadataBlock[i] = binary.LittleEndian.Uint64(payload[off : off+8])
	}
	h.KeyDataSize = binary.LittleEndian.Uint32(payload[96:100])
	h.EncryptionAlgorithm = binary.LittleEndian.Uint32(payload[100:104])
	copy(h.KeyData[:], payload[104:120])
	physicalUUID, err := uuid.FromBytes(payload[232:248])
	if err != nil {
		return VolumeHeader{}, fmt.Errorf("corestorage: physical volume uuid: %w", err)
	}
	groupUUID, err := uuid.FromBytes(payload[248:264])
	if err != nil {
		return VolumeHeader{}, fmt.Errorf("corestorage: group volume uuid: %w", err)
	}
	h.PhysicalVolumeUUID = physicalUUID
	h.GroupVolumeUUID = groupUUID

	return h, nil
}
