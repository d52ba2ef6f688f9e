package corestorage

import (
	"encoding/binary"
	"fmt"
)

// MetadataHeader is the plaintext block-type 0x0011 payload:
// CS_BLOCK_11_HEADER in original_source/C++/src/WarpedDrive/CoreStorage.cpp.
// VolumeGroupsOffset, XmlOffset and XmlSize are themselves byte offsets
// relative to this block's own base (BlockHeaderSize bytes before this
// payload begins), not offsets within the payload.
type MetadataHeader struct {
	VolumeGroupsOffset uint32
	XmlOffset          uint32
	XmlSize            uint32
	PhysicalBlocks     uint64
}

const metadataHeaderPayloadSize = 4 + 4 + 140 + 4 + 4 + 4 + 8*4 + 8 + 8

// ParseMetadataHeader parses a 0x0011 block payload.
func ParseMetadataHeader(payload []byte) (MetadataHeader, error) {
	if len(payload) < metadataHeaderPayloadSize {
		return MetadataHeader{}, fmt.Errorf("corestorage: %w: metadata header payload: got %d bytes, want %d", ErrShortHeader, len(payload), metadataHeaderPayloadSize)
	}

	return MetadataHeader{
		VolumeGroupsOffset: binary.LittleEndian.Uint32(payload[148:152]),
		XmlOffset:          binary.LittleEndian.Uint32(payload[152:156]),
		XmlSize:            binary.LittleEndian.Uint32(payload[156:160]),
		PhysicalBlocks:     binary.LittleEndian.Uint64(payload[192:200]),
	}, nil
}

// VolumeGroupsDescriptor is CS_VOLUME_GROUPS_DESCRIPTOR: the location and
// size of the encrypted-metadata region, plus up to two backup copies of it.
type VolumeGroupsDescriptor struct {
	EncryptedMetadataSize   uint64
	EncryptedMetadataBlocks uint64
	EncryptedMetadataBlock  [2]uint64
}

const volumeGroupsDescriptorSize = 8 + 8 + 8 + 8 + 8*2

// ParseVolumeGroupsDescriptor parses the VolumeGroups descriptor found at
// MetadataHeader.VolumeGroupsOffset from the owning 0x0011 block's base.
func ParseVolumeGroupsDescriptor(data []byte) (VolumeGroupsDescriptor, error) {
	if len(data) < volumeGroupsDescriptorSize {
		return VolumeGroupsDescriptor{}, fmt.Errorf("corestorage: %w: volume groups descriptor: got %d bytes, want %d", ErrShortHeader, len(data), volumeGroupsDescriptorSize)
	}
	return VolumeGroupsDescriptor{
		EncryptedMetadataSize:   binary.LittleEndian.Uint64(data[8:16]),
		EncryptedMetadataBlocks: binary.LittleEndian.Uint64(data[24:32]),
		EncryptedMetadataBlock:  [2]uint64{binary.LittleEndian.Uint64(data[32:40]), binary.LittleEndian.Uint64(data[40:48])},
	}, nil
}
