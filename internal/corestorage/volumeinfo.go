package corestorage

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/csforensics/corestorage-recover/internal/plist"
	"github.com/google/uuid"
)

// VolumeInfoHeader is the decrypted block-type 0x001a payload:
// CS_BLOCK_1a_HEADER. It embeds a plist carrying the logical-volume UUID,
// family UUID and size.
type VolumeInfoHeader struct {
	XmlOffset uint32
	XmlSize   uint32
}

const volumeInfoPayloadSize = 8 + 16 + 8*3 + 4*2 + 4 + 4

// ParseVolumeInfoHeader parses a 0x001a block payload.
func ParseVolumeInfoHeader(payload []byte) (VolumeInfoHeader, error) {
	if len(payload) < volumeInfoPayloadSize {
		return VolumeInfoHeader{}, fmt.Errorf("corestorage: %w: 0x1a header: got %d bytes, want %d", ErrShortHeader, len(payload), volumeInfoPayloadSize)
	}
	return VolumeInfoHeader{
		XmlOffset: binary.LittleEndian.Uint32(payload[56:60]),
		XmlSize:   binary.LittleEndian.Uint32(payload[60:64]),
	}, nil
}

// VolumeInfo is the parsed content of a 0x001a plist.
type VolumeInfo struct {
	FamilyUUID  uuid.UUID
	LogicalUUID uuid.UUID
	Size        uint64
}

// ParseVolumeInfo extracts family UUID, logical-volume UUID and size from
// root, the parsed com.apple.corestorage.lv.* plist.
func ParseVolumeInfo(root plist.Entry) (VolumeInfo, error) {
	family := root.Get("com.apple.corestorage.lv.familyUUID")
	logical := root.Get("com.apple.corestorage.lv.uuid")
	size := root.Get("com.apple.corestorage.lv.size")
	if family == nil || logical == nil || size == nil {
		return VolumeInfo{}, fmt.Errorf("corestorage: %w: missing lv.familyUUID/lv.uuid/lv.size", ErrMalformedPlist)
	}

	familyUUID, err := uuid.Parse(family.Value)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("corestorage: %w: bad lv.familyUUID %q: %v", ErrMalformedPlist, family.Value, err)
	}
	logicalUUID, err := uuid.Parse(logical.Value)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("corestorage: %w: bad lv.uuid %q: %v", ErrMalformedPlist, logical.Value, err)
	}
	value, err := strconv.ParseUint(trimHexPrefix(size.Value), 16, 64)
	if err != nil {
		return VolumeInfo{}, fmt.Errorf("corestorage: %w: bad lv.size %q: %v", ErrMalformedPlist, size.Value, err)
	}

	return VolumeInfo{
		FamilyUUID:  familyUUID,
		LogicalUUID: logicalUUID,
		Size:        value,
	}, nil
}

func trimHexPrefix(s string) string {
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
