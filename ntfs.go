package corestorage

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// NTFSBootSector is the handful of boot-sector/BPB fields a trivial
// inspector needs; deliberately not a full NTFS parser. Grounded on
// original_source/src/WarpedDrive/NTFS.cpp's boot-sector struct, reduced
// to its OEM ID, bytes-per-sector, sectors-per-cluster, $MFT starting
// cluster and volume serial number fields — no attribute list or
// non-resident data-run parsing, which original_source/.../NTFS.cpp
// otherwise spends most of its ~19KB on.
type NTFSBootSector struct {
	OEMID             string
	BytesPerSector    uint16
	SectorsPerCluster uint8
	MFTCluster        uint64
	VolumeSerial      uint64
}

const ntfsBootSectorSize = 80

// ParseNTFSBootSector parses the standard NTFS boot sector fields from
// sector (the device's first sector, as read by Open).
func ParseNTFSBootSector(sector []byte) (NTFSBootSector, error) {
	if len(sector) < ntfsBootSectorSize {
		return NTFSBootSector{}, fmt.Errorf("corestorage: %w: ntfs boot sector: got %d bytes, want %d", ErrUnrecognizedSignature, len(sector), ntfsBootSectorSize)
	}
	return NTFSBootSector{
		OEMID:             strings.TrimRight(string(sector[3:11]), " "),
		BytesPerSector:    binary.LittleEndian.Uint16(sector[11:13]),
		SectorsPerCluster: sector[13],
		MFTCluster:        binary.LittleEndian.Uint64(sector[48:56]),
		VolumeSerial:      binary.LittleEndian.Uint64(sector[72:80]),
	}, nil
}

// String renders the boot-sector fields as a one-line summary, for the
// ntfs CLI subcommand.
func (b NTFSBootSector) String() string {
	return fmt.Sprintf("oem=%q bytes_per_sector=%d sectors_per_cluster=%d mft_cluster=%d volume_serial=%#x",
		b.OEMID, b.BytesPerSector, b.SectorsPerCluster, b.MFTCluster, b.VolumeSerial)
}
