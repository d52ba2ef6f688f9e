// Package blockdevice implements sector-aligned reads over a raw disk
// image or block device, following
// original_source/C++/src/WarpedDrive/Aligned.cpp's BlockDevice::read:
// every request is rounded out to whole sectors, read into a scratch
// buffer, and the caller's slice is filled from the requested sub-range
// of it. This lets higher layers issue arbitrary byte-granularity reads
// against devices that only support whole-sector I/O.
package blockdevice

import (
	"fmt"
	"io"
	"os"
)

const defaultSectorSize = 512

// Device is a sector-aligned view over an *os.File, shaped like the
// teacher's qcow2.Image: an *os.File plus cached derived sizing, exposing
// io.ReaderAt.
type Device struct {
	f          *os.File
	sectorSize uint32
}

// Open opens path (a raw disk image or a block device node) for
// sector-aligned reading. Sector-size discovery only queries device
// geometry when path names an actual block/character device node; a
// regular file (a disk image) has no queryable geometry, so it always
// gets the conventional 512-byte sector. A real device whose geometry
// query fails on both tiers is a genuine, non-recoverable condition:
// Open returns ErrSectorSizeUnavailable rather than silently guessing.
func Open(path string) (*Device, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("blockdevice: open %s: %w", path, err)
	}

	sectorSize, err := resolveSectorSize(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Device{f: f, sectorSize: sectorSize}, nil
}

// resolveSectorSize decides whether f's sector geometry is even worth
// querying. discoverSectorSize (platform-specific) is only consulted for
// device nodes, per the two-tier physical-then-logical discovery order
// and hard-failure requirement this mirrors from
// original_source/C++/src/WarpedDrive/Aligned.cpp's device-geometry probe.
func resolveSectorSize(f *os.File) (uint32, error) {
	fi, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("blockdevice: stat %s: %w", f.Name(), err)
	}
	if fi.Mode()&os.ModeDevice == 0 {
		return defaultSectorSize, nil
	}
	return discoverSectorSize(f)
}

// SectorSize returns the sector size reads are aligned to: for a device
// node, the physical sector size (or the logical one when the physical
// query fails); for a regular file, 512. It is discovered once at Open and
// cached thereafter (mirroring BlockDevice::getSectorSize's _cbSector
// memoization).
func (d *Device) SectorSize() uint32 {
	return d.sectorSize
}

// Close closes the underlying file.
func (d *Device) Close() error {
	return d.f.Close()
}

// ReadAt reads len(p) bytes starting at off, rounding the underlying
// device read out to whole sectors and copying only the requested span
// back into p. Returns the number of bytes copied into p.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	sectorSize := int64(d.sectorSize)

	diff := off % sectorSize
	alignedOff := off - diff
	realSize := diff + int64(len(p))
	if rem := (off + int64(len(p))) % sectorSize; rem != 0 {
		realSize += sectorSize - rem
	}

	scratch := make([]byte, realSize)
	n, err := d.f.ReadAt(scratch, alignedOff)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("blockdevice: read at %d: %w", alignedOff, err)
	}

	if int64(n) <= diff {
		return 0, io.EOF
	}
	avail := int64(n) - diff
	if avail > int64(len(p)) {
		avail = int64(len(p))
	}
	copy(p, scratch[diff:diff+avail])

	if avail < int64(len(p)) {
		return int(avail), io.EOF
	}
	return int(avail), nil
}
