//go:build !linux

package blockdevice

import (
	"fmt"
	"os"
)

// discoverSectorSize has no portable ioctl outside Linux; the original
// tool's equivalent probe (IOCTL_STORAGE_QUERY_PROPERTY /
// IOCTL_DISK_GET_DRIVE_GEOMETRY) is Windows-only and out of scope here.
// resolveSectorSize only calls this for an actual device node, where a
// silent 512-byte guess would be exactly the unchecked assumption the
// two-tier discovery order is meant to rule out; with neither tier
// available on this platform, both are already exhausted, so this fails
// hard rather than guessing.
func discoverSectorSize(f *os.File) (uint32, error) {
	return 0, fmt.Errorf("%w: %s: no sector-geometry query available on this platform", ErrSectorSizeUnavailable, f.Name())
}
