//go:build linux

package blockdevice

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// discoverSectorSize queries a block device node's sector geometry in
// the two-tier order the original's DeviceIoControl(IOCTL_STORAGE_QUERY_PROPERTY)
// probe follows: prefer the physical sector size (BLKPBSZGET), falling
// back to the logical sector size (BLKSSZGET) when the physical query is
// unsupported or reports nothing usable. resolveSectorSize only calls
// this for an actual device node, so a failure of both tiers here is a
// genuine geometry failure and is reported rather than defaulted away.
func discoverSectorSize(f *os.File) (uint32, error) {
	if sz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKPBSZGET); err == nil && sz > 0 {
		return uint32(sz), nil
	}
	if sz, err := unix.IoctlGetInt(int(f.Fd()), unix.BLKSSZGET); err == nil && sz > 0 {
		return uint32(sz), nil
	}
	return 0, fmt.Errorf("%w: %s: BLKPBSZGET and BLKSSZGET both failed", ErrSectorSizeUnavailable, f.Name())
}
