package blockdevice

import "errors"

// ErrSectorSizeUnavailable is returned when Open cannot determine a block
// device's sector geometry: both the physical-sector and logical-sector
// ioctl tiers failed. It never fires for a regular file (a disk image),
// since sector geometry is not a property of a file.
var ErrSectorSizeUnavailable = errors.New("blockdevice: sector size unavailable")
