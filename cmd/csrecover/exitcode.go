package main

import (
	"errors"
	"os"

	corestorage "github.com/csforensics/corestorage-recover"
	"github.com/csforensics/corestorage-recover/internal/blockdevice"
	cswalk "github.com/csforensics/corestorage-recover/internal/corestorage"
)

// exitCodeFor maps a returned error to spec.md §6's exit codes via
// errors.As/errors.Is against the underlying *os.PathError.Op (for device
// I/O failures) or the library's sentinels (for structural failures).
// internal/blockdevice issues every device read through os.File.ReadAt
// rather than a separate Seek+Read pair, so Op is always "open" or "read"
// in practice here; "seek" (exit code 3) is kept for a PathError shape
// this implementation does not itself produce. ErrSectorSizeUnavailable
// is checked ahead of the PathError switch since blockdevice.Open wraps
// it directly rather than returning it as a PathError.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, blockdevice.ErrSectorSizeUnavailable) {
		return 2
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		switch pathErr.Op {
		case "open":
			return 1
		case "seek":
			return 3
		case "read":
			return 4
		}
	}

	switch {
	case errors.Is(err, cswalk.ErrShortHeader):
		return 5
	case errors.Is(err, cswalk.ErrUnknownBlockType):
		return 6
	case errors.Is(err, cswalk.ErrMalformedPlist), errors.Is(err, cswalk.ErrBadMagic), errors.Is(err, corestorage.ErrUnrecognizedSignature):
		return 7
	default:
		return 1
	}
}
