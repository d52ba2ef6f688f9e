package corestorage

import "errors"

var (
	// ErrBlockWiped indicates a block carries the "LVFwiped" tag and must
	// be treated as absent.
	ErrBlockWiped = errors.New("corestorage: block is wiped")

	// ErrShortHeader indicates a block or embedded struct ended before a
	// required fixed-size field did.
	ErrShortHeader = errors.New("corestorage: short header")

	// ErrBadMagic indicates a required signature field did not match.
	ErrBadMagic = errors.New("corestorage: signature mismatch")

	// ErrUnknownBlockType indicates a block type the walker does not
	// recognize where a known one was required.
	ErrUnknownBlockType = errors.New("corestorage: unknown block type")

	// ErrMalformedPlist indicates an embedded plist did not carry the
	// structure a block type requires.
	ErrMalformedPlist = errors.New("corestorage: malformed plist")

	// ErrWrongPassphrase indicates every CryptoUsers candidate failed its
	// RFC-3394 integrity check; the specific failing step is deliberately
	// not surfaced.
	ErrWrongPassphrase = errors.New("corestorage: wrong passphrase")

	// ErrNotMountable indicates the walk completed without reaching the
	// MOUNTABLE state (missing key, region, size, extents, or VMK).
	ErrNotMountable = errors.New("corestorage: volume is not mountable")

	// ErrOffsetOutOfRange indicates a logical read fell outside
	// [0, volume_size).
	ErrOffsetOutOfRange = errors.New("corestorage: logical offset out of range")
)
