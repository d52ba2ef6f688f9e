package corestorage

import "errors"

// Sentinel errors returned by the library surface. Mirrors the teacher's
// qcow2:-prefixed, errors.New sentinel block in format.go/bitmaps.go.
var (
	// ErrUnrecognizedSignature indicates sector 0 matched neither the CS
	// ("CS" at byte offset 88) nor the NTFS ("NTFS" at byte offset 3)
	// signature.
	ErrUnrecognizedSignature = errors.New("corestorage: sector 0 matches neither CS nor NTFS signature")
)
