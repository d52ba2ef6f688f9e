// Package corestorage recovers an Apple Core Storage logical volume's
// encryption key from a passphrase and serves decrypted reads over it, or
// (for a non-CS device) reports NTFS boot-sector metadata. It implements
// the Orchestrator grounded on original_source/CoreStorage/Main.cpp's
// dispatch-by-signature and shaped after the teacher's qcow2.Open/Image
// API: a single entry point returning a handle that owns the underlying
// device and must be Closed.
package corestorage

import (
	"errors"
	"fmt"
	"io"

	"github.com/csforensics/corestorage-recover/internal/blockdevice"
	cswalk "github.com/csforensics/corestorage-recover/internal/corestorage"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// sector0Size is the amount read from the device's first sector to sniff
// its signature; large enough to cover both the CS signature (offset
// 88..89) and the NTFS OEM ID/BPB fields ntfs.go reads.
const sector0Size = 512

// Volume is an opened device, identified as either a Core Storage volume
// (with a recovery Walker) or an NTFS volume. IsNTFS reports which, for
// its lifetime; Mountable is always false for an NTFS volume, and false
// for a Core Storage volume until a passphrase has recovered its key.
type Volume struct {
	dev    *blockdevice.Device
	log    logr.Logger
	walker *cswalk.Walker // nil for an NTFS volume
	ntfs   *NTFSBootSector
	reader *cswalk.VolumeReader // last reader built by Reader, if any
}

// Open opens path, reads sector 0, and dispatches on its signature: bytes
// 88..89 "CS" selects the Core Storage path (a Walker is driven to
// completion against src), bytes 3..6 "NTFS" selects the trivial boot
// sector reader. Neither matching is ErrUnrecognizedSignature.
//
// A wrong passphrase does not fail Open: the returned Volume's Mountable
// reports false, and the caller may retry with Recover. Any other walk
// error (short header, unknown block type, malformed plist) is fatal and
// closes the device before returning.
func Open(path string, src passphrase.Source, log logr.Logger) (*Volume, error) {
	dev, err := blockdevice.Open(path)
	if err != nil {
		return nil, err
	}

	sector0 := make([]byte, sector0Size)
	if _, err := dev.ReadAt(sector0, 0); err != nil && err != io.EOF {
		dev.Close()
		return nil, fmt.Errorf("corestorage: read sector 0: %w", err)
	}

	switch {
	case string(sector0[88:90]) == "CS":
		w := cswalk.NewWalker(dev, src, log)
		walkErr := w.Run()
		if walkErr != nil && !errors.Is(walkErr, cswalk.ErrWrongPassphrase) {
			dev.Close()
			return nil, walkErr
		}
		return &Volume{dev: dev, log: log, walker: w}, walkErr

	case string(sector0[3:7]) == "NTFS":
		bs, err := ParseNTFSBootSector(sector0)
		if err != nil {
			dev.Close()
			return nil, err
		}
		return &Volume{dev: dev, log: log, ntfs: &bs}, nil

	default:
		dev.Close()
		return nil, ErrUnrecognizedSignature
	}
}

// Mountable reports whether a Core Storage volume has recovered enough
// state (key, region, size, extents, VMK) to serve decrypted reads.
func (v *Volume) Mountable() bool {
	return v.walker != nil && v.walker.Mountable()
}

// IsNTFS reports whether Open identified this device as NTFS rather than
// Core Storage.
func (v *Volume) IsNTFS() bool {
	return v.ntfs != nil
}

// NTFS returns the parsed NTFS boot-sector metadata. Only valid when
// IsNTFS reports true.
func (v *Volume) NTFS() NTFSBootSector {
	if v.ntfs == nil {
		return NTFSBootSector{}
	}
	return *v.ntfs
}

// Recover retries Volume Master Key recovery against src, replacing the
// prior attempt's Walker on success. Intended for the ErrWrongPassphrase
// case Open itself treats as non-fatal.
func (v *Volume) Recover(src passphrase.Source) error {
	if v.walker == nil {
		return ErrUnrecognizedSignature
	}
	w := cswalk.NewWalker(v.dev, src, v.log)
	if err := w.Run(); err != nil {
		return err
	}
	v.walker.Zero()
	v.walker = w
	return nil
}

// Reader assembles the decrypting logical-volume reader. Requires
// Mountable. The Volume retains the returned reader and zeroes its cipher
// state on the next Reader call or on Close; callers must not keep using
// a reader obtained from an earlier call once either occurs.
func (v *Volume) Reader() (*cswalk.VolumeReader, error) {
	if v.walker == nil {
		return nil, cswalk.ErrNotMountable
	}
	if v.reader != nil {
		v.reader.Zero()
		v.reader = nil
	}
	reader, err := v.walker.CipherContext()
	if err != nil {
		return nil, err
	}
	v.reader = reader
	return reader, nil
}

// PhysicalUUID returns the physical-volume UUID latched from the volume
// header. Zero value until the walk has reached have_key.
func (v *Volume) PhysicalUUID() uuid.UUID {
	if v.walker == nil {
		return uuid.UUID{}
	}
	return v.walker.PhysicalUUID()
}

// FamilyUUID returns the logical-volume family UUID latched from the
// 0x001a block. Zero value until the walk has reached have_size.
func (v *Volume) FamilyUUID() uuid.UUID {
	if v.walker == nil {
		return uuid.UUID{}
	}
	return v.walker.FamilyUUID()
}

// LogicalUUID returns the logical-volume UUID latched from the 0x001a
// block. Zero value until the walk has reached have_size.
func (v *Volume) LogicalUUID() uuid.UUID {
	if v.walker == nil {
		return uuid.UUID{}
	}
	return v.walker.LogicalUUID()
}

// VolumeSize returns the logical volume size in bytes, latched from the
// 0x001a block. Zero until the walk has reached have_size.
func (v *Volume) VolumeSize() uint64 {
	if v.walker == nil {
		return 0
	}
	return v.walker.VolumeSize()
}

// Close wipes any recovered Volume Master Key, any reader's cipher round
// keys, and releases the device handle.
func (v *Volume) Close() error {
	if v.reader != nil {
		v.reader.Zero()
		v.reader = nil
	}
	if v.walker != nil {
		v.walker.Zero()
	}
	return v.dev.Close()
}
