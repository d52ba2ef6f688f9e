package corestorage

import (
	"errors"
	"fmt"
	"io"

	"github.com/csforensics/corestorage-recover/internal/aescipher"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/csforensics/corestorage-recover/internal/plist"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// EncryptedRecordSize is the fixed size of one record within the
// encrypted-metadata region.
const EncryptedRecordSize = 8192

// Walker drives the Core Storage metadata walk described in
// original_source/C++/src/WarpedDrive/CoreStorage.cpp's block structs: it
// latches volume header, metadata, extent and crypto-user state on a
// simple first-wins basis, then assembles the volume's cipher context.
type Walker struct {
	dev        io.ReaderAt
	log        logr.Logger
	passphrase passphrase.Source

	blockSize    uint64
	firstBlock   uint64
	numBlocks    uint64
	keyData      [16]byte
	physicalUUID uuid.UUID
	groupUUID    uuid.UUID
	familyUUID   uuid.UUID
	logicalUUID  uuid.UUID
	volumeSize   uint64
	vmk          []byte

	haveKey, haveRegion, haveSize, haveExtents, haveVMK bool
}

// NewWalker constructs a Walker over dev (the raw device, sector-0
// relative), recovering the volume passphrase from src.
func NewWalker(dev io.ReaderAt, src passphrase.Source, log logr.Logger) *Walker {
	return &Walker{dev: dev, passphrase: src, log: log}
}

// Mountable reports whether the walk has latched every field the cipher
// context needs.
func (w *Walker) Mountable() bool {
	return w.haveKey && w.haveRegion && w.haveSize && w.haveExtents && w.haveVMK
}

// Zero wipes the recovered Volume Master Key and the encrypted-metadata
// region key. Callers must defer this on every exit path once the walk
// (or its cipher context) is no longer needed.
func (w *Walker) Zero() {
	for i := range w.vmk {
		w.vmk[i] = 0
	}
	w.keyData = [16]byte{}
}

// PhysicalUUID returns the physical-volume UUID latched from the volume
// header.
func (w *Walker) PhysicalUUID() uuid.UUID { return w.physicalUUID }

// GroupUUID returns the logical-volume-group UUID latched from the volume
// header.
func (w *Walker) GroupUUID() uuid.UUID { return w.groupUUID }

// FamilyUUID returns the logical-volume family UUID latched from the
// 0x001a block.
func (w *Walker) FamilyUUID() uuid.UUID { return w.familyUUID }

// LogicalUUID returns the logical-volume UUID latched from the 0x001a
// block.
func (w *Walker) LogicalUUID() uuid.UUID { return w.logicalUUID }

// VolumeSize returns the logical volume size in bytes, latched from the
// 0x001a block.
func (w *Walker) VolumeSize() uint64 { return w.volumeSize }

// Run reads sector 0 from dev and drives the walk to completion (or the
// first fatal error). ErrWrongPassphrase means the encrypted-metadata
// region was walked in full but no CryptoUsers candidate unwrapped; any
// other non-nil return is fatal. Per-block format errors inside the
// encrypted-metadata region are swallowed internally and logged.
func (w *Walker) Run() error {
	sector0 := make([]byte, 512)
	if _, err := w.dev.ReadAt(sector0, 0); err != nil && err != io.EOF {
		return fmt.Errorf("corestorage: read sector 0: %w", err)
	}

	header, payload, err := ParseBlockHeader(sector0)
	if err != nil {
		return err
	}
	if header.BlockType != BlockTypeVolumeHeader {
		return fmt.Errorf("corestorage: %w: sector 0 has block type %#x, want volume header", ErrUnknownBlockType, header.BlockType)
	}
	if !verifyBlockChecksum(sector0) {
		w.log.V(1).Info("volume header checksum mismatch", "block", header.BlockNumber)
	}
	if err := w.handleVolumeHeader(payload); err != nil {
		return err
	}

	// The encrypted-metadata region was walked in full; every CryptoUsers
	// candidate it held was tried against the passphrase and rejected.
	if w.haveRegion && !w.haveVMK {
		return ErrWrongPassphrase
	}
	return nil
}

func (w *Walker) handleVolumeHeader(payload []byte) error {
	if w.haveKey {
		return nil
	}
	vh, err := ParseVolumeHeader(payload)
	if err != nil {
		return err
	}

	w.blockSize = uint64(vh.BlockSize)
	w.keyData = vh.KeyData
	w.physicalUUID = vh.PhysicalVolumeUUID
	w.groupUUID = vh.GroupVolumeUUID
	w.haveKey = true

	// Process metadata-block copy 0 only; the remaining MetadataBlock
	// entries are backup copies.
	metaOffset := vh.MetadataBlock[0] * w.blockSize
	return w.handleMetadataHeader(metaOffset)
}

func (w *Walker) handleMetadataHeader(offset uint64) error {
	buf := make([]byte, 512)
	if _, err := w.dev.ReadAt(buf, int64(offset)); err != nil && err != io.EOF {
		return fmt.Errorf("corestorage: read metadata header at %d: %w", offset, err)
	}
	header, payload, err := ParseBlockHeader(buf)
	if err != nil {
		return err
	}
	if header.BlockType != BlockTypeMetadataHeader {
		return fmt.Errorf("corestorage: %w: block at %d has type %#x, want metadata header", ErrUnknownBlockType, offset, header.BlockType)
	}
	if !verifyBlockChecksum(buf) {
		w.log.V(1).Info("metadata header checksum mismatch", "offset", offset, "block", header.BlockNumber)
	}
	mh, err := ParseMetadataHeader(payload)
	if err != nil {
		return err
	}

	if mh.XmlSize > 0 {
		xmlBuf := make([]byte, mh.XmlSize)
		if _, err := w.dev.ReadAt(xmlBuf, int64(offset)+int64(mh.XmlOffset)); err != nil && err != io.EOF {
			return fmt.Errorf("corestorage: read metadata xml at %d: %w", offset, err)
		}
		// Parsed for completeness only; the walker does not currently
		// consume anything from the plaintext metadata descriptor's XML.
		if _, err := plist.Root(string(xmlBuf)); err != nil {
			w.log.V(1).Info("metadata descriptor plist did not parse", "error", err)
		}
	}

	vgBuf := make([]byte, volumeGroupsDescriptorSize)
	vgOffset := offset + uint64(mh.VolumeGroupsOffset)
	if _, err := w.dev.ReadAt(vgBuf, int64(vgOffset)); err != nil && err != io.EOF {
		return fmt.Errorf("corestorage: read volume groups descriptor at %d: %w", vgOffset, err)
	}
	vg, err := ParseVolumeGroupsDescriptor(vgBuf)
	if err != nil {
		return err
	}

	regionLength := vg.EncryptedMetadataSize * w.blockSize
	regionOffset := vg.EncryptedMetadataBlock[0] * w.blockSize
	return w.walkEncryptedMetadata(regionOffset, regionLength)
}

func (w *Walker) walkEncryptedMetadata(offset, length uint64) error {
	xts, err := aescipher.NewXTS(w.keyData[:], aescipher.Decrypt, w.physicalUUID[:])
	if err != nil {
		return fmt.Errorf("corestorage: encrypted-metadata xts setup: %w", err)
	}
	defer xts.Zero()

	numRecords := length / EncryptedRecordSize
	record := make([]byte, EncryptedRecordSize)
	plainBuf := make([]byte, EncryptedRecordSize)

	for idx := uint64(0); idx < numRecords; idx++ {
		recOffset := offset + idx*EncryptedRecordSize
		if _, err := w.dev.ReadAt(record, int64(recOffset)); err != nil && err != io.EOF {
			return fmt.Errorf("corestorage: read encrypted-metadata record %d: %w", idx, err)
		}

		if uniform, v := uniformByte(record); uniform {
			if v == 0 {
				break // end of region
			}
			continue // uniform non-zero filler record; skip
		}

		tweak := aescipher.SectorTweak(idx)
		if err := xts.Process(record, plainBuf, tweak); err != nil {
			return fmt.Errorf("corestorage: decrypt encrypted-metadata record %d: %w", idx, err)
		}

		if err := w.dispatchEncryptedBlock(plainBuf); err != nil {
			w.log.V(1).Info("skipping encrypted-metadata block", "record", idx, "error", err)
		}
	}

	w.haveRegion = true
	return nil
}

func uniformByte(b []byte) (bool, byte) {
	if len(b) == 0 {
		return true, 0
	}
	v := b[0]
	for _, c := range b[1:] {
		if c != v {
			return false, 0
		}
	}
	return true, v
}

func (w *Walker) dispatchEncryptedBlock(data []byte) error {
	header, payload, err := ParseBlockHeader(data)
	if err != nil {
		if errors.Is(err, ErrBlockWiped) {
			return nil
		}
		return err
	}

	switch header.BlockType {
	case BlockTypeCryptoUsers:
		return w.handleCryptoUsers(payload, data)
	case BlockTypeVolumeInfo:
		return w.handleVolumeInfo(payload, data)
	case BlockTypeExtent:
		return w.handleExtent(payload)
	default:
		return nil // peripheral/unknown block type; skip
	}
}

func (w *Walker) handleCryptoUsers(payload, full []byte) error {
	if w.haveVMK {
		return nil
	}
	ch, err := ParseCryptoUsersHeader(payload)
	if err != nil {
		return err
	}
	xml, err := sliceXML(full, ch.XmlOffset, ch.XmlSize)
	if err != nil {
		return err
	}

	root, err := plist.Root(string(xml))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPlist, err)
	}
	ctx := root.Get("com.apple.corestorage.lvf.encryption.context")
	if ctx == nil {
		ctx = &root
	}

	vmk, err := RecoverVolumeMasterKey(*ctx, w.passphrase)
	if err != nil {
		w.log.V(1).Info("crypto-user candidate rejected", "error", err)
		return nil
	}
	w.vmk = vmk
	w.haveVMK = true
	return nil
}

func (w *Walker) handleVolumeInfo(payload, full []byte) error {
	if w.haveSize {
		return nil
	}
	vh, err := ParseVolumeInfoHeader(payload)
	if err != nil {
		return err
	}
	xml, err := sliceXML(full, vh.XmlOffset, vh.XmlSize)
	if err != nil {
		return err
	}

	root, err := plist.Root(string(xml))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPlist, err)
	}
	info, err := ParseVolumeInfo(root)
	if err != nil {
		return err
	}

	w.familyUUID = info.FamilyUUID
	w.logicalUUID = info.LogicalUUID
	w.volumeSize = info.Size
	w.haveSize = true
	return nil
}

func (w *Walker) handleExtent(payload []byte) error {
	if w.haveExtents {
		return nil
	}
	ext, err := ParseExtent(payload)
	if err != nil {
		return err
	}
	w.numBlocks = ext.Blocks
	w.firstBlock = ext.FirstBlock
	w.haveExtents = true
	return nil
}

func sliceXML(full []byte, offset, size uint32) ([]byte, error) {
	if size == 0 {
		return nil, fmt.Errorf("corestorage: %w: empty xml span", ErrMalformedPlist)
	}
	end := int(offset) + int(size)
	if end > len(full) {
		return nil, fmt.Errorf("corestorage: %w: xml span [%d,%d) exceeds block length %d", ErrMalformedPlist, offset, end, len(full))
	}
	return full[offset:end], nil
}
