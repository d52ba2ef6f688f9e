package corestorage

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/csforensics/corestorage-recover/internal/aescipher"
	"github.com/csforensics/corestorage-recover/internal/b64"
	"github.com/csforensics/corestorage-recover/internal/passphrase"
	"github.com/csforensics/corestorage-recover/internal/sha2"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Synthetic 64 MiB Core Storage image: one volume header, one metadata
// header copy, and an 8-record (8192*8 byte) encrypted-metadata region
// holding a CryptoUsers, a VolumeInfo and an Extent block, followed by an
// all-zero terminator record. Byte layout mirrors the Parse* functions'
// own field offsets directly, rather than re-deriving them, so the
// fixture and the parser stay honest about the same wire format.
const (
	fxImageSize  = 64 * 1024 * 1024
	fxBlockSize  = 4096
	fxMetaBlock  = 1  // metadata header copy 0, at block 1
	fxEncBlock   = 2  // encrypted-metadata region starts at block 2
	fxEncBlocks  = 16 // 16*4096 = 65536 = 8 records of 8192 bytes
	fxFirstBlock = 20 // logical volume's first physical block (past the metadata region)
	fxIterations = 4096
)

var (
	fxPhysicalUUID = uuid.MustParse("aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	fxGroupUUID    = uuid.MustParse("11111111-2222-3333-4444-555555555555")
	fxFamilyUUID   = uuid.MustParse("66666666-7777-8888-9999-aaaaaaaaaaaa")
	fxLogicalUUID  = uuid.MustParse("01234567-89ab-cdef-0123-456789abcdef")

	fxKeyData   = [16]byte{0x30, 0x31, 0x32, 0x33, 0x34, 0x35, 0x36, 0x37, 0x38, 0x39, 0x3a, 0x3b, 0x3c, 0x3d, 0x3e, 0x3f}
	fxKEK       = []byte{0x10, 0x11, 0x12, 0x13, 0x14, 0x15, 0x16, 0x17, 0x18, 0x19, 0x1a, 0x1b, 0x1c, 0x1d, 0x1e, 0x1f}
	fxVMK       = []byte{0x20, 0x21, 0x22, 0x23, 0x24, 0x25, 0x26, 0x27, 0x28, 0x29, 0x2a, 0x2b, 0x2c, 0x2d, 0x2e, 0x2f}
	fxSalt      = make([]byte, 16)
	fxPassword  = []byte("password")
	fxVolSize   = uint64(0x400000)
	fxPlaintext = bytes.Repeat([]byte{0xcc}, EncryptedRecordSize)
)

func fxHeader(blockType uint16) []byte {
	h := make([]byte, BlockHeaderSize)
	binary.LittleEndian.PutUint16(h[10:12], blockType)
	return h
}

func fxPad(b []byte, size int) []byte {
	if len(b) > size {
		panic("fixture block exceeds record size")
	}
	return append(b, make([]byte, size-len(b))...)
}

// buildFixture lays out a synthetic Core Storage image at dir/image.bin and
// returns its path. When garbageAfterTerminator is set, record 4, the
// encrypted-metadata record right after the all-zero terminator (record
// 3), is filled with non-uniform bytes, so a walk that did not stop at the
// terminator would read, decrypt and dispatch it.
func buildFixture(t *testing.T, dir string, garbageAfterTerminator bool) string {
	t.Helper()

	path := filepath.Join(dir, "image.bin")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, f.Truncate(fxImageSize))

	// Sector 0: CS_BLOCK_10_HEADER (volume header). 72-byte generic header +
	// 440-byte payload fills the 512-byte sector exactly.
	vhPayload := make([]byte, 440)
	copy(vhPayload[16:18], []byte("CS"))
	binary.LittleEndian.PutUint16(vhPayload[22:24], 1)
	binary.LittleEndian.PutUint32(vhPayload[24:28], fxBlockSize)
	binary.LittleEndian.PutUint64(vhPayload[32:40], fxMetaBlock)
	copy(vhPayload[104:120], fxKeyData[:])
	copy(vhPayload[232:248], fxPhysicalUUID[:])
	copy(vhPayload[248:264], fxGroupUUID[:])
	sector0 := append(fxHeader(BlockTypeVolumeHeader), vhPayload...)
	_, err = f.WriteAt(sector0, 0)
	require.NoError(t, err)

	// Block 1: CS_BLOCK_11_HEADER (metadata header) immediately followed by
	// its CS_VOLUME_GROUPS_DESCRIPTOR, placed right after the fixed
	// payload so VolumeGroupsOffset is simply their combined length.
	mhPayload := make([]byte, 208)
	const vgOffset = BlockHeaderSize + 208
	binary.LittleEndian.PutUint32(mhPayload[148:152], uint32(vgOffset))
	vgPayload := make([]byte, 48)
	binary.LittleEndian.PutUint64(vgPayload[8:16], fxEncBlocks)
	binary.LittleEndian.PutUint64(vgPayload[32:40], fxEncBlock)
	block1 := append(fxHeader(BlockTypeMetadataHeader), mhPayload...)
	block1 = append(block1, vgPayload...)
	_, err = f.WriteAt(block1, fxMetaBlock*fxBlockSize)
	require.NoError(t, err)

	// CryptoUsers / WrappedVolumeKeys chain: pass_key wraps the KEK, the
	// KEK wraps the Volume Master Key.
	passKey := derivePassKey(fxPassword, fxSalt, fxIterations)
	wrappedKEK, err := aescipher.Wrap(passKey, fxKEK)
	require.NoError(t, err)
	wrappedVMK, err := aescipher.Wrap(fxKEK, fxVMK)
	require.NoError(t, err)

	rawKEKStruct := make([]byte, 284)
	copy(rawKEKStruct[8:24], fxSalt)
	copy(rawKEKStruct[32:56], wrappedKEK)
	binary.LittleEndian.PutUint32(rawKEKStruct[172:176], fxIterations)

	rawVMKStruct := make([]byte, 256)
	copy(rawVMKStruct[8:32], wrappedVMK)

	cryptoUsersXML := fmt.Sprintf(
		`<plist version="1.0"><dict>`+
			`<key>com.apple.corestorage.lvf.encryption.context</key><dict>`+
			`<key>CryptoUsers</key><array><dict>`+
			`<key>PassphraseWrappedKEKStruct</key><data>%s</data>`+
			`<key>WrappedVolumeKeys</key><array><dict>`+
			`<key>KEKWrappedVolumeKeyStruct</key><data>%s</data>`+
			`</dict></array></dict></array></dict></dict></plist>`,
		b64.Encode(rawKEKStruct), b64.Encode(rawVMKStruct))

	const cuXMLOffset = BlockHeaderSize + 48
	cuPayload := make([]byte, 48)
	binary.LittleEndian.PutUint32(cuPayload[40:44], uint32(cuXMLOffset))
	binary.LittleEndian.PutUint32(cuPayload[44:48], uint32(len(cryptoUsersXML)))
	rec0 := append(fxHeader(BlockTypeCryptoUsers), cuPayload...)
	rec0 = append(rec0, []byte(cryptoUsersXML)...)
	rec0 = fxPad(rec0, EncryptedRecordSize)

	volumeInfoXML := fmt.Sprintf(
		`<plist version="1.0"><dict>`+
			`<key>com.apple.corestorage.lv.familyUUID</key><string>%s</string>`+
			`<key>com.apple.corestorage.lv.uuid</key><string>%s</string>`+
			`<key>com.apple.corestorage.lv.size</key><string>0x%x</string>`+
			`</dict></plist>`,
		fxFamilyUUID.String(), fxLogicalUUID.String(), fxVolSize)

	const viXMLOffset = BlockHeaderSize + 64
	viPayload := make([]byte, 64)
	binary.LittleEndian.PutUint32(viPayload[56:60], uint32(viXMLOffset))
	binary.LittleEndian.PutUint32(viPayload[60:64], uint32(len(volumeInfoXML)))
	rec1 := append(fxHeader(BlockTypeVolumeInfo), viPayload...)
	rec1 = append(rec1, []byte(volumeInfoXML)...)
	rec1 = fxPad(rec1, EncryptedRecordSize)

	exPayload := make([]byte, 16)
	binary.LittleEndian.PutUint64(exPayload[0:8], 1)
	binary.LittleEndian.PutUint64(exPayload[8:16], fxFirstBlock)
	rec2 := append(fxHeader(BlockTypeExtent), exPayload...)
	rec2 = fxPad(rec2, EncryptedRecordSize)

	xtsMeta, err := aescipher.NewXTS(fxKeyData[:], aescipher.Encrypt, fxPhysicalUUID[:])
	require.NoError(t, err)

	encBase := int64(fxEncBlock * fxBlockSize)
	for idx, plain := range [][]byte{rec0, rec1, rec2} {
		cipher := make([]byte, EncryptedRecordSize)
		require.NoError(t, xtsMeta.Process(plain, cipher, aescipher.SectorTweak(uint64(idx))))
		_, err = f.WriteAt(cipher, encBase+int64(idx)*EncryptedRecordSize)
		require.NoError(t, err)
	}
	// Record 3 is left as the image's sparse zero fill: the all-zero
	// terminator record.
	if garbageAfterTerminator {
		garbage := bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, EncryptedRecordSize/4)
		_, err = f.WriteAt(garbage, encBase+4*EncryptedRecordSize)
		require.NoError(t, err)
	}

	digestInput := append(append([]byte{}, fxVMK...), fxFamilyUUID[:]...)
	digest := sha2.Sum256(digestInput)
	xtsVol, err := aescipher.NewXTS(fxVMK, aescipher.Encrypt, digest[:16])
	require.NoError(t, err)
	cipherSector := make([]byte, EncryptedRecordSize)
	require.NoError(t, xtsVol.Process(fxPlaintext, cipherSector, aescipher.SectorTweak(0)))
	_, err = f.WriteAt(cipherSector, int64(fxFirstBlock*fxBlockSize))
	require.NoError(t, err)

	return path
}

func TestWalkerRecoversKnownVolumeMasterKey(t *testing.T) {
	path := buildFixture(t, t.TempDir(), true)
	dev, err := os.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	src := passphrase.NewStatic(append([]byte(nil), fxPassword...))
	w := NewWalker(dev, src, logr.Discard())
	require.NoError(t, w.Run())

	assert.True(t, w.Mountable())
	assert.Equal(t, fxPhysicalUUID, w.PhysicalUUID())
	assert.Equal(t, fxGroupUUID, w.GroupUUID())
	assert.Equal(t, fxFamilyUUID, w.FamilyUUID())
	assert.Equal(t, fxLogicalUUID, w.LogicalUUID())
	assert.Equal(t, fxVolSize, w.VolumeSize())
	assert.Equal(t, fxVMK, w.vmk)

	reader, err := w.CipherContext()
	require.NoError(t, err)
	buf := make([]byte, EncryptedRecordSize)
	n, err := reader.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, EncryptedRecordSize, n)
	assert.Equal(t, fxPlaintext, buf)

	w.Zero()
	for _, b := range w.vmk {
		assert.Zero(t, b)
	}
}

func TestWalkerWrongPassphraseIsRecoverable(t *testing.T) {
	path := buildFixture(t, t.TempDir(), false)
	dev, err := os.Open(path)
	require.NoError(t, err)
	defer dev.Close()

	src := passphrase.NewStatic([]byte("not-the-passphrase"))
	w := NewWalker(dev, src, logr.Discard())
	err = w.Run()
	require.ErrorIs(t, err, ErrWrongPassphrase)
	assert.False(t, w.Mountable())
	assert.Empty(t, w.vmk)

	_, err = w.CipherContext()
	assert.ErrorIs(t, err, ErrNotMountable)
}

// maxReadRecorder wraps an io.ReaderAt and records the furthest byte
// offset any ReadAt call reached.
type maxReadRecorder struct {
	r      io.ReaderAt
	maxEnd int64
}

func (m *maxReadRecorder) ReadAt(p []byte, off int64) (int, error) {
	if end := off + int64(len(p)); end > m.maxEnd {
		m.maxEnd = end
	}
	return m.r.ReadAt(p, off)
}

func TestWalkerStopsAtAllZeroTerminator(t *testing.T) {
	// Same fixture, but with non-uniform garbage one record past the
	// all-zero terminator: the walk must succeed without reading any byte
	// past the terminator record (record 3).
	path := buildFixture(t, t.TempDir(), true)
	dev, err := os.Open(path)
	require.NoError(t, err)
	defer dev.Close()
	rec := &maxReadRecorder{r: dev}

	src := passphrase.NewStatic(append([]byte(nil), fxPassword...))
	w := NewWalker(rec, src, logr.Discard())
	require.NoError(t, w.Run())
	assert.True(t, w.Mountable())
	assert.LessOrEqual(t, rec.maxEnd, int64(fxEncBlock*fxBlockSize+4*EncryptedRecordSize))
}
