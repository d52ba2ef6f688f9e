package corestorage

import (
	"encoding/binary"
	"hash/crc32"
	"testing"
)

func TestVerifyBlockChecksumRoundTrips(t *testing.T) {
	block := make([]byte, 512)
	for i := range block {
		block[i] = byte(i)
	}
	binary.LittleEndian.PutUint32(block[0:4], crc32.Checksum(block[8:], castagnoliTable))

	if !verifyBlockChecksum(block) {
		t.Fatal("expected checksum computed over bytes 8..512 to verify")
	}

	block[100] ^= 0xff
	if verifyBlockChecksum(block) {
		t.Fatal("expected corrupted block to fail checksum verification")
	}
}

func TestVerifyBlockChecksumRejectsShortBlock(t *testing.T) {
	if verifyBlockChecksum(make([]byte, 4)) {
		t.Fatal("expected a block shorter than the checksum prologue to fail")
	}
}
