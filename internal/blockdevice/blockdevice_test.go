package blockdevice

import (
	"bytes"
	"os"
	"testing"
)

func writeTempImage(t *testing.T, data []byte) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "blockdevice-*.img")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return f.Name()
}

func sequentialBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i)
	}
	return b
}

func TestReadAtUnalignedSpanMatchesSource(t *testing.T) {
	data := sequentialBytes(4096)
	path := writeTempImage(t, data)

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	// Pin the sector size explicitly rather than relying on Open's
	// regular-file default, so the alignment arithmetic below is fixed
	// at 512 regardless of how Open sizes the file.
	d.sectorSize = 512

	cases := []struct {
		off int64
		n   int
	}{
		{0, 10},
		{1, 10},
		{511, 2},
		{512, 100},
		{1000, 50},
		{4000, 96},
	}
	for _, c := range cases {
		got := make([]byte, c.n)
		n, err := d.ReadAt(got, c.off)
		if err != nil {
			t.Fatalf("ReadAt(off=%d,n=%d): %v", c.off, c.n, err)
		}
		if n != c.n {
			t.Fatalf("ReadAt(off=%d,n=%d) = %d bytes, want %d", c.off, c.n, n, c.n)
		}
		want := data[c.off : c.off+int64(c.n)]
		if !bytes.Equal(got, want) {
			t.Fatalf("ReadAt(off=%d,n=%d) = %x, want %x", c.off, c.n, got, want)
		}
	}
}

func TestReadAtNearEOFTruncates(t *testing.T) {
	data := sequentialBytes(600)
	path := writeTempImage(t, data)

	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	d.sectorSize = 512

	got := make([]byte, 50)
	n, err := d.ReadAt(got, 580)
	if n != 20 {
		t.Fatalf("ReadAt near EOF returned n=%d, want 20", n)
	}
	if !bytes.Equal(got[:20], data[580:600]) {
		t.Fatalf("ReadAt near EOF = %x, want %x", got[:20], data[580:600])
	}
	_ = err
}

func TestSectorSizeDefaultsWhenUndiscoverable(t *testing.T) {
	path := writeTempImage(t, sequentialBytes(16))
	d, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()
	if d.SectorSize() == 0 {
		t.Fatalf("SectorSize() = 0, want a positive default")
	}
}

func TestResolveSectorSizeSkipsQueryForRegularFile(t *testing.T) {
	// A disk image is a regular file, not a device node: its sector
	// geometry is never queried, so resolveSectorSize must return the
	// conventional default rather than attempting (and failing) an ioctl.
	path := writeTempImage(t, sequentialBytes(16))
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	got, err := resolveSectorSize(f)
	if err != nil {
		t.Fatalf("resolveSectorSize: %v", err)
	}
	if got != defaultSectorSize {
		t.Fatalf("resolveSectorSize(regular file) = %d, want %d", got, defaultSectorSize)
	}
}
