package vhd

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeVHD builds a minimal dynamic-disk VHD image in memory, matching
// scenario S4 from the spec: a 2 MiB block size, one allocated block of
// 0x55, and one unallocated (BAT = 0xFFFFFFFF) block.
func fakeVHD(t *testing.T) (*bytes.Reader, int64) {
	t.Helper()

	const (
		blockSize        = 2 << 20
		sectorBitmapSize = blockSize / 512 / 8 // 512 bytes for a 2 MiB block
		dynHeaderOffset  = 0
		batOffset        = 512
		block0Sector     = 2 // byte offset 1024
		block0Offset     = block0Sector * 512
	)

	total := block0Offset + sectorBitmapSize + blockSize + footerSize
	buf := make([]byte, total)

	be := binary.BigEndian

	copy(buf[dynHeaderOffset:], dynamicCookie)
	be.PutUint64(buf[dynHeaderOffset+8:], uint64(dynHeaderOffset))
	be.PutUint64(buf[dynHeaderOffset+16:], uint64(batOffset))
	be.PutUint32(buf[dynHeaderOffset+28:], 2) // max_bat_entries
	be.PutUint32(buf[dynHeaderOffset+32:], blockSize)

	be.PutUint32(buf[batOffset:], block0Sector)
	be.PutUint32(buf[batOffset+4:], batEntryUnused)

	payloadStart := block0Offset + sectorBitmapSize
	for i := 0; i < blockSize; i++ {
		buf[payloadStart+i] = 0x55
	}

	footerOffset := total - footerSize
	copy(buf[footerOffset:], cookie)
	be.PutUint64(buf[footerOffset+16:], uint64(dynHeaderOffset))
	be.PutUint64(buf[footerOffset+48:], 4<<20) // current_size
	be.PutUint32(buf[footerOffset+60:], diskTypeDynamic)

	return bytes.NewReader(buf), int64(total)
}

func TestDynamicDiskZeroFillsUnallocatedBlocks(t *testing.T) {
	r, size := fakeVHD(t)
	disk, err := Open(r, size)
	require.NoError(t, err)

	out := make([]byte, 4<<20)
	n, err := disk.ReadAt(out, 0)
	require.NoError(t, err)
	require.Equal(t, len(out), n)

	for i := 0; i < 2<<20; i++ {
		require.Equalf(t, byte(0x55), out[i], "byte %d of allocated block", i)
	}
	for i := 2 << 20; i < len(out); i++ {
		require.Equalf(t, byte(0x00), out[i], "byte %d of unallocated block", i)
	}
}
