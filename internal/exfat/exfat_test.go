package exfat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDevice is a flat in-memory byte slice implementing io.ReaderAt.
type fakeDevice []byte

func (f fakeDevice) ReadAt(p []byte, off int64) (int, error) {
	n := copy(p, f[off:])
	return n, nil
}

// TestClusterHeapContiguousShortcut verifies the S5 scenario: FAT[10]=0 and
// FAT[11]=0 mean "cluster heap is contiguous here", so the chain starting
// at cluster 10 with a 3-cluster span visits clusters 10, 11, 12 in order
// even though only FAT[12] carries an explicit end-of-chain marker.
func TestClusterHeapContiguousShortcut(t *testing.T) {
	const bytesPerCluster = 512
	fat := make([]uint32, 16)
	fat[10] = 0
	fat[11] = 0
	fat[12] = 0xFFFFFFF8

	heap := &clusterHeap{
		dev:             fakeDevice(make([]byte, 1<<20)),
		bytesPerCluster: bytesPerCluster,
		heapOffsetBytes: 0,
		fat:             fat,
	}

	var visited []uint32
	cluster := uint32(10)
	for cluster != 0 {
		visited = append(visited, cluster)
		if len(visited) > 10 {
			t.Fatal("chain walk did not terminate")
		}
		cluster = heap.nextCluster(cluster)
	}

	require.Equal(t, []uint32{10, 11, 12}, visited)
}

func TestClusterOffset(t *testing.T) {
	heap := &clusterHeap{bytesPerCluster: 4096, heapOffsetBytes: 0x100000}
	require.EqualValues(t, 0x100000, heap.clusterOffset(2))
	require.EqualValues(t, 0x100000+4096, heap.clusterOffset(3))
}

func buildFileEntrySet(name string, firstCluster uint32, dataLength uint64, isDirectory bool) []byte {
	nameUnits := []rune(name)
	numNameEntries := (len(nameUnits) + 14) / 15
	buf := make([]byte, entrySize*(2+numNameEntries))

	buf[0] = entryFile
	var attrs uint16
	if isDirectory {
		attrs = attrDirectory
	}
	buf[4] = byte(attrs)
	buf[5] = byte(attrs >> 8)

	stream := buf[entrySize : entrySize*2]
	stream[0] = entryStream
	stream[3] = byte(len(nameUnits))
	stream[20] = byte(firstCluster)
	stream[21] = byte(firstCluster >> 8)
	stream[22] = byte(firstCluster >> 16)
	stream[23] = byte(firstCluster >> 24)
	for i := 0; i < 8; i++ {
		stream[24+i] = byte(dataLength >> (8 * i))
	}

	for k := 0; k < numNameEntries; k++ {
		nameEntry := buf[entrySize*(2+k) : entrySize*(2+k)+entrySize]
		nameEntry[0] = entryFileName
		charsInEntry := len(nameUnits) - k*15
		if charsInEntry > 15 {
			charsInEntry = 15
		}
		for j := 0; j < charsInEntry; j++ {
			ch := nameUnits[k*15+j]
			nameEntry[2+j*2] = byte(ch)
			nameEntry[3+j*2] = byte(ch >> 8)
		}
	}

	return buf
}

func TestParseDirEntrySet(t *testing.T) {
	buf := buildFileEntrySet("hello.txt", 42, 1000, false)
	set, ok := parseDirEntrySet(buf)
	require.True(t, ok)
	require.Equal(t, "hello.txt", set.Name)
	require.EqualValues(t, 42, set.FirstCluster)
	require.EqualValues(t, 1000, set.DataLength)
	require.False(t, set.IsDirectory)
	require.Equal(t, len(buf)/entrySize, set.entryCount)
}

func TestParseDirEntrySetLongName(t *testing.T) {
	name := "a_very_long_filename_spanning_multiple_name_entries.bin"
	buf := buildFileEntrySet(name, 7, 5000, true)
	set, ok := parseDirEntrySet(buf)
	require.True(t, ok)
	require.Equal(t, name, set.Name)
	require.True(t, set.IsDirectory)
}

func TestParseDirEntrySetRejectsMissingStream(t *testing.T) {
	buf := make([]byte, entrySize*2)
	buf[0] = entryFile
	buf[entrySize] = 0x00 // not a stream entry
	_, ok := parseDirEntrySet(buf)
	require.False(t, ok)
}
