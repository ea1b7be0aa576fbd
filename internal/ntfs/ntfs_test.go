package ntfs

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vaultimg/vaultimg/internal/logger"
)

const (
	testRecordSize  = 1024
	testAttrsOffset = 56
)

// buildRecord assembles a minimal MFT record: header, a resident
// $FILE_NAME attribute, and (for files) a resident $DATA attribute.
func buildRecord(recordNum uint16, isDirectory bool, parentRef uint64, name string, residentData []byte) []byte {
	rec := make([]byte, testRecordSize)
	le := binary.LittleEndian

	copy(rec[0:4], recordMagic)
	le.PutUint16(rec[20:22], testAttrsOffset)
	flags := uint16(recordFlagInUse)
	if isDirectory {
		flags |= recordFlagDirectory
	}
	le.PutUint16(rec[22:24], flags)
	le.PutUint16(rec[42:44], recordNum)

	pos := testAttrsOffset

	nameUnits := utf16.Encode([]rune(name))
	fnValueLen := 66 + len(nameUnits)*2
	le.PutUint32(rec[pos:pos+4], attrTypeFileName)
	le.PutUint32(rec[pos+16:pos+20], uint32(fnValueLen))
	le.PutUint16(rec[pos+20:pos+22], 24)

	valueStart := pos + 24
	le.PutUint64(rec[valueStart:valueStart+8], parentRef)
	rec[valueStart+64] = byte(len(nameUnits))
	rec[valueStart+65] = 1 // Win32 namespace
	for i, u := range nameUnits {
		le.PutUint16(rec[valueStart+66+i*2:valueStart+68+i*2], u)
	}

	attrLen := 24 + fnValueLen
	le.PutUint32(rec[pos+4:pos+8], uint32(attrLen))
	pos += attrLen

	if !isDirectory {
		dataValueLen := len(residentData)
		le.PutUint32(rec[pos:pos+4], attrTypeData)
		le.PutUint32(rec[pos+16:pos+20], uint32(dataValueLen))
		le.PutUint16(rec[pos+20:pos+22], 24)
		copy(rec[pos+24:pos+24+dataValueLen], residentData)

		dataAttrLen := 24 + dataValueLen
		le.PutUint32(rec[pos+4:pos+8], uint32(dataAttrLen))
		pos += dataAttrLen
	}

	le.PutUint32(rec[pos:pos+4], attrTypeEnd)
	pos += 8

	le.PutUint32(rec[24:28], uint32(pos))
	le.PutUint32(rec[28:32], testRecordSize)
	return rec
}

// fakeMFT serves fixed-size records keyed by record number, emulating a
// raw device positioned so record N lives at N*testRecordSize.
type fakeMFT struct {
	records map[uint64][]byte
}

func (f *fakeMFT) ReadAt(p []byte, off int64) (int, error) {
	recordNum := uint64(off) / testRecordSize
	rec, ok := f.records[recordNum]
	if !ok {
		rec = make([]byte, testRecordSize)
	}
	n := copy(p, rec)
	return n, nil
}

func newTestExtractor(records map[uint64][]byte) *Extractor {
	return &Extractor{
		dev:           &fakeMFT{records: records},
		mftOffset:     0,
		mftRecordSize: testRecordSize,
		cache:         newDirCache(),
		log:           logger.New(io.Discard, logger.ErrorLevel),
	}
}

func TestBuildPathResolvesNestedDirectories(t *testing.T) {
	e := newTestExtractor(map[uint64][]byte{
		6: buildRecord(6, true, rootRecord, "docs", nil),
		7: buildRecord(7, true, 6, "reports", nil),
	})

	path, ok := e.buildPath(7)
	require.True(t, ok)
	assert.Equal(t, "docs/reports", path)
}

func TestBuildPathCachesDirectories(t *testing.T) {
	e := newTestExtractor(map[uint64][]byte{
		6: buildRecord(6, true, rootRecord, "docs", nil),
	})

	first, ok := e.buildPath(6)
	require.True(t, ok)
	assert.Equal(t, "docs", first)

	cached, ok := e.cache.get(6)
	require.True(t, ok)
	assert.Equal(t, "docs", cached)

	// Remove the backing record; a second call must be served from cache.
	delete(e.dev.(*fakeMFT).records, 6)
	second, ok := e.buildPath(6)
	require.True(t, ok)
	assert.Equal(t, "docs", second)
}

func TestBuildPathRejectsMetadataFiles(t *testing.T) {
	e := newTestExtractor(map[uint64][]byte{
		6: buildRecord(6, true, rootRecord, "$Extend", nil),
	})

	_, ok := e.buildPath(6)
	assert.False(t, ok)
}

func TestFullPathFallsBackToNameOnUnresolvedParent(t *testing.T) {
	e := newTestExtractor(nil)
	got := e.fullPath(999, "orphan.txt")
	assert.Equal(t, "orphan.txt", got)
}

func TestProcessRecordExtractsResidentFile(t *testing.T) {
	e := newTestExtractor(map[uint64][]byte{
		6: buildRecord(6, true, rootRecord, "docs", nil),
	})
	e.basePath = t.TempDir()

	fileRecord := buildRecord(7, false, 6, "readme.txt", []byte("hello world"))
	require.NoError(t, e.processRecord(fileRecord))

	data, err := os.ReadFile(filepath.Join(e.basePath, "docs", "readme.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestProcessRecordSkipsNotInUse(t *testing.T) {
	e := newTestExtractor(nil)
	rec := buildRecord(8, false, rootRecord, "ghost.txt", []byte("x"))
	binary.LittleEndian.PutUint16(rec[22:24], 0) // clear in-use flag
	e.basePath = t.TempDir()

	assert.NoError(t, e.processRecord(rec))
}

func TestExtractFileInfoSkipsDOSNamespaceDuplicate(t *testing.T) {
	rec := buildRecord(9, false, rootRecord, "LONGFI~1.TXT", []byte("x"))
	// Overwrite the namespace byte to DOS so the only $FILE_NAME present
	// is rejected, mirroring a record where only the short name survived.
	rec[testAttrsOffset+24+65] = namespaceDOS

	info := extractFileInfo(rec)
	assert.False(t, info.Valid)
}
