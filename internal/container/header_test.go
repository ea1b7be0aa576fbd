package container

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHeader(t *testing.T) []byte {
	t.Helper()
	b := make([]byte, Size)
	b[13] = byte(TypeOption)
	b[14] = 3 // sequence number
	copy(b[16:20], "ABCD")

	binary.LittleEndian.PutUint16(b[20:22], 2024) // year
	b[22] = 6                                     // month
	b[23] = 1                                     // day
	b[24] = 12                                    // hour
	b[25] = 0                                     // minute
	b[26] = 0                                     // second

	copy(b[28:32], "OPT1")

	binary.LittleEndian.PutUint64(b[32:40], 10) // block_count
	binary.LittleEndian.PutUint64(b[40:48], 4096)
	binary.LittleEndian.PutUint64(b[48:56], 1) // header_block_count
	return b
}

func TestParseAndOutputFilename(t *testing.T) {
	h, err := Parse(buildHeader(t))
	require.NoError(t, err)
	require.Equal(t, TypeOption, h.ContainerType)
	require.Equal(t, "ABCD_OPT1_20240601120000_3.exfat", h.OutputFilename())
}

func TestParseRejectsUnknownType(t *testing.T) {
	b := buildHeader(t)
	b[13] = 0x7F
	_, err := Parse(b)
	require.Error(t, err)
}

func TestParseRejectsHeaderBlockCountOverflow(t *testing.T) {
	b := buildHeader(t)
	binary.LittleEndian.PutUint64(b[48:56], 99) // header_block_count > block_count
	_, err := Parse(b)
	require.Error(t, err)
}

func TestParseRejectsShortHeader(t *testing.T) {
	_, err := Parse(make([]byte, 10))
	require.Error(t, err)
}

func TestDataOffsetAndPayloadLength(t *testing.T) {
	h, err := Parse(buildHeader(t))
	require.NoError(t, err)
	require.EqualValues(t, 4096, h.DataOffset())
	require.EqualValues(t, 9*4096, h.PayloadLength())
}
