package ntfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDataRunsSignedDelta(t *testing.T) {
	runList := []byte{0x21, 0x10, 0xF0, 0x11, 0x21, 0x08, 0xF0, 0xFF}
	runs := ParseDataRuns(runList)

	require.Len(t, runs, 2)
	require.Equal(t, DataRun{Offset: 4592, Length: 16}, runs[0])
	require.Equal(t, DataRun{Offset: 4576, Length: 8}, runs[1])
}

func TestParseDataRunsStopsAtZeroHeader(t *testing.T) {
	runs := ParseDataRuns([]byte{0x00})
	require.Empty(t, runs)
}
