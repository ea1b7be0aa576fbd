package manifest

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteAndReadRoundTrip(t *testing.T) {
	doc := NewDocument("os_20260101_0.ntfs", 1<<20)
	doc.AddDirectory("Users")
	doc.AddFile("Users/readme.txt", 13, []ByteRun{{Offset: 0, ImageOffset: 4096 * 100, Length: 13}})

	var buf bytes.Buffer
	w, err := NewWriter(&buf, doc)
	require.NoError(t, err)
	for _, e := range doc.Entries {
		require.NoError(t, w.WriteEntry(e))
	}
	require.NoError(t, w.Close())

	got, err := Read(&buf)
	require.NoError(t, err)
	require.Equal(t, Version, got.Version)
	require.Equal(t, "os_20260101_0.ntfs", got.Source.ImageFilename)
	require.Len(t, got.Entries, 2)
	require.True(t, got.Entries[0].IsDirectory)
	require.False(t, got.Entries[1].IsDirectory)
	require.Len(t, got.Entries[1].Runs, 1)
	require.EqualValues(t, 4096*100, got.Entries[1].Runs[0].ImageOffset)
}
