package keystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vaultimg/vaultimg/internal/cryptoutil"
)

func TestResolveBuiltinTable(t *testing.T) {
	var key [16]byte
	for i := range key {
		key[i] = byte(i)
	}
	Register("ZZZ", key, [16]byte{}, false)

	d := NewDir(t.TempDir())
	e, err := d.Resolve("ZZZ")
	require.NoError(t, err)
	require.Equal(t, key, e.Key)
	require.False(t, e.HasIV)
}

func TestResolveSidecarKeyOnly(t *testing.T) {
	dir := t.TempDir()
	key := bytesOf(16, 0x42)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ABCD.bin"), key, 0o600))

	e, err := NewDir(dir).Resolve("ABCD")
	require.NoError(t, err)
	require.False(t, e.HasIV)
	require.EqualValues(t, key, e.Key[:])
}

func TestResolveSidecarKeyAndIV(t *testing.T) {
	dir := t.TempDir()
	key := bytesOf(16, 0x11)
	iv := bytesOf(16, 0x22)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ABCD.bin"), append(key, iv...), 0o600))

	e, err := NewDir(dir).Resolve("ABCD")
	require.NoError(t, err)
	require.True(t, e.HasIV)
	require.EqualValues(t, iv, e.IV[:])
}

func TestResolveSidecarDetectsAccidentalCleartextHeader(t *testing.T) {
	dir := t.TempDir()
	key := bytesOf(16, 0x11)
	data := append(append([]byte{}, key...), cryptoutil.NTFSHeader[:]...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "XYZ.bin"), data, 0o600))

	e, err := NewDir(dir).Resolve("XYZ")
	require.NoError(t, err)
	require.False(t, e.HasIV)
}

func TestResolveSidecarInvalidSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "BAD.bin"), bytesOf(10, 0), 0o600))

	_, err := NewDir(dir).Resolve("BAD")
	require.Error(t, err)
}

func TestResolveMissingSidecar(t *testing.T) {
	_, err := NewDir(t.TempDir()).Resolve("NOPE")
	require.Error(t, err)
}

func bytesOf(n int, v byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = v
	}
	return b
}
