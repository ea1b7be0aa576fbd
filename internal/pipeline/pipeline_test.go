package pipeline

import (
	"crypto/aes"
	"crypto/cipher"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vaultimg/vaultimg/internal/container"
	"github.com/vaultimg/vaultimg/internal/cryptoutil"
	"github.com/vaultimg/vaultimg/internal/keystore"
	"github.com/vaultimg/vaultimg/internal/logger"
)

func encryptNoPadding(t *testing.T, key, iv, plaintext []byte) []byte {
	t.Helper()
	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	mode := cipher.NewCBCEncrypter(block, iv)
	out := make([]byte, len(plaintext))
	mode.CryptBlocks(out, plaintext)
	return out
}

// buildHeaderBytes assembles a 96-byte cleartext container header with the
// given container type, block geometry, and id, leaving every other field
// zeroed.
func buildHeaderBytes(t *testing.T, containerType container.Type, id string, blockCount, blockSize, headerBlockCount uint64) []byte {
	t.Helper()
	h := make([]byte, container.Size)
	h[13] = byte(containerType)
	copy(h[16:20], id)
	copy(h[64:67], id)

	putU64 := func(off int, v uint64) {
		for i := 0; i < 8; i++ {
			h[off+i] = byte(v >> (8 * i))
		}
	}
	putU64(32, blockCount)
	putU64(40, blockSize)
	putU64(48, headerBlockCount)
	return h
}

func TestDecryptFileWithFixedIV(t *testing.T) {
	dir := t.TempDir()

	const blockSize = 4096
	const headerBlocks = 1
	const totalBlocks = 3 // 1 header block + 2 payload blocks

	key := [16]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	iv := [16]byte{16, 15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}

	plainHeader := buildHeaderBytes(t, container.TypeOS, "PS3", totalBlocks, blockSize, headerBlocks)
	encryptedHeader := encryptNoPadding(t, cryptoutil.BootIDKey[:], cryptoutil.BootIDIV[:], plainHeader)

	plainPayload := make([]byte, blockSize*(totalBlocks-headerBlocks))
	for i := range plainPayload {
		plainPayload[i] = byte(i)
	}

	var encryptedPayload []byte
	for off := 0; off < len(plainPayload); off += cryptoutil.PageSize {
		end := off + cryptoutil.PageSize
		pageIV := cryptoutil.PageIV(uint64(off), iv)
		encryptedPayload = append(encryptedPayload, encryptNoPadding(t, key[:], pageIV[:], plainPayload[off:end])...)
	}

	inputPath := filepath.Join(dir, "container.bin")
	headerBlockPadding := make([]byte, blockSize*headerBlocks-len(encryptedHeader))
	data := append(append([]byte{}, encryptedHeader...), headerBlockPadding...)
	data = append(data, encryptedPayload...)
	require.NoError(t, os.WriteFile(inputPath, data, 0o644))

	keystore.Register("PS3", key, iv, true)
	keys := keystore.NewDir(dir)
	log := logger.New(os.Stderr, logger.ErrorLevel)

	res, err := DecryptFile(inputPath, keys, log)
	require.NoError(t, err)
	require.Equal(t, container.TypeOS, res.ContainerType)

	got, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, plainPayload, got)
}

func TestDecryptFileRecoversFileIV(t *testing.T) {
	dir := t.TempDir()

	const blockSize = 4096
	const headerBlocks = 1
	const totalBlocks = 2

	key := [16]byte{9, 8, 7, 6, 5, 4, 3, 2, 1, 0, 1, 2, 3, 4, 5, 6}
	fileIV := [16]byte{0xAA, 0xBB, 0xCC, 0xDD, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}

	plainHeader := buildHeaderBytes(t, container.TypeOS, "XB1", totalBlocks, blockSize, headerBlocks)
	encryptedHeader := encryptNoPadding(t, cryptoutil.BootIDKey[:], cryptoutil.BootIDIV[:], plainHeader)

	plainPayload := make([]byte, blockSize)
	copy(plainPayload, cryptoutil.NTFSHeader[:])
	for i := 16; i < len(plainPayload); i++ {
		plainPayload[i] = byte(i)
	}

	// PageIV(0, fileIV) == fileIV, by construction of the page-IV formula.
	encryptedPayload := encryptNoPadding(t, key[:], fileIV[:], plainPayload)

	inputPath := filepath.Join(dir, "container.bin")
	headerBlockPadding := make([]byte, blockSize*headerBlocks-len(encryptedHeader))
	data := append(append([]byte{}, encryptedHeader...), headerBlockPadding...)
	data = append(data, encryptedPayload...)
	require.NoError(t, os.WriteFile(inputPath, data, 0o644))

	// No IV in the sidecar: the pipeline must recover it from known plaintext.
	keysDir := keystore.NewDir(dir)
	require.NoError(t, keysDir.WriteSidecar("XB1", key, nil))

	log := logger.New(os.Stderr, logger.ErrorLevel)
	res, err := DecryptFile(inputPath, keysDir, log)
	require.NoError(t, err)

	got, err := os.ReadFile(res.OutputPath)
	require.NoError(t, err)
	require.Equal(t, plainPayload, got)
}
