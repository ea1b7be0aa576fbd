package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"testing"

	"github.com/stretchr/testify/require"
)

func encryptNoPadding(key, iv, src []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(dst, src)
	return dst, nil
}

func TestPageIV(t *testing.T) {
	var fileIV [16]byte
	for i := range fileIV {
		fileIV[i] = byte(i)
	}

	got := PageIV(0x1000, fileIV)
	want := [16]byte{
		0x10, 0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07,
		0x18, 0x09, 0x0A, 0x0B, 0x0C, 0x0D, 0x0E, 0x0F,
	}
	require.Equal(t, want, got)
}

func TestRecoverFileIV(t *testing.T) {
	var key [16]byte // all zero

	var fileIV [16]byte
	for i := range fileIV {
		fileIV[i] = 0xAA
	}

	// The real container encrypts the first page under page_iv(0, fileIV),
	// which the XOR-with-zero-offset identity collapses to fileIV itself.
	ciphertext, err := encryptNoPadding(key[:], fileIV[:], NTFSHeader[:])
	require.NoError(t, err)

	got, err := RecoverFileIV(key, NTFSHeader, ciphertext)
	require.NoError(t, err)
	require.Equal(t, fileIV, got)
}
