package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

// DecryptNoPadding runs AES-128-CBC decryption over src with no padding
// removal, writing exactly len(src) bytes to a new slice. src must be a
// multiple of the AES block size.
func DecryptNoPadding(key, iv, src []byte) ([]byte, error) {
	if len(src)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("cryptoutil: input length %d is not a multiple of the block size", len(src))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cryptoutil: %w", err)
	}
	mode := cipher.NewCBCDecrypter(block, iv)
	dst := make([]byte, len(src))
	mode.CryptBlocks(dst, src)
	return dst, nil
}

// PageIV derives the IV for the page at fileOffset from the container's
// file IV. It reproduces a deliberate quirk of the original tool: the offset
// is folded into both 8-byte halves of the 16-byte IV independently, rather
// than spread across all 16 bytes, so the two halves repeat.
func PageIV(fileOffset uint64, fileIV [16]byte) [16]byte {
	var pageIV [16]byte
	for i := 0; i < 16; i++ {
		shift := uint(8 * (i % 8))
		pageIV[i] = fileIV[i] ^ byte(fileOffset>>shift)
	}
	return pageIV
}

// RecoverFileIV recovers a container's file IV when the key table entry
// carries no IV of its own. It decrypts the first 16 bytes of the first
// payload page using the page-0 IV derived from expectedHeader treated as a
// candidate file IV, and returns the decrypted block as the real file IV:
// the first payload page always opens with the filesystem's boot sector
// signature, so expectedHeader acts as known plaintext once the page IV for
// offset 0 is computed from it.
func RecoverFileIV(key [16]byte, expectedHeader [16]byte, firstPage []byte) ([16]byte, error) {
	var fileIV [16]byte
	if len(firstPage) < 16 {
		return fileIV, fmt.Errorf("cryptoutil: first page too short to recover IV")
	}

	seedIV := PageIV(0, expectedHeader)
	decrypted, err := DecryptNoPadding(key[:], seedIV[:], firstPage[:16])
	if err != nil {
		return fileIV, err
	}
	copy(fileIV[:], decrypted)
	return fileIV, nil
}
