package sqlitesec

import (
	"bytes"
	"fmt"
)

// pad appends PKCS#7 padding. Aligned input gets a whole block, so the
// result is never empty.
func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data), len(data)+n)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(n)}, n)...)
}

// unpad validates and strips PKCS#7 padding
func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, NewPaddingError("", fmt.Sprintf("padded length %d is not a positive multiple of %d", len(data), blockSize))
	}

	n := int(data[len(data)-1])
	if n < 1 || n > blockSize {
		return nil, NewPaddingError("", fmt.Sprintf("padding byte %d out of range [1,%d]", n, blockSize))
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, NewPaddingError("", "padding bytes are inconsistent")
		}
	}

	return data[:len(data)-n], nil
}
