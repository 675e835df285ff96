package sqlitesec

import (
	"bytes"
	"fmt"
	"io"
)

// Encrypted file layout:
//
//	offset 0..16   salt
//	offset 16..32  IV
//	offset 32..EOF AES-256-CFB ciphertext of the padded plaintext
//
// There is no magic number, version or length field. The layout is
// recognized only by its size and block alignment.
const (
	// HeaderSize is the size of the salt and IV prefix
	HeaderSize = SaltSize + IVSize
)

// FileHeader is the salt and IV prefix of an encrypted file
type FileHeader struct {
	Salt []byte // Salt for key derivation
	IV   []byte // IV for the cipher
}

// NewFileHeader creates a new file header with the given parameters
func NewFileHeader(salt, iv []byte) *FileHeader {
	return &FileHeader{
		Salt: salt,
		IV:   iv,
	}
}

// Size returns the total size of the header in bytes
func (h *FileHeader) Size() int {
	return len(h.Salt) + len(h.IV)
}

// Validate checks if the header is valid
func (h *FileHeader) Validate() error {
	if err := ValidateSalt(h.Salt); err != nil {
		return err
	}
	return ValidateIV(h.IV)
}

// WriteTo writes the header to the given writer
func (h *FileHeader) WriteTo(w io.Writer) (int64, error) {
	if err := h.Validate(); err != nil {
		return 0, err
	}

	n, err := w.Write(append(append(make([]byte, 0, HeaderSize), h.Salt...), h.IV...))
	if err != nil {
		return int64(n), fmt.Errorf("failed to write header: %w", err)
	}
	return int64(n), nil
}

// EncodeFile concatenates salt, IV and ciphertext into the on-disk layout
func EncodeFile(salt, iv, ciphertext []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(ciphertext))

	if _, err := NewFileHeader(salt, iv).WriteTo(&buf); err != nil {
		return nil, err
	}
	buf.Write(ciphertext)
	return buf.Bytes(), nil
}

// DecodeFile splits the on-disk layout into salt, IV and ciphertext. Data
// shorter than HeaderSize fails with ErrMalformedFile before any cipher
// work happens. The returned slices alias data.
func DecodeFile(data []byte) (*FileHeader, []byte, error) {
	if len(data) < HeaderSize {
		return nil, nil, NewCorruptionError("", len(data))
	}

	header := NewFileHeader(data[:SaltSize:SaltSize], data[SaltSize:HeaderSize:HeaderSize])
	return header, data[HeaderSize:], nil
}
