package sqlitesec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// CipherEngine provides padded block-cipher encryption/decryption
type CipherEngine interface {
	// Seal pads plaintext and encrypts it under the given IV
	Seal(iv, plaintext []byte) ([]byte, error)

	// Open decrypts ciphertext under the given IV and strips the padding
	Open(iv, ciphertext []byte) ([]byte, error)

	// IVSize returns the size of IVs in bytes
	IVSize() int
}

// CFBEngine implements CipherEngine using AES-256 in cipher-feedback mode
// with PKCS#7 padding. CFB does not need padding; it is applied anyway so
// ciphertext stays block aligned, and it doubles as the only (weak)
// integrity check on decryption.
type CFBEngine struct {
	block cipher.Block
}

// NewCFBEngine creates a new AES-256-CFB cipher engine
func NewCFBEngine(key []byte) (*CFBEngine, error) {
	if err := ValidateKey(key, KeySize); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	return &CFBEngine{block: block}, nil
}

// Seal encrypts plaintext using AES-256-CFB
func (e *CFBEngine) Seal(iv, plaintext []byte) ([]byte, error) {
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}

	padded := pad(plaintext, BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCFBEncrypter(e.block, iv).XORKeyStream(ciphertext, padded)
	return ciphertext, nil
}

// Open decrypts ciphertext using AES-256-CFB
func (e *CFBEngine) Open(iv, ciphertext []byte) ([]byte, error) {
	if err := ValidateIV(iv); err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, NewPaddingError("", fmt.Sprintf("ciphertext length %d is not a positive multiple of %d", len(ciphertext), BlockSize))
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(e.block, iv).XORKeyStream(padded, ciphertext)
	return unpad(padded, BlockSize)
}

// IVSize returns the IV size for AES-CFB (16 bytes)
func (e *CFBEngine) IVSize() int {
	return e.block.BlockSize()
}

// GenerateIV generates a random IV for the CFB engine
func GenerateIV() ([]byte, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, fmt.Errorf("failed to generate IV: %w", err)
	}
	return iv, nil
}
