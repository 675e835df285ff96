package sqlitesec

import (
	"fmt"
	"log/slog"
	"os"
)

// Transformer seals and unseals whole files under a KeyProvider. It holds
// no per-call state and is safe for concurrent use on different paths.
type Transformer struct {
	fsys     FileSystem
	keys     KeyProvider
	logger   *slog.Logger
	fileMode os.FileMode
}

// NewTransformer creates a transformer over the given filesystem
func NewTransformer(fsys FileSystem, config *Config) (*Transformer, error) {
	if fsys == nil {
		return nil, ErrNilFileSystem
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Transformer{
		fsys:     fsys,
		keys:     config.KeyProvider,
		logger:   config.logger(),
		fileMode: config.fileMode(),
	}, nil
}

// Seal encrypts plaintext into the on-disk layout with a fresh salt and IV
func (t *Transformer) Seal(plaintext []byte) ([]byte, error) {
	return seal(t.keys, plaintext)
}

// Unseal decodes the on-disk layout and decrypts it. Data shorter than
// HeaderSize fails with ErrMalformedFile; bad padding fails with
// ErrInvalidPadding. A wrong key can still pass padding validation and
// return garbage.
func (t *Transformer) Unseal(data []byte) ([]byte, error) {
	return unseal(t.keys, data)
}

// EncryptFile replaces the plaintext file at name with its encrypted layout
func (t *Transformer) EncryptFile(name string) error {
	if err := ValidateFilePath(name); err != nil {
		return err
	}

	plaintext, perm, err := readFile(t.fsys, name)
	if err != nil {
		return err
	}

	sealed, err := t.Seal(plaintext)
	if err != nil {
		return withPath(err, name)
	}

	if err := writeFile(t.fsys, name, sealed, perm); err != nil {
		return err
	}

	t.logger.Info("encrypted file",
		"path", name,
		"plaintext_bytes", len(plaintext),
		"encrypted_bytes", len(sealed),
	)
	return nil
}

// DecryptFile replaces the encrypted file at name with its plaintext and
// returns the encrypted bytes it replaced
func (t *Transformer) DecryptFile(name string) ([]byte, error) {
	if err := ValidateFilePath(name); err != nil {
		return nil, err
	}

	sealed, perm, err := readFile(t.fsys, name)
	if err != nil {
		return nil, err
	}

	plaintext, err := t.Unseal(sealed)
	if err != nil {
		return nil, withPath(err, name)
	}

	if err := writeFile(t.fsys, name, plaintext, perm); err != nil {
		return nil, err
	}

	t.logger.Info("decrypted file",
		"path", name,
		"encrypted_bytes", len(sealed),
		"plaintext_bytes", len(plaintext),
	)
	return sealed, nil
}

// restore writes previously read encrypted bytes back over name
func (t *Transformer) restore(name string, sealed []byte) error {
	perm := t.fileMode
	if info, err := t.fsys.Stat(name); err == nil {
		perm = info.Mode().Perm()
	}
	return writeFile(t.fsys, name, sealed, perm)
}

// Exists reports whether a file is present at name
func (t *Transformer) Exists(name string) (bool, error) {
	return exists(t.fsys, name)
}

func seal(keys KeyProvider, plaintext []byte) ([]byte, error) {
	salt, err := keys.GenerateSalt()
	if err != nil {
		return nil, NewEncryptionError("encrypt", "", err)
	}

	iv, err := GenerateIV()
	if err != nil {
		return nil, NewEncryptionError("encrypt", "", err)
	}

	engine, err := newEngine(keys, salt, "encrypt")
	if err != nil {
		return nil, err
	}

	ciphertext, err := engine.Seal(iv, plaintext)
	if err != nil {
		return nil, NewEncryptionError("encrypt", "", err)
	}

	return EncodeFile(salt, iv, ciphertext)
}

func unseal(keys KeyProvider, data []byte) ([]byte, error) {
	header, ciphertext, err := DecodeFile(data)
	if err != nil {
		return nil, err
	}

	engine, err := newEngine(keys, header.Salt, "decrypt")
	if err != nil {
		return nil, err
	}

	return engine.Open(header.IV, ciphertext)
}

func newEngine(keys KeyProvider, salt []byte, operation string) (CipherEngine, error) {
	key, err := keys.DeriveKey(salt)
	if err != nil {
		return nil, NewEncryptionError(operation, "", fmt.Errorf("failed to derive key: %w", err))
	}

	engine, err := NewCFBEngine(key)
	if err != nil {
		return nil, NewEncryptionError(operation, "", fmt.Errorf("failed to create cipher engine: %w", err))
	}
	return engine, nil
}
