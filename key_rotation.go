package sqlitesec

import (
	"fmt"
)

// ReEncrypt re-seals the encrypted file at name under newKeys. The file
// must be at rest. On success the old master secret no longer opens it.
func (t *Transformer) ReEncrypt(name string, newKeys KeyProvider) error {
	return t.reEncrypt(name, newKeys, nil)
}

// reEncrypt is ReEncrypt with a check on the decrypted plaintext. A check
// failure leaves the file untouched.
func (t *Transformer) reEncrypt(name string, newKeys KeyProvider, check func(plaintext []byte) error) error {
	if newKeys == nil {
		return ErrNilKeyProvider
	}
	if err := ValidateFilePath(name); err != nil {
		return err
	}

	sealed, perm, err := readFile(t.fsys, name)
	if err != nil {
		return err
	}

	plaintext, err := t.Unseal(sealed)
	if err != nil {
		return withPath(fmt.Errorf("failed to decrypt with current key: %w", err), name)
	}

	if check != nil {
		if err := check(plaintext); err != nil {
			return withPath(err, name)
		}
	}

	resealed, err := seal(newKeys, plaintext)
	if err != nil {
		return withPath(err, name)
	}

	if err := writeFile(t.fsys, name, resealed, perm); err != nil {
		return err
	}

	t.logger.Info("re-encrypted file", "path", name, "plaintext_bytes", len(plaintext))
	return nil
}

// VerifyEncryption checks that the file at name decodes and its padding
// validates under the current key, without touching the file. Passing is
// not proof of the right key: a wrong key passes about once in 256 tries.
func (t *Transformer) VerifyEncryption(name string) error {
	if err := ValidateFilePath(name); err != nil {
		return err
	}

	sealed, _, err := readFile(t.fsys, name)
	if err != nil {
		return err
	}

	if _, err := t.Unseal(sealed); err != nil {
		return withPath(err, name)
	}
	return nil
}
