package sqlitesec

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
)

// PasswordKeyProvider implements KeyProvider using PBKDF2 over a master secret
type PasswordKeyProvider struct {
	secret []byte
	params PBKDF2Params
}

// NewPasswordKeyProvider creates a key provider with the default
// PBKDF2-HMAC-SHA256 parameters (100,000 iterations, 32-byte key)
func NewPasswordKeyProvider(secret []byte) *PasswordKeyProvider {
	return NewPasswordKeyProviderPBKDF2(secret, PBKDF2Params{})
}

// NewPasswordKeyProviderPBKDF2 creates a password-based key provider with
// explicit PBKDF2 parameters. Zero fields take their defaults.
func NewPasswordKeyProviderPBKDF2(secret []byte, params PBKDF2Params) *PasswordKeyProvider {
	if params.Iterations == 0 {
		params.Iterations = DefaultIterations
	}

	return &PasswordKeyProvider{
		secret: append([]byte(nil), secret...),
		params: params,
	}
}

// DeriveKey derives a 32-byte key from the master secret and salt
func (p *PasswordKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if len(p.secret) == 0 {
		return nil, &ValidationError{Field: "secret", Message: errEmptySecret.Error(), Err: errEmptySecret}
	}
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}

	var hashFunc func() hash.Hash
	switch p.params.HashFunc {
	case SHA256:
		hashFunc = sha256.New
	case SHA512:
		hashFunc = sha512.New
	default:
		return nil, NewValidationError("hash_func", p.params.HashFunc, "unsupported hash function")
	}

	return pbkdf2.Key(p.secret, salt, p.params.Iterations, KeySize, hashFunc), nil
}

// GenerateSalt generates a new random salt
func (p *PasswordKeyProvider) GenerateSalt() ([]byte, error) {
	return generateSalt()
}

// Argon2idKeyProvider implements KeyProvider using Argon2id. Files sealed
// with it can only be opened by an Argon2idKeyProvider with the same
// parameters; nothing in the file says which KDF produced the key.
type Argon2idKeyProvider struct {
	secret []byte
	params Argon2idParams
}

// NewArgon2idKeyProvider creates a new Argon2id key provider
func NewArgon2idKeyProvider(secret []byte, params Argon2idParams) *Argon2idKeyProvider {
	if params.Memory == 0 {
		params.Memory = 64 * 1024 // 64 MB
	}
	if params.Iterations == 0 {
		params.Iterations = 3
	}
	if params.Parallelism == 0 {
		params.Parallelism = 4
	}

	return &Argon2idKeyProvider{
		secret: append([]byte(nil), secret...),
		params: params,
	}
}

// DeriveKey derives a 32-byte key from the master secret and salt
func (a *Argon2idKeyProvider) DeriveKey(salt []byte) ([]byte, error) {
	if len(a.secret) == 0 {
		return nil, &ValidationError{Field: "secret", Message: errEmptySecret.Error(), Err: errEmptySecret}
	}
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}

	return argon2.IDKey(
		a.secret,
		salt,
		a.params.Iterations,
		a.params.Memory,
		a.params.Parallelism,
		KeySize,
	), nil
}

// GenerateSalt generates a new random salt
func (a *Argon2idKeyProvider) GenerateSalt() ([]byte, error) {
	return generateSalt()
}

func generateSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}
