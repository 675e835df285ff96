package sqlitesec

import (
	"errors"
	"log/slog"
	"os"
)

const (
	// SaltSize is the size of the per-encryption PBKDF2 salt
	SaltSize = 16

	// IVSize is the size of the CFB initialization vector (one AES block)
	IVSize = 16

	// KeySize is the size of the derived AES-256 key
	KeySize = 32

	// BlockSize is the AES block size used for padding
	BlockSize = 16

	// DefaultIterations is the PBKDF2 iteration count for derived keys
	DefaultIterations = 100000

	// DefaultFileMode is used when a sealed file has to be created from scratch
	DefaultFileMode os.FileMode = 0600
)

// HashFunc represents hash function types for PBKDF2
type HashFunc uint8

const (
	// SHA256 hash function
	SHA256 HashFunc = iota
	// SHA512 hash function
	SHA512
)

// String returns the string representation of the hash function
func (h HashFunc) String() string {
	switch h {
	case SHA256:
		return "sha256"
	case SHA512:
		return "sha512"
	default:
		return "unknown"
	}
}

// PBKDF2Params contains parameters for PBKDF2 key derivation.
// The on-disk layout does not record them, so every reader of a file
// must use the same values as its writer.
type PBKDF2Params struct {
	Iterations int      // Number of iterations (default 100,000)
	HashFunc   HashFunc // Hash function to use (default SHA256)
}

// Argon2idParams contains parameters for Argon2id key derivation
type Argon2idParams struct {
	Memory      uint32 // Memory in KiB (e.g., 64*1024 for 64MB)
	Iterations  uint32 // Number of iterations (time parameter)
	Parallelism uint8  // Degree of parallelism
}

// Config contains the configuration shared by Transformer and DB
type Config struct {
	// KeyProvider derives per-file keys from the master secret
	KeyProvider KeyProvider

	// Logger receives lifecycle messages. If nil, a no-op logger is used.
	Logger *slog.Logger

	// FileMode is the permission used when a sealed file has to be
	// created. Existing files keep their mode. Defaults to 0600.
	FileMode os.FileMode
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c == nil {
		return ErrNilConfig
	}
	if c.KeyProvider == nil {
		return ErrNilKeyProvider
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Config) fileMode() os.FileMode {
	if c.FileMode == 0 {
		return DefaultFileMode
	}
	return c.FileMode
}

// KeyProvider is an interface for providing encryption keys
type KeyProvider interface {
	// DeriveKey derives an encryption key from the given salt
	DeriveKey(salt []byte) ([]byte, error)

	// GenerateSalt generates a new random salt
	GenerateSalt() ([]byte, error)
}

// State describes what is on disk at a database path
type State uint8

const (
	// StateAbsent means no file exists at the path
	StateAbsent State = iota
	// StateAtRest means the file holds the encrypted layout
	StateAtRest
	// StateOpen means the file holds plaintext, either because a session is
	// live or because one was abandoned without being closed
	StateOpen
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateAtRest:
		return "at-rest"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

var errEmptySecret = errors.New("master secret cannot be empty")
