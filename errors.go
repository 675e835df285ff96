package sqlitesec

import (
	"errors"
	"fmt"
)

// Error types represent different categories of errors

// ValidationError represents a configuration or parameter validation error
type ValidationError struct {
	Field   string // The field or parameter that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EncryptionError represents an encryption, decryption or key derivation failure
type EncryptionError struct {
	Operation string // "encrypt", "decrypt" or "derive"
	Path      string // File path, if applicable
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *EncryptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s error: %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Operation, e.Message)
}

func (e *EncryptionError) Unwrap() error {
	return e.Err
}

// IOError represents a file system I/O error. The filesystem error is kept
// as Err, so errors.Is(err, fs.ErrNotExist) and friends still match.
type IOError struct {
	Operation string // "read", "write", "stat", "open", "close", etc.
	Path      string // File path
	Message   string // Human-readable error message
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("io error: %s %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("io error: %s: %s", e.Operation, e.Message)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// CorruptionError reports an encrypted file whose layout cannot be decoded,
// typically a truncated file left behind by a crash
type CorruptionError struct {
	Path    string // File path
	Size    int    // Observed size in bytes
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *CorruptionError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("corruption error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("corruption error: %s", e.Message)
}

func (e *CorruptionError) Unwrap() error {
	return e.Err
}

// PaddingError reports decrypted data whose padding does not validate.
// It is the only integrity signal the format has: a wrong key, corrupted
// ciphertext or a tampered length all end up here, but not reliably.
type PaddingError struct {
	Path    string // File path, if applicable
	Message string // Human-readable error message
	Err     error  // Underlying error
}

func (e *PaddingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("padding error: %s: %s", e.Path, e.Message)
	}
	return fmt.Sprintf("padding error: %s", e.Message)
}

func (e *PaddingError) Unwrap() error {
	return e.Err
}

// Common sentinel errors
var (
	ErrMalformedFile     = errors.New("malformed encrypted file")
	ErrInvalidPadding    = errors.New("invalid padding - wrong key or corrupted data")
	ErrInvalidKey        = errors.New("invalid encryption key")
	ErrInvalidCiphertext = errors.New("invalid ciphertext")
	ErrNilConfig         = errors.New("config cannot be nil")
	ErrNilKeyProvider    = errors.New("key provider cannot be nil")
	ErrNilFileSystem     = errors.New("filesystem cannot be nil")
	ErrNilEngine         = errors.New("store engine cannot be nil")
	ErrSessionClosed     = errors.New("session already closed")
)

// Helper functions for creating structured errors

// NewValidationError creates a new validation error
func NewValidationError(field string, value any, message string) error {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// NewEncryptionError creates a new encryption error
func NewEncryptionError(operation, path string, err error) error {
	return &EncryptionError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewIOError creates a new I/O error
func NewIOError(operation, path string, err error) error {
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   err.Error(),
		Err:       err,
	}
}

// NewCorruptionError creates a new corruption error for a file of the given size
func NewCorruptionError(path string, size int) error {
	return &CorruptionError{
		Path:    path,
		Size:    size,
		Message: fmt.Sprintf("%d bytes is shorter than the %d-byte salt and IV prefix", size, HeaderSize),
		Err:     ErrMalformedFile,
	}
}

// NewPaddingError creates a new padding error
func NewPaddingError(path, message string) error {
	return &PaddingError{
		Path:    path,
		Message: message,
		Err:     ErrInvalidPadding,
	}
}

// withPath fills in the path of structured errors raised below the file layer
func withPath(err error, path string) error {
	var ce *CorruptionError
	if errors.As(err, &ce) && ce.Path == "" {
		ce.Path = path
		return err
	}
	var pe *PaddingError
	if errors.As(err, &pe) && pe.Path == "" {
		pe.Path = path
		return err
	}
	var ee *EncryptionError
	if errors.As(err, &ee) && ee.Path == "" {
		ee.Path = path
	}
	return err
}

// Error checking helpers

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsEncryptionError checks if an error is an encryption error
func IsEncryptionError(err error) bool {
	var ee *EncryptionError
	return errors.As(err, &ee)
}

// IsIOError checks if an error is an I/O error
func IsIOError(err error) bool {
	var ie *IOError
	return errors.As(err, &ie)
}

// IsCorruptionError checks if an error is a corruption error
func IsCorruptionError(err error) bool {
	var ce *CorruptionError
	return errors.As(err, &ce)
}

// IsPaddingError checks if an error is a padding error
func IsPaddingError(err error) bool {
	var pe *PaddingError
	return errors.As(err, &pe)
}
