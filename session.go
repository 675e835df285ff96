package sqlitesec

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Engine is the external store engine. Open must accept a path to a
// plaintext file, creating it if absent, and return a handle whose Close
// releases every lock and descriptor on that file.
type Engine[H io.Closer] interface {
	Open(path string) (H, error)
}

// PlaintextRecognizer is implemented by engines that can recognize their
// own file format from its first bytes
type PlaintextRecognizer interface {
	IsPlaintext(header []byte) bool
}

// DB couples a Transformer with a store engine so that the file at a path
// is plaintext only between Open and Close.
//
// DB keeps no record of open sessions. Opening a path that is already open
// is a caller error: the second Open would try to decrypt plaintext.
type DB[H io.Closer] struct {
	transformer *Transformer
	engine      Engine[H]
	logger      *slog.Logger
}

// NewDB creates a DB over the host filesystem
func NewDB[H io.Closer](engine Engine[H], config *Config) (*DB[H], error) {
	return NewDBWithFileSystem[H](OSFileSystem{}, engine, config)
}

// NewDBWithFileSystem creates a DB over fsys. The engine must see the same
// files as fsys under the same names.
func NewDBWithFileSystem[H io.Closer](fsys FileSystem, engine Engine[H], config *Config) (*DB[H], error) {
	if engine == nil {
		return nil, ErrNilEngine
	}

	transformer, err := NewTransformer(fsys, config)
	if err != nil {
		return nil, err
	}

	return &DB[H]{
		transformer: transformer,
		engine:      engine,
		logger:      transformer.logger,
	}, nil
}

// Transformer returns the transformer used to seal and unseal files
func (db *DB[H]) Transformer() *Transformer {
	return db.transformer
}

// Open decrypts the file at path in place, if present, and hands it to
// the engine. If the engine rejects the decrypted file, the encrypted
// bytes are written back and the engine error is returned unchanged.
func (db *DB[H]) Open(path string) (H, error) {
	return db.open(path, db.logger)
}

// Close releases the handle and then encrypts the file at path in place
// with a fresh salt and IV. The file is resealed even when releasing the
// handle fails.
func (db *DB[H]) Close(handle H, path string) error {
	return db.close(handle, path, db.logger)
}

func (db *DB[H]) open(path string, logger *slog.Logger) (H, error) {
	var zero H
	if err := ValidateFilePath(path); err != nil {
		return zero, err
	}

	present, err := db.transformer.Exists(path)
	if err != nil {
		return zero, err
	}

	var sealed []byte
	if present {
		logger.Info("decrypting database", "path", path)
		if sealed, err = db.transformer.DecryptFile(path); err != nil {
			return zero, err
		}
	}

	handle, err := db.engine.Open(path)
	if err != nil {
		if sealed != nil {
			if restoreErr := db.transformer.restore(path, sealed); restoreErr != nil {
				logger.Error("failed to restore encrypted file, plaintext left on disk",
					"path", path,
					"error", restoreErr,
				)
				return zero, errors.Join(err, restoreErr)
			}
			logger.Warn("store engine rejected decrypted file, encrypted file restored",
				"path", path,
				"error", err,
			)
		}
		return zero, err
	}

	return handle, nil
}

func (db *DB[H]) close(handle H, path string, logger *slog.Logger) error {
	if err := ValidateFilePath(path); err != nil {
		return err
	}

	closeErr := handle.Close()
	if closeErr != nil {
		logger.Warn("store engine failed to release handle, resealing anyway",
			"path", path,
			"error", closeErr,
		)
	}

	logger.Info("encrypting database", "path", path)
	if err := db.transformer.EncryptFile(path); err != nil {
		logger.Error("failed to encrypt database, plaintext left on disk",
			"path", path,
			"error", err,
		)
		return errors.Join(closeErr, err)
	}

	return closeErr
}

// State reports what is on disk at path. A file that is not the engine's
// plaintext format and has a plausible encrypted size is reported as at
// rest; without a PlaintextRecognizer only the size is checked.
func (db *DB[H]) State(path string) (State, error) {
	if err := ValidateFilePath(path); err != nil {
		return StateAbsent, err
	}

	info, err := db.transformer.fsys.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return StateAbsent, nil
		}
		return StateAbsent, NewIOError("stat", path, err)
	}

	size := info.Size()
	if size <= HeaderSize || (size-HeaderSize)%BlockSize != 0 {
		return StateOpen, nil
	}

	if recognizer, ok := db.engine.(PlaintextRecognizer); ok {
		header, err := readPrefix(db.transformer.fsys, path, HeaderSize)
		if err != nil {
			return StateAbsent, err
		}
		if recognizer.IsPlaintext(header) {
			return StateOpen, nil
		}
	}

	return StateAtRest, nil
}

// Rekey reseals the file at path under newKeys. When the engine is a
// PlaintextRecognizer the decrypted bytes must carry its signature, so a
// wrong current secret that slips past padding validation cannot turn the
// file into garbage sealed under the new one.
func (db *DB[H]) Rekey(path string, newKeys KeyProvider) error {
	recognizer, ok := db.engine.(PlaintextRecognizer)
	if !ok {
		return db.transformer.ReEncrypt(path, newKeys)
	}

	return db.transformer.reEncrypt(path, newKeys, func(plaintext []byte) error {
		if len(plaintext) == 0 || recognizer.IsPlaintext(plaintext) {
			return nil
		}
		return &EncryptionError{
			Operation: "decrypt",
			Message:   "decrypted data is not a database file",
			Err:       ErrInvalidCiphertext,
		}
	})
}

// Session is a store handle borrowed for one path. Close releases the
// handle and reseals the file; it is the only way back to rest.
type Session[H io.Closer] struct {
	id     string
	db     *DB[H]
	path   string
	handle H
	logger *slog.Logger
	closed bool
}

// Acquire opens path and returns the session owning its handle. The caller
// must Close the session; WithSession does that on every exit path.
func (db *DB[H]) Acquire(path string) (*Session[H], error) {
	id := uuid.NewString()
	logger := db.logger.With("session", id)

	handle, err := db.open(path, logger)
	if err != nil {
		return nil, err
	}

	logger.Debug("session opened", "path", path)
	return &Session[H]{
		id:     id,
		db:     db,
		path:   path,
		handle: handle,
		logger: logger,
	}, nil
}

// ID returns the session's unique identifier
func (s *Session[H]) ID() string {
	return s.id
}

// Path returns the database path
func (s *Session[H]) Path() string {
	return s.path
}

// Handle returns the store engine handle. It must not be used after Close.
func (s *Session[H]) Handle() H {
	return s.handle
}

// Close releases the handle and reseals the file. Calling Close again
// returns ErrSessionClosed.
func (s *Session[H]) Close() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	err := s.db.close(s.handle, s.path, s.logger)
	s.logger.Debug("session closed", "path", s.path)
	return err
}

// WithSession opens path, calls fn with the store handle and reseals the
// file afterwards, whether fn returns normally, returns an error or
// panics. A panic is re-raised once the file is sealed.
func (db *DB[H]) WithSession(path string, fn func(handle H) error) (err error) {
	session, err := db.Acquire(path)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			if closeErr := session.Close(); closeErr != nil {
				session.logger.Error("failed to close session after panic",
					"path", path,
					"error", closeErr,
				)
			}
			panic(r)
		}
		if closeErr := session.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("closing session: %w", closeErr))
		}
	}()

	return fn(session.handle)
}

// readPrefix reads up to n bytes from the start of name
func readPrefix(fsys FileSystem, name string, n int) ([]byte, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, NewIOError("open", name, err)
	}
	defer f.Close()

	buf := make([]byte, n)
	read, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, NewIOError("read", name, err)
	}
	return buf[:read], nil
}
