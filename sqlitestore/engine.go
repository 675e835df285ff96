package sqlitestore

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oyvinrog/sqlitesec"
)

// Magic is the header every SQLite database file starts with
var Magic = []byte("SQLite format 3\x00")

// Engine opens SQLite connections on plaintext database files. It
// implements sqlitesec.Engine and sqlitesec.PlaintextRecognizer.
type Engine struct {
	// Logger receives connection open/close messages. If nil, a no-op
	// logger is used.
	Logger *slog.Logger

	// OnConnect is called once per connection after the pragmas are
	// applied, e.g. to create the schema. If it fails the connection is
	// closed and its error returned.
	OnConnect func(conn *sqlite.Conn) error
}

var (
	_ sqlitesec.Engine[*sqlite.Conn] = (*Engine)(nil)
	_ sqlitesec.PlaintextRecognizer  = (*Engine)(nil)
)

// pragmas keep the whole database in the one file sqlitesec seals
var pragmas = []string{
	"PRAGMA journal_mode=DELETE",
	"PRAGMA synchronous=FULL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA busy_timeout=5000",
}

// Open opens a read-write connection on path, creating the database if
// it does not exist. SQLite errors are returned as they are.
func (e *Engine) Open(path string) (*sqlite.Conn, error) {
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite|sqlite.OpenCreate)
	if err != nil {
		return nil, err
	}

	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			conn.Close()
			return nil, err
		}
	}

	if e.OnConnect != nil {
		if err := e.OnConnect(conn); err != nil {
			conn.Close()
			return nil, err
		}
	}

	e.logger().Debug("sqlite connection opened", "path", path)
	return conn, nil
}

// IsPlaintext reports whether header starts with the SQLite magic
func (e *Engine) IsPlaintext(header []byte) bool {
	return bytes.HasPrefix(header, Magic)
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return e.Logger
}

type options struct {
	logger      *slog.Logger
	onConnect   func(conn *sqlite.Conn) error
	keyProvider sqlitesec.KeyProvider
	fileMode    os.FileMode
}

// Option configures New
type Option func(*options)

// WithLogger sets the logger used by both the lifecycle and the engine
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithOnConnect sets a per-connection setup hook, see Engine.OnConnect
func WithOnConnect(fn func(conn *sqlite.Conn) error) Option {
	return func(o *options) { o.onConnect = fn }
}

// WithKeyProvider replaces the default PBKDF2 key provider. The secret
// passed to New is ignored when this option is set.
func WithKeyProvider(provider sqlitesec.KeyProvider) Option {
	return func(o *options) { o.keyProvider = provider }
}

// WithFileMode sets the permission used when a sealed file is created
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) { o.fileMode = mode }
}

// New returns a DB that keeps SQLite databases encrypted at rest under
// secret. The secret is copied; the caller may wipe its slice afterwards.
func New(secret []byte, opts ...Option) (*sqlitesec.DB[*sqlite.Conn], error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.keyProvider == nil {
		if len(secret) == 0 {
			return nil, sqlitesec.NewValidationError("secret", nil, "master secret cannot be empty")
		}
		o.keyProvider = sqlitesec.NewPasswordKeyProvider(secret)
	}

	db, err := sqlitesec.NewDB[*sqlite.Conn](
		&Engine{Logger: o.logger, OnConnect: o.onConnect},
		&sqlitesec.Config{
			KeyProvider: o.keyProvider,
			Logger:      o.logger,
			FileMode:    o.fileMode,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: %w", err)
	}
	return db, nil
}
