package sqlitestore_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oyvinrog/sqlitesec"
	"github.com/oyvinrog/sqlitesec/sqlitestore"
)

const schema = "CREATE TABLE IF NOT EXISTS test (id INTEGER PRIMARY KEY, data TEXT)"

func fastKeys(secret string) sqlitesec.KeyProvider {
	return sqlitesec.NewPasswordKeyProviderPBKDF2([]byte(secret), sqlitesec.PBKDF2Params{Iterations: 1000})
}

func createSchema(conn *sqlite.Conn) error {
	return sqlitex.ExecuteTransient(conn, schema, nil)
}

func insert(t *testing.T, conn *sqlite.Conn, data string) {
	t.Helper()

	err := sqlitex.Execute(conn, "INSERT INTO test (data) VALUES (?)", &sqlitex.ExecOptions{
		Args: []any{data},
	})
	if err != nil {
		t.Fatalf("insert %q failed: %v", data, err)
	}
}

func selectAll(conn *sqlite.Conn) ([]string, error) {
	var rows []string
	err := sqlitex.Execute(conn, "SELECT data FROM test ORDER BY id", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			rows = append(rows, stmt.ColumnText(0))
			return nil
		},
	})
	return rows, err
}

func TestEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sqlitestore.New([]byte("my_very_secret_master_key!"), sqlitestore.WithOnConnect(createSchema))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	insert(t, conn, "Hello, world!")
	if err := db.Close(conn, path); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(raw) < sqlitesec.HeaderSize+sqlitesec.BlockSize {
		t.Fatalf("encrypted file is only %d bytes", len(raw))
	}
	if (len(raw)-sqlitesec.HeaderSize)%sqlitesec.BlockSize != 0 {
		t.Errorf("ciphertext length %d is not a multiple of %d", len(raw)-sqlitesec.HeaderSize, sqlitesec.BlockSize)
	}
	if bytes.HasPrefix(raw, sqlitestore.Magic) {
		t.Error("encrypted file starts with the SQLite header")
	}
	if bytes.Contains(raw, []byte("Hello")) {
		t.Error("encrypted file contains plaintext")
	}

	conn, err = db.Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	rows, err := selectAll(conn)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	if len(rows) != 1 || rows[0] != "Hello, world!" {
		t.Errorf("rows = %q, want [Hello, world!]", rows)
	}
	if err := db.Close(conn, path); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestMultipleRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "people.db")

	db, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("records")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	want := []string{"Alice", "Bob", "Charlie"}
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		for _, name := range want {
			insert(t, conn, name)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}

	var got []string
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		var err error
		got, err = selectAll(conn)
		return err
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("got %d rows, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestWrongSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.db")

	right, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("right")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = right.WithSession(path, func(conn *sqlite.Conn) error {
		insert(t, conn, "secret_data")
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}

	wrong, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("wrong")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var rows []string
	err = wrong.WithSession(path, func(conn *sqlite.Conn) error {
		var err error
		rows, err = selectAll(conn)
		return err
	})
	if err == nil {
		t.Fatalf("wrong secret read the database, rows = %q", rows)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(after, sealed) {
		t.Fatal("failed open with the wrong secret modified the file")
	}

	err = right.WithSession(path, func(conn *sqlite.Conn) error {
		var err error
		rows, err = selectAll(conn)
		return err
	})
	if err != nil {
		t.Fatalf("right secret failed after wrong attempt: %v", err)
	}
	if len(rows) != 1 || rows[0] != "secret_data" {
		t.Errorf("rows = %q, want [secret_data]", rows)
	}
}

func TestNoSidecarFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sidecar.db")

	db, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("sidecar")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		for i := 0; i < 50; i++ {
			insert(t, conn, "row")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if entry.Name() != "sidecar.db" {
			t.Errorf("unexpected file left next to the database: %s", entry.Name())
		}
	}
}

func TestState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("state")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if state, err := db.State(path); err != nil || state != sqlitesec.StateAbsent {
		t.Fatalf("State = %v, %v; want absent", state, err)
	}

	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	insert(t, conn, "state")
	if state, err := db.State(path); err != nil || state != sqlitesec.StateOpen {
		t.Errorf("State while open = %v, %v; want open", state, err)
	}

	if err := db.Close(conn, path); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if state, err := db.State(path); err != nil || state != sqlitesec.StateAtRest {
		t.Errorf("State after close = %v, %v; want at-rest", state, err)
	}
}

func TestEngine(t *testing.T) {
	engine := &sqlitestore.Engine{OnConnect: createSchema}

	if !engine.IsPlaintext([]byte("SQLite format 3\x00\x10\x00")) {
		t.Error("IsPlaintext rejected a SQLite header")
	}
	if engine.IsPlaintext([]byte("SQLite format")) {
		t.Error("IsPlaintext accepted a truncated header")
	}

	path := filepath.Join(t.TempDir(), "plain.db")
	conn, err := engine.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	insert(t, conn, "plain")
	if err := conn.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !engine.IsPlaintext(raw) {
		t.Error("engine did not write a SQLite file")
	}
}

func TestEngine_OnConnectError(t *testing.T) {
	hookErr := errors.New("schema failed")
	engine := &sqlitestore.Engine{
		OnConnect: func(*sqlite.Conn) error { return hookErr },
	}

	if _, err := engine.Open(filepath.Join(t.TempDir(), "hook.db")); !errors.Is(err, hookErr) {
		t.Errorf("Open error = %v, want hook error", err)
	}
}

func TestNew_EmptySecret(t *testing.T) {
	for _, secret := range [][]byte{nil, {}} {
		if _, err := sqlitestore.New(secret); !sqlitesec.IsValidationError(err) {
			t.Errorf("New(%q): got %v, want ValidationError", secret, err)
		}
	}
}

func TestNew_CopiesSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "copy.db")
	secret := []byte("wipe-me-after-new")

	db, err := sqlitestore.New(secret, sqlitestore.WithOnConnect(createSchema))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		insert(t, conn, "copied")
		return nil
	})
	if err != nil {
		t.Fatalf("WithSession failed: %v", err)
	}

	for i := range secret {
		secret[i] = 0
	}

	var rows []string
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		var err error
		rows, err = selectAll(conn)
		return err
	})
	if err != nil {
		t.Fatalf("WithSession after wiping the caller's secret failed: %v", err)
	}
	if len(rows) != 1 || rows[0] != "copied" {
		t.Errorf("rows = %q, want [copied]", rows)
	}
}

func TestWithSession_QueryErrorReseals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "query.db")

	db, err := sqlitestore.New(nil,
		sqlitestore.WithKeyProvider(fastKeys("query")),
		sqlitestore.WithOnConnect(createSchema),
	)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		insert(t, conn, "kept")
		return sqlitex.ExecuteTransient(conn, "SELECT * FROM no_such_table", nil)
	})
	if err == nil {
		t.Fatal("expected query error")
	}

	if state, _ := db.State(path); state != sqlitesec.StateAtRest {
		t.Errorf("State after query error = %v, want at-rest", state)
	}
}
