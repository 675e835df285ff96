// Package sqlitestore plugs SQLite into sqlitesec as the external store
// engine.
//
// Connections are opened with zombiezen.com/go/sqlite without the WAL
// flag and switched to the rollback journal, so that when the connection
// closes every committed page is in the main database file and no -wal
// or -shm sidecar is left holding plaintext. Temporary tables and indexes
// are kept in memory for the same reason.
//
// # Usage
//
//	db, err := sqlitestore.New([]byte("master secret"))
//	if err != nil {
//	    return err
//	}
//
//	err = db.WithSession("app.db", func(conn *sqlite.Conn) error {
//	    return sqlitex.ExecuteTransient(conn,
//	        "INSERT INTO messages (body) VALUES (?)",
//	        &sqlitex.ExecOptions{Args: []any{"Hello, world!"}})
//	})
//
// A wrong master secret normally fails in Open: either the padding does
// not validate, or SQLite refuses the decrypted bytes as "not a database"
// and the encrypted file is restored untouched.
package sqlitestore
