// Package sqlitesec keeps a single-file embedded database encrypted at
// rest, decrypting it in place only while a store engine has it open.
//
// # Overview
//
// The database file oscillates between two states. At rest it holds the
// encrypted layout described below. While a session is open it holds the
// engine's plaintext and the engine works on it directly. Open decrypts
// the file in place and hands the path to the engine; Close releases the
// engine handle and encrypts the file in place again, with a fresh salt
// and IV every time.
//
// The package is engine agnostic: DB is generic over any Engine whose
// handles implement io.Closer. Package sqlitestore provides the SQLite
// engine.
//
// # Basic Usage
//
//	db, err := sqlitestore.New([]byte("my-master-secret"))
//	if err != nil {
//	    return err
//	}
//
//	conn, err := db.Open("app.db")
//	if err != nil {
//	    return err
//	}
//	// ... use conn ...
//	if err := db.Close(conn, "app.db"); err != nil {
//	    return err
//	}
//
// Prefer WithSession, which reseals the file even when the callback
// fails or panics:
//
//	err = db.WithSession("app.db", func(conn *sqlite.Conn) error {
//	    return sqlitex.ExecuteTransient(conn, "CREATE TABLE t (x)", nil)
//	})
//
// # Cryptography
//
//   - Key derivation: PBKDF2-HMAC-SHA256, 100,000 iterations, 16-byte
//     random salt, 32-byte key
//   - Cipher: AES-256 in CFB mode with a 16-byte random IV
//   - Padding: PKCS#7 to the 16-byte block size, always applied, so an
//     empty database still produces one block of ciphertext
//
// # File Format
//
// Encrypted files are the plain concatenation:
//   - Salt (16 bytes)
//   - IV (16 bytes)
//   - Ciphertext (multiple of 16 bytes)
//
// There is no magic number, version or length field. Files shorter than
// 32 bytes fail with ErrMalformedFile before any cipher work.
//
// # Security Considerations
//
// There is no authentication tag. Padding validation is the only
// integrity check and it is probabilistic: decrypting with the wrong
// master secret fails with ErrInvalidPadding most of the time but passes
// roughly once in 256 attempts and yields garbage. The store engine's own
// format check usually catches that case; when the engine rejects the
// decrypted file during Open, the encrypted bytes are written back.
//
// Not Protected Against:
//   - Plaintext on disk while a session is open
//   - Plaintext left on disk if the process dies before Close (the
//     transform is an in-place overwrite, with no journal and no rename)
//   - Two sessions on the same path at once; callers must serialize
//   - Tampering that happens to keep the padding valid
//   - Weak master secrets beyond the cost of 100,000 PBKDF2 iterations
//
// A DB never stores the master secret anywhere but in its KeyProvider and
// never logs it, derived keys, salts or IVs.
package sqlitesec
