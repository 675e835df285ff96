package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/oyvinrog/sqlitesec"
	"github.com/oyvinrog/sqlitesec/sqlitestore"
)

// demoSecret is used by the demo command when SQLITESEC_SECRET is unset
const demoSecret = "demo_key_1234567890123456"

// openDB reads the master secret and builds a SQLite-backed DB around it
func openDB(env *environment, opts ...sqlitestore.Option) (*sqlitesec.DB[*sqlite.Conn], error) {
	secret, err := env.secrets.read(secretEnv, "master secret")
	if err != nil {
		return nil, err
	}
	defer wipe(secret)

	return sqlitestore.New(secret, append(opts, sqlitestore.WithLogger(env.logger))...)
}

func runEncrypt(env *environment, args []string) error {
	flagSet := newFlagSet("encrypt", "encrypt [flags] <path>...")
	force := flagSet.Bool("force", false, "encrypt even if a file already looks encrypted")
	workers := flagSet.Int("workers", 0, "files to encrypt at once (default: number of CPUs)")
	paths, err := parsePathArgs(flagSet, args)
	if err != nil {
		return err
	}

	db, err := openDB(env)
	if err != nil {
		return err
	}

	for _, path := range paths {
		state, err := db.State(path)
		if err != nil {
			return err
		}
		switch {
		case state == sqlitesec.StateAbsent:
			return fmt.Errorf("%s does not exist", path)
		case state == sqlitesec.StateAtRest && !*force:
			return fmt.Errorf("%s already looks encrypted (use --force to encrypt it again)", path)
		}
	}

	if err := db.Transformer().EncryptFiles(paths, parallelConfig(*workers)); err != nil {
		return err
	}
	for _, path := range paths {
		fmt.Fprintf(env.stdout, "%s: encrypted\n", path)
	}
	return nil
}

func runDecrypt(env *environment, args []string) error {
	flagSet := newFlagSet("decrypt", "decrypt [flags] <path>...")
	force := flagSet.Bool("force", false, "decrypt even if a file looks like plaintext")
	workers := flagSet.Int("workers", 0, "files to decrypt at once (default: number of CPUs)")
	paths, err := parsePathArgs(flagSet, args)
	if err != nil {
		return err
	}

	db, err := openDB(env)
	if err != nil {
		return err
	}

	for _, path := range paths {
		state, err := db.State(path)
		if err != nil {
			return err
		}
		switch {
		case state == sqlitesec.StateAbsent:
			return fmt.Errorf("%s does not exist", path)
		case state == sqlitesec.StateOpen && !*force:
			return fmt.Errorf("%s is not encrypted (use --force to decrypt it anyway)", path)
		}
	}

	if err := db.Transformer().DecryptFiles(paths, parallelConfig(*workers)); err != nil {
		return err
	}
	for _, path := range paths {
		env.logger.Warn("database left decrypted on disk", "path", path)
		fmt.Fprintf(env.stdout, "%s: decrypted\n", path)
	}
	return nil
}

// parsePathArgs parses flags for commands that take one or more paths
func parsePathArgs(flagSet *pflag.FlagSet, args []string) ([]string, error) {
	if err := flagSet.Parse(args); err != nil {
		return nil, usageErrorf("%v", err)
	}
	if flagSet.NArg() == 0 {
		return nil, usageErrorf("%s: expected at least one path", flagSet.Name())
	}
	return flagSet.Args(), nil
}

func parallelConfig(workers int) sqlitesec.ParallelConfig {
	config := sqlitesec.DefaultParallelConfig()
	if workers > 0 {
		config.MaxWorkers = workers
	}
	return config
}

func runStatus(env *environment, args []string) error {
	flagSet := newFlagSet("status", "status [flags] <path>")
	verify := flagSet.Bool("verify", false, "also check that the master secret decrypts the file")
	positional, err := parseCommandFlags(flagSet, args, 1)
	if err != nil {
		return err
	}
	path := positional[0]

	var db *sqlitesec.DB[*sqlite.Conn]
	if *verify {
		db, err = openDB(env)
	} else {
		// State never derives a key, so no secret is needed
		db, err = sqlitestore.New(nil,
			sqlitestore.WithKeyProvider(sqlitesec.NewPasswordKeyProvider(nil)),
			sqlitestore.WithLogger(env.logger),
		)
	}
	if err != nil {
		return err
	}

	state, err := db.State(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s: %s\n", path, state)

	if *verify && state == sqlitesec.StateAtRest {
		if err := db.Transformer().VerifyEncryption(path); err != nil {
			return fmt.Errorf("%s does not decrypt under this secret: %w", path, err)
		}
		fmt.Fprintf(env.stdout, "%s: secret verified\n", path)
	}
	return nil
}

func runExec(env *environment, args []string) error {
	flagSet := newFlagSet("exec", "exec [flags] <path> <sql>")
	header := flagSet.Bool("header", false, "print column names before the rows")
	positional, err := parseCommandFlags(flagSet, args, 2)
	if err != nil {
		return err
	}
	path, query := positional[0], positional[1]

	db, err := openDB(env)
	if err != nil {
		return err
	}

	return db.WithSession(path, func(conn *sqlite.Conn) error {
		rows := 0
		err := sqlitex.ExecuteTransient(conn, query, &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				columns := make([]string, stmt.ColumnCount())
				if rows == 0 && *header {
					for i := range columns {
						columns[i] = stmt.ColumnName(i)
					}
					fmt.Fprintln(env.stdout, strings.Join(columns, "\t"))
				}
				for i := range columns {
					columns[i] = stmt.ColumnText(i)
				}
				fmt.Fprintln(env.stdout, strings.Join(columns, "\t"))
				rows++
				return nil
			},
		})
		if err != nil {
			return err
		}
		if rows == 0 {
			fmt.Fprintf(env.stdout, "ok, %d row(s) changed\n", conn.Changes())
		}
		return nil
	})
}

func runRekey(env *environment, args []string) error {
	flagSet := newFlagSet("rekey", "rekey [flags] <path>")
	positional, err := parseCommandFlags(flagSet, args, 1)
	if err != nil {
		return err
	}
	path := positional[0]

	db, err := openDB(env)
	if err != nil {
		return err
	}

	state, err := db.State(path)
	if err != nil {
		return err
	}
	if state != sqlitesec.StateAtRest {
		return fmt.Errorf("%s is %s, only an encrypted database can be rekeyed", path, state)
	}

	newSecret, err := env.secrets.read(newSecretEnv, "new master secret")
	if err != nil {
		return err
	}
	defer wipe(newSecret)

	if err := db.Rekey(path, sqlitesec.NewPasswordKeyProvider(newSecret)); err != nil {
		return err
	}
	fmt.Fprintf(env.stdout, "%s: rekeyed\n", path)
	return nil
}

func runDemo(env *environment, args []string) error {
	flagSet := newFlagSet("demo", "demo [flags]")
	dir := flagSet.String("dir", "", "directory for demo.db (default: a new temporary directory)")
	keep := flagSet.Bool("keep", false, "keep demo.db instead of removing it")
	if _, err := parseCommandFlags(flagSet, args, 0); err != nil {
		return err
	}

	if *dir == "" {
		tmp, err := os.MkdirTemp("", "sqlitesec-demo-")
		if err != nil {
			return err
		}
		*dir = tmp
		if !*keep {
			defer os.RemoveAll(tmp)
		}
	}
	path := filepath.Join(*dir, "demo.db")
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if !*keep {
		defer os.Remove(path)
	}

	secret := env.secrets.getenv(secretEnv)
	if secret == "" {
		secret = demoSecret
	}
	db, err := sqlitestore.New([]byte(secret),
		sqlitestore.WithLogger(env.logger),
		sqlitestore.WithOnConnect(func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteTransient(conn,
				"CREATE TABLE IF NOT EXISTS messages (id INTEGER PRIMARY KEY, message TEXT)", nil)
		}),
	)
	if err != nil {
		return err
	}

	out := env.stdout
	fmt.Fprintln(out, "1. Creating and populating database...")
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "INSERT INTO messages (message) VALUES (?)", &sqlitex.ExecOptions{
			Args: []any{"Hei, verden!"},
		})
	})
	if err != nil {
		return err
	}

	sealed, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   %s is %d bytes at rest\n", path, len(sealed))
	fmt.Fprintf(out, "   salt: %s\n", hex.EncodeToString(sealed[:sqlitesec.SaltSize]))
	fmt.Fprintf(out, "   iv:   %s\n", hex.EncodeToString(sealed[sqlitesec.SaltSize:sqlitesec.HeaderSize]))

	fmt.Fprintln(out, "2. Reading data from encrypted database...")
	var message string
	err = db.WithSession(path, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT message FROM messages WHERE id = 1", &sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				message = stmt.ColumnText(0)
				return nil
			},
		})
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "   Retrieved message: %s\n", message)

	state, err := db.State(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "3. Demo completed, database is %s.\n", state)
	return nil
}
