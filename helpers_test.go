package sqlitesec

import (
	"io"
	"os"
	"testing"

	"github.com/absfs/memfs"
)

// setupTestFS returns an in-memory filesystem
func setupTestFS(t testing.TB) FileSystem {
	t.Helper()

	fs, err := memfs.NewFS()
	if err != nil {
		t.Fatalf("failed to create memfs: %v", err)
	}
	return fs
}

// fastKeys returns a PBKDF2 provider with a low iteration count for tests
// that derive many keys
func fastKeys(secret string) KeyProvider {
	return NewPasswordKeyProviderPBKDF2([]byte(secret), PBKDF2Params{Iterations: 1000})
}

func newTestTransformer(t *testing.T, fsys FileSystem, keys KeyProvider) *Transformer {
	t.Helper()

	tr, err := NewTransformer(fsys, &Config{KeyProvider: keys})
	if err != nil {
		t.Fatalf("failed to create Transformer: %v", err)
	}
	return tr
}

func writeTestFile(t testing.TB, fsys FileSystem, name string, data []byte) {
	t.Helper()

	if err := writeFile(fsys, name, data, 0600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func readTestFile(t testing.TB, fsys FileSystem, name string) []byte {
	t.Helper()

	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		t.Fatalf("failed to open %s: %v", name, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return data
}
