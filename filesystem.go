package sqlitesec

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/absfs/absfs"
)

// FileSystem is the part of absfs.FileSystem the transform needs. Any
// absfs implementation (memfs, osfs, ...) satisfies it.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error)
	Stat(name string) (os.FileInfo, error)
}

var _ FileSystem = absfs.FileSystem(nil)

// OSFileSystem is a FileSystem backed by the host filesystem. Paths are
// passed to the os package unchanged, so they are the same paths an
// external store engine sees.
type OSFileSystem struct{}

// OpenFile opens the named file on the host filesystem
func (OSFileSystem) OpenFile(name string, flag int, perm os.FileMode) (absfs.File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Stat returns file information from the host filesystem
func (OSFileSystem) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// exists reports whether name exists. Errors other than "not exist" are
// returned as IOErrors.
func exists(fsys FileSystem, name string) (bool, error) {
	if _, err := fsys.Stat(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, NewIOError("stat", name, err)
	}
	return true, nil
}

// readFile loads the whole file into memory along with its permission bits
func readFile(fsys FileSystem, name string) ([]byte, os.FileMode, error) {
	f, err := fsys.OpenFile(name, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, NewIOError("open", name, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, NewIOError("stat", name, err)
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, 0, NewIOError("read", name, err)
	}
	return data, info.Mode().Perm(), nil
}

// writeFile overwrites name in place with data. The write is not atomic:
// a crash part way through leaves a truncated file behind.
func writeFile(fsys FileSystem, name string, data []byte, perm os.FileMode) error {
	f, err := fsys.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return NewIOError("open", name, err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		return NewIOError("write", name, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return NewIOError("sync", name, err)
	}
	if err := f.Close(); err != nil {
		return NewIOError("close", name, err)
	}
	return nil
}
