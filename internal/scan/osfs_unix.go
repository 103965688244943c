//go:build unix

package scan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/pathutil"
	"golang.org/x/sys/unix"
)

// catalogChunk bounds a single Readdirnames call.
const catalogChunk = 1024

// OSFS implements FS on top of the host filesystem.
type OSFS struct{}

// Resolve makes path absolute and evaluates symlinks.
func (OSFS) Resolve(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	return pathutil.Normalize(real), nil
}

// Enter requires search permission on dir.
func (OSFS) Enter(dir string) error {
	if err := unix.Access(dir, unix.X_OK); err != nil {
		return &os.PathError{Op: "access", Path: dir, Err: err}
	}
	return nil
}

// Return verifies that dir is still the directory it was when entered.
func (f OSFS) Return(dir string, id entry.Identity) error {
	st, err := f.Lstat(dir)
	if err != nil {
		return err
	}
	if !st.Mode.IsDir() {
		return fmt.Errorf("%s: no longer a directory", dir)
	}
	if st.Identity() != id {
		return fmt.Errorf("%s: directory replaced during scan", dir)
	}
	return f.Enter(dir)
}

// ReadCatalog reads all names of dir into memory and closes the handle
// before returning.
func (OSFS) ReadCatalog(dir string) ([]string, error) {
	f, err := os.Open(dir)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, 16)
	var readErr error
	for {
		batch, err := f.Readdirnames(catalogChunk)
		names = append(names, batch...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			readErr = err
			break
		}
	}
	if err := f.Close(); err != nil && readErr == nil {
		readErr = err
	}
	if readErr != nil {
		return names, fmt.Errorf("%w: %w", ErrPartialCatalog, readErr)
	}
	return names, nil
}

// Lstat returns metadata for path. Symlinks are not followed.
func (OSFS) Lstat(path string) (Stat, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return Stat{}, err
	}
	st := Stat{
		Mode:    info.Mode(),
		Size:    info.Size(),
		ModTime: info.ModTime(),
		Nlink:   1,
	}
	if sys, ok := info.Sys().(*syscall.Stat_t); ok {
		st.Dev = uint64(sys.Dev)
		st.Inode = uint64(sys.Ino)
		st.Nlink = uint64(sys.Nlink)
		st.Blocks = int64(sys.Blocks)
	}
	return st, nil
}
