package scan

import (
	"errors"
	"io/fs"
	"time"

	"github.com/michaelscutari/dirscan/internal/entry"
)

// ErrPartialCatalog marks a directory listing that failed partway through.
// The names read before the failure are still returned.
var ErrPartialCatalog = errors.New("directory listing incomplete")

// Stat is the metadata the classifier needs for one object.
type Stat struct {
	Mode    fs.FileMode
	Dev     uint64
	Inode   uint64
	Nlink   uint64
	Size    int64 // st_size
	Blocks  int64 // st_blocks, in 512-byte units
	ModTime time.Time
}

// Identity returns the device and inode pair.
func (s Stat) Identity() entry.Identity {
	return entry.Identity{Dev: s.Dev, Inode: s.Inode}
}

// FS is the filesystem surface used by the scanner. All paths are absolute.
type FS interface {
	// Resolve returns the canonical absolute form of path.
	Resolve(path string) (string, error)

	// Enter checks that dir can be descended into.
	Enter(dir string) error

	// Return checks that dir, the parent of a directory the scanner just
	// left, still designates the directory identified by id.
	Return(dir string, id entry.Identity) error

	// ReadCatalog lists the names in dir, excluding "." and "..". A listing
	// that fails partway returns the names read so far together with an
	// error wrapping ErrPartialCatalog; any other error means no catalog.
	ReadCatalog(dir string) ([]string, error)

	// Lstat returns metadata for path without following symlinks.
	Lstat(path string) (Stat, error)
}
