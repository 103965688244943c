package entry

import (
	"os"
	"strings"
	"time"
)

// Kind represents the type of filesystem entry.
type Kind uint8

const (
	KindFile    Kind = 0
	KindDir     Kind = 1
	KindSymlink Kind = 2
	KindOther   Kind = 3
)

func (k Kind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// KindFromMode derives the Kind from an os.FileMode.
func KindFromMode(mode os.FileMode) Kind {
	switch {
	case mode.IsRegular():
		return KindFile
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	default:
		return KindOther
	}
}

// Flag is a set of independent status bits attached to an entry.
type Flag uint8

const (
	FlagFile       Flag = 1 << iota // regular file
	FlagDir                         // directory
	FlagHardLinked                  // non-directory with more than one link
	FlagOtherFS                     // on another device than the scan root
	FlagExcluded                    // path matched an exclude rule
	FlagError                       // metadata or listing failed
)

// Unmeasured lists the flags that suppress size accounting.
const Unmeasured = FlagOtherFS | FlagExcluded | FlagError

// Has reports whether all bits in f are set.
func (fl Flag) Has(f Flag) bool { return fl&f == f }

// Any reports whether any bit in f is set.
func (fl Flag) Any(f Flag) bool { return fl&f != 0 }

func (fl Flag) String() string {
	if fl == 0 {
		return "-"
	}
	names := []struct {
		f    Flag
		name string
	}{
		{FlagFile, "file"},
		{FlagDir, "dir"},
		{FlagHardLinked, "hardlink"},
		{FlagOtherFS, "otherfs"},
		{FlagExcluded, "excluded"},
		{FlagError, "error"},
	}
	var parts []string
	for _, n := range names {
		if fl.Has(n.f) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Marker returns the one-character status marker used in listings.
func (fl Flag) Marker(kind Kind) string {
	switch {
	case fl.Has(FlagError):
		return "!"
	case fl.Has(FlagExcluded):
		return "<"
	case fl.Has(FlagOtherFS):
		return ">"
	case fl.Has(FlagHardLinked):
		return "H"
	case kind == KindSymlink:
		return "@"
	default:
		return " "
	}
}

// Identity identifies a filesystem object across renames.
type Identity struct {
	Dev   uint64
	Inode uint64
}

// Entry is one filesystem object observed during a scan.
//
// Size and Blocks are only populated while none of the Unmeasured flags is
// set. Entries are handed to a sink once and not modified afterwards.
type Entry struct {
	Name    string
	Kind    Kind
	Flags   Flag
	Size    int64 // Apparent size (st_size)
	Blocks  int64 // Disk usage in bytes (st_blocks * 512)
	ModTime time.Time
	DevID   uint64
	Inode   uint64
	Nlink   uint64

	// Descended is set when the scanner walked the entry's children.
	// A directory with Descended unset was emitted as a closed leaf.
	Descended bool
}

// New creates an entry for the given path segment.
func New(name string) *Entry {
	return &Entry{Name: name, Kind: KindOther}
}

// Identity returns the device and inode pair of the entry.
func (e *Entry) Identity() Identity {
	return Identity{Dev: e.DevID, Inode: e.Inode}
}

// Measured reports whether the entry carries size information.
func (e *Entry) Measured() bool {
	return !e.Flags.Any(Unmeasured)
}

// IsDir reports whether the entry is a directory.
func (e *Entry) IsDir() bool {
	return e.Flags.Has(FlagDir)
}

// Fail marks the entry as errored and drops any size already recorded.
func (e *Entry) Fail() {
	e.Flags |= FlagError
	e.Size = 0
	e.Blocks = 0
}

// Dir represents a directory entry stored in the database.
type Dir struct {
	ID       int64
	Path     string
	Name     string
	ParentID int64
	Depth    int
	Flags    Flag
	DevID    uint64
	Inode    uint64
}

// ScanError represents an error encountered during scanning.
type ScanError struct {
	Path    string
	Message string
}

// Rollup represents aggregated statistics for a directory.
type Rollup struct {
	DirID       int64
	TotalSize   int64 // Apparent size
	TotalBlocks int64 // Disk usage
	TotalFiles  int64
	TotalDirs   int64
	Errors      int64
}

// Add folds a completed child directory rollup into r.
func (r *Rollup) Add(child Rollup) {
	r.TotalSize += child.TotalSize
	r.TotalBlocks += child.TotalBlocks
	r.TotalFiles += child.TotalFiles
	r.TotalDirs += child.TotalDirs + 1
	r.Errors += child.Errors
}

// ScanMeta holds metadata about a scan.
type ScanMeta struct {
	ScanID      string
	RootPath    string
	Status      Status
	StartTime   time.Time
	EndTime     time.Time
	TotalSize   int64 // Apparent size
	TotalBlocks int64 // Disk usage
	FileCount   int64
	DirCount    int64
	ErrorCount  int64
	FatalError  string
}
