package scan

import "github.com/michaelscutari/dirscan/internal/entry"

// blockSize is the unit of st_blocks.
const blockSize = 512

// applyStat copies metadata into e and derives the type, hard link and
// cross-device flags. Sizes are only recorded for measured entries.
func applyStat(e *entry.Entry, st Stat, rootDev uint64, xdev bool) {
	e.DevID = st.Dev
	e.Inode = st.Inode
	e.Nlink = st.Nlink
	e.ModTime = st.ModTime
	e.Kind = entry.KindFromMode(st.Mode)

	switch {
	case st.Mode.IsRegular():
		e.Flags |= entry.FlagFile
	case st.Mode.IsDir():
		e.Flags |= entry.FlagDir
	}

	if !st.Mode.IsDir() && st.Nlink > 1 {
		e.Flags |= entry.FlagHardLinked
	}

	if xdev && st.Dev != rootDev {
		e.Flags |= entry.FlagOtherFS
	}

	if e.Measured() {
		e.Size = st.Size
		e.Blocks = st.Blocks * blockSize
	}
}

// classify runs the exclude check and lstat for the entry at path.
// The returned error is non-nil only when the error budget is exhausted.
func (w *walker) classify(e *entry.Entry, path string) error {
	if w.exclude(path) {
		e.Flags |= entry.FlagExcluded
	}
	if e.Flags.Any(entry.FlagError | entry.FlagExcluded) {
		return nil
	}

	st, err := w.fs.Lstat(path)
	if err != nil {
		return w.fail(e, path, err)
	}
	applyStat(e, st, w.rootDev, w.xdev)
	return nil
}
