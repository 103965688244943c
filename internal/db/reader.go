package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/michaelscutari/dirscan/internal/entry"
	"github.com/michaelscutari/dirscan/internal/pathutil"
)

// ErrNotFound is returned when a path is not a stored directory.
var ErrNotFound = errors.New("directory not found in snapshot")

// DisplayEntry combines entry data with rollup data for display.
type DisplayEntry struct {
	Path        string
	Name        string
	Kind        entry.Kind
	Flags       entry.Flag
	Size        int64 // Apparent size
	Blocks      int64 // Disk usage
	ModTime     time.Time
	TotalSize   int64 // Apparent size (rollup)
	TotalBlocks int64 // Disk usage (rollup)
	TotalFiles  int64
	TotalDirs   int64
	Errors      int64
}

// Marker returns the listing marker for the entry; walked directories get "/".
func (e DisplayEntry) Marker() string {
	if m := e.Flags.Marker(e.Kind); m != " " {
		return m
	}
	if e.Kind == entry.KindDir {
		return "/"
	}
	return " "
}

// Open opens a snapshot for reading.
func Open(path string) (*sql.DB, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ApplyReadPragmas(database); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Close closes a snapshot opened with Open.
func Close(database *sql.DB) error {
	forgetDB(database)
	return database.Close()
}

// LoadChildren loads child entries for a directory with rollup data.
func LoadChildren(db *sql.DB, parentPath, sortBy string, limit int) ([]DisplayEntry, error) {
	parentPath = pathutil.Normalize(parentPath)
	orderClause := "total_size DESC"
	switch sortBy {
	case "name":
		orderClause = "name ASC"
	case "files":
		orderClause = "total_files DESC"
	case "size":
		orderClause = "total_size DESC"
	case "blocks", "disk":
		orderClause = "total_blocks DESC"
	}
	if limit <= 0 {
		limit = -1
	}

	query := fmt.Sprintf(`
		SELECT d.path, d.name, ? as kind, d.flags, 0 as size, 0 as blocks, 0 as mtime,
		       COALESCE(r.total_size, 0) as total_size,
		       COALESCE(r.total_blocks, 0) as total_blocks,
		       COALESCE(r.total_files, 0) as total_files,
		       COALESCE(r.total_dirs, 0) as total_dirs,
		       COALESCE(r.total_errors, 0) as total_errors
		FROM dirs d
		LEFT JOIN rollups r ON r.dir_id = d.id
		WHERE d.parent_id = ?

		UNION ALL

		SELECT (pd.path || '/' || e.name) as path, e.name, e.kind, e.flags, e.size, e.blocks, e.mtime,
		       e.size as total_size,
		       e.blocks as total_blocks,
		       CASE WHEN e.flags & ? != 0 THEN 1 ELSE 0 END as total_files,
		       0 as total_dirs,
		       CASE WHEN e.flags & ? != 0 THEN 1 ELSE 0 END as total_errors
		FROM entries e
		JOIN dirs pd ON pd.id = e.parent_id
		WHERE e.parent_id = ?
		ORDER BY %s
		LIMIT ?
	`, orderClause)

	parentID, err := dirID(db, parentPath)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, parentPath)
		}
		return nil, fmt.Errorf("parent not found: %w", err)
	}

	rows, err := db.Query(query, entry.KindDir, parentID, entry.FlagFile, entry.FlagError, parentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var entries []DisplayEntry
	for rows.Next() {
		var e DisplayEntry
		var mtime int64
		if err := rows.Scan(&e.Path, &e.Name, &e.Kind, &e.Flags, &e.Size, &e.Blocks, &mtime,
			&e.TotalSize, &e.TotalBlocks, &e.TotalFiles, &e.TotalDirs, &e.Errors); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		e.ModTime = time.Unix(mtime, 0)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetRollup retrieves rollup data for a specific path. It returns nil when
// the path is not a stored directory.
func GetRollup(db *sql.DB, path string) (*entry.Rollup, error) {
	id, err := dirID(db, pathutil.Normalize(path))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	r := entry.Rollup{DirID: id}
	err = db.QueryRow(`
		SELECT total_size, total_blocks, total_files, total_dirs, total_errors
		FROM rollups WHERE dir_id = ?
	`, id).Scan(&r.TotalSize, &r.TotalBlocks, &r.TotalFiles, &r.TotalDirs, &r.Errors)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// GetScanMeta retrieves scan metadata.
func GetScanMeta(db *sql.DB) (*entry.ScanMeta, error) {
	var m entry.ScanMeta
	var startTime, endTime int64
	var status string

	err := db.QueryRow(`
		SELECT scan_id, root_path, status, start_time, COALESCE(end_time, 0), total_size, total_blocks,
		       file_count, dir_count, error_count, fatal_error
		FROM scan_meta WHERE id = 1
	`).Scan(&m.ScanID, &m.RootPath, &status, &startTime, &endTime, &m.TotalSize, &m.TotalBlocks,
		&m.FileCount, &m.DirCount, &m.ErrorCount, &m.FatalError)

	if err != nil {
		return nil, err
	}

	m.Status = entry.ParseStatus(status)
	m.StartTime = time.Unix(startTime, 0)
	if endTime > 0 {
		m.EndTime = time.Unix(endTime, 0)
	}

	return &m, nil
}

// ListErrors returns up to limit sampled scan errors in the order they
// were reported.
func ListErrors(db *sql.DB, limit int) ([]entry.ScanError, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`SELECT path, message FROM scan_errors ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var out []entry.ScanError
	for rows.Next() {
		var e entry.ScanError
		if err := rows.Scan(&e.Path, &e.Message); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
