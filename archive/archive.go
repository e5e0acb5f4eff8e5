// Package archive reads and writes the on-disk trajectory archives the
// datasets are built on. An archive is a single SQLite file holding one or
// more named trajectory collections; each trajectory pairs a static problem
// (target configuration plus obstacles) with the ordered robot states that
// solve it.
//
// Archives are opened read-only for consumption. A handle caches each
// collection's cumulative length index at open time, so the mapping between
// global state indices and (trajectory, step) pairs is fixed for the
// handle's lifetime. Handles are safe for concurrent readers: database/sql
// hands each worker its own connection and nothing here writes.
package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
	_ "modernc.org/sqlite"
)

var (
	// ErrOutOfRange reports a state or trajectory index outside the
	// collection's bounds.
	ErrOutOfRange = errors.New("index out of range")

	// ErrUnknownCollection reports a trajectory collection name the archive
	// does not contain.
	ErrUnknownCollection = errors.New("unknown trajectory collection")
)

// Archive is a read-only handle to one archive file.
type Archive struct {
	db   *sql.DB
	path string

	mu       sync.Mutex
	checksum string

	colMu sync.Mutex
	cols  map[string]*Collection
}

// Open opens the archive file at path read-only. The file must exist:
// callers that treat a missing split as an empty dataset should stat the
// path before calling Open.
func Open(path string) (*Archive, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	// Touch the collections table so a file that is not an archive fails
	// here rather than on the first lookup.
	var collections int
	if err := db.QueryRow("SELECT COUNT(*) FROM collections").Scan(&collections); err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	return &Archive{db: db, path: path, cols: make(map[string]*Collection)}, nil
}

// Path returns the file the archive was opened from.
func (a *Archive) Path() string {
	return a.path
}

// Close releases the underlying database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Meta returns the value stored under key in the archive's metadata table.
func (a *Archive) Meta(key string) (string, error) {
	var value string
	err := a.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("archive has no metadata under key %q", key)
	}
	if err != nil {
		return "", fmt.Errorf("read meta %q: %w", key, err)
	}
	return value, nil
}

// CollectionNames lists the trajectory collections stored in the archive.
func (a *Archive) CollectionNames() ([]string, error) {
	rows, err := a.db.Query("SELECT name FROM collections ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list collections: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return names, nil
}

// Collection returns a handle to the named trajectory collection, loading
// its cumulative length index on first use. The handle is shared across
// calls for the lifetime of the archive.
func (a *Archive) Collection(name string) (*Collection, error) {
	a.colMu.Lock()
	defer a.colMu.Unlock()
	if c, ok := a.cols[name]; ok {
		return c, nil
	}
	c, err := openCollection(a.db, name)
	if err != nil {
		return nil, err
	}
	a.cols[name] = c
	return c, nil
}

// Checksum returns the content hash of the archive file, computed once and
// cached. The hash detects stale or regenerated split files, not tampering.
func (a *Archive) Checksum() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.checksum != "" {
		return a.checksum, nil
	}
	sum, err := FileChecksum(a.path)
	if err != nil {
		return "", err
	}
	a.checksum = sum
	return sum, nil
}

// FileChecksum hashes the file at path the same way Archive.Checksum does.
func FileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("checksum %s: %w", path, err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}
