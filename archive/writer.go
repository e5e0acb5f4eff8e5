package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/Noofbiz/motionset/robot"
	"github.com/Noofbiz/motionset/scene"
)

const schema = `
	CREATE TABLE meta (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE collections (
		name             TEXT PRIMARY KEY,
		trajectory_count INTEGER NOT NULL,
		state_count      INTEGER NOT NULL,
		max_length       INTEGER NOT NULL,
		max_cuboids      INTEGER NOT NULL,
		max_cylinders    INTEGER NOT NULL
	);
	CREATE TABLE trajectories (
		collection TEXT NOT NULL,
		traj_idx   INTEGER NOT NULL,
		length     INTEGER NOT NULL,
		target_q0  REAL NOT NULL,
		target_q1  REAL NOT NULL,
		target_q2  REAL NOT NULL,
		target_q3  REAL NOT NULL,
		target_q4  REAL NOT NULL,
		target_q5  REAL NOT NULL,
		target_q6  REAL NOT NULL,
		PRIMARY KEY (collection, traj_idx)
	);
	CREATE TABLE states (
		collection TEXT NOT NULL,
		traj_idx   INTEGER NOT NULL,
		step       INTEGER NOT NULL,
		q0 REAL NOT NULL,
		q1 REAL NOT NULL,
		q2 REAL NOT NULL,
		q3 REAL NOT NULL,
		q4 REAL NOT NULL,
		q5 REAL NOT NULL,
		q6 REAL NOT NULL,
		PRIMARY KEY (collection, traj_idx, step)
	);
	CREATE TABLE cuboids (
		collection TEXT NOT NULL,
		traj_idx   INTEGER NOT NULL,
		ord        INTEGER NOT NULL,
		dim_x REAL NOT NULL,
		dim_y REAL NOT NULL,
		dim_z REAL NOT NULL,
		center_x REAL NOT NULL,
		center_y REAL NOT NULL,
		center_z REAL NOT NULL,
		quat_w REAL NOT NULL,
		quat_x REAL NOT NULL,
		quat_y REAL NOT NULL,
		quat_z REAL NOT NULL,
		PRIMARY KEY (collection, traj_idx, ord)
	);
	CREATE TABLE cylinders (
		collection TEXT NOT NULL,
		traj_idx   INTEGER NOT NULL,
		ord        INTEGER NOT NULL,
		radius REAL NOT NULL,
		height REAL NOT NULL,
		center_x REAL NOT NULL,
		center_y REAL NOT NULL,
		center_z REAL NOT NULL,
		quat_w REAL NOT NULL,
		quat_x REAL NOT NULL,
		quat_y REAL NOT NULL,
		quat_z REAL NOT NULL,
		PRIMARY KEY (collection, traj_idx, ord)
	);
`

// Writer builds a new archive file. It is append-only: trajectories can be
// added to any collection until Close, and nothing can be modified or
// removed afterwards. A Writer is not safe for concurrent use.
type Writer struct {
	db    *sql.DB
	path  string
	stats map[string]*collectionStats
}

type collectionStats struct {
	trajectories int
	states       int
	maxLength    int
	maxCuboids   int
	maxCylinders int
}

// Create makes a new archive at path, failing if the file already exists.
func Create(path string) (*Writer, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("archive %s already exists", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	// Rollback journaling keeps the finished archive in a single file, so a
	// split's checksum covers all of its content.
	if _, err := db.Exec("PRAGMA journal_mode = DELETE"); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create archive schema: %w", err)
	}

	w := &Writer{db: db, path: path, stats: make(map[string]*collectionStats)}
	if err := w.SetMeta("format_version", "1"); err != nil {
		db.Close()
		return nil, err
	}
	return w, nil
}

// Path returns the file the writer is building.
func (w *Writer) Path() string {
	return w.path
}

// SetMeta stores a key/value pair in the archive metadata, replacing any
// previous value for the key.
func (w *Writer) SetMeta(key, value string) error {
	if _, err := w.db.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("set meta %q: %w", key, err)
	}
	return nil
}

// Append adds one solved problem and its trajectory to the named collection.
// The trajectory's first state is the start configuration datasets will see.
func (w *Writer) Append(collection string, p *scene.Problem, trajectory []robot.Configuration) error {
	if len(trajectory) == 0 {
		return fmt.Errorf("append to %q: empty trajectory", collection)
	}

	st := w.stats[collection]
	if st == nil {
		st = &collectionStats{}
		w.stats[collection] = st
	}
	idx := st.trajectories

	tx, err := w.db.Begin()
	if err != nil {
		return fmt.Errorf("append to %q: %w", collection, err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO trajectories (collection, traj_idx, length, target_q0, target_q1, target_q2, target_q3, target_q4, target_q5, target_q6) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		collection, idx, len(trajectory),
		p.Target[0], p.Target[1], p.Target[2], p.Target[3], p.Target[4], p.Target[5], p.Target[6],
	)
	if err != nil {
		return fmt.Errorf("append trajectory %d to %q: %w", idx, collection, err)
	}

	stateStmt, err := tx.Prepare(
		"INSERT INTO states (collection, traj_idx, step, q0, q1, q2, q3, q4, q5, q6) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("append states to %q: %w", collection, err)
	}
	defer stateStmt.Close()
	for step, q := range trajectory {
		if _, err := stateStmt.Exec(collection, idx, step, q[0], q[1], q[2], q[3], q[4], q[5], q[6]); err != nil {
			return fmt.Errorf("append state %d of trajectory %d: %w", step, idx, err)
		}
	}

	for ord, cb := range p.Cuboids {
		_, err := tx.Exec(
			"INSERT INTO cuboids (collection, traj_idx, ord, dim_x, dim_y, dim_z, center_x, center_y, center_z, quat_w, quat_x, quat_y, quat_z) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			collection, idx, ord,
			cb.Dims.X, cb.Dims.Y, cb.Dims.Z,
			cb.Center.X, cb.Center.Y, cb.Center.Z,
			cb.Quat.Real, cb.Quat.Imag, cb.Quat.Jmag, cb.Quat.Kmag,
		)
		if err != nil {
			return fmt.Errorf("append cuboid %d of trajectory %d: %w", ord, idx, err)
		}
	}
	for ord, cy := range p.Cylinders {
		_, err := tx.Exec(
			"INSERT INTO cylinders (collection, traj_idx, ord, radius, height, center_x, center_y, center_z, quat_w, quat_x, quat_y, quat_z) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			collection, idx, ord,
			cy.Radius, cy.Height,
			cy.Center.X, cy.Center.Y, cy.Center.Z,
			cy.Quat.Real, cy.Quat.Imag, cy.Quat.Jmag, cy.Quat.Kmag,
		)
		if err != nil {
			return fmt.Errorf("append cylinder %d of trajectory %d: %w", ord, idx, err)
		}
	}

	next := *st
	next.trajectories++
	next.states += len(trajectory)
	next.maxLength = max(next.maxLength, len(trajectory))
	next.maxCuboids = max(next.maxCuboids, len(p.Cuboids))
	next.maxCylinders = max(next.maxCylinders, len(p.Cylinders))

	_, err = tx.Exec(
		"INSERT OR REPLACE INTO collections (name, trajectory_count, state_count, max_length, max_cuboids, max_cylinders) VALUES (?, ?, ?, ?, ?, ?)",
		collection, next.trajectories, next.states, next.maxLength, next.maxCuboids, next.maxCylinders,
	)
	if err != nil {
		return fmt.Errorf("update collection %q counts: %w", collection, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append to %q: %w", collection, err)
	}
	*st = next
	return nil
}

// Close finalizes the archive file.
func (w *Writer) Close() error {
	return w.db.Close()
}
