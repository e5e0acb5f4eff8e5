package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Noofbiz/motionset/robot"
	"github.com/Noofbiz/motionset/scene"
)

// problemCacheSize bounds the per-collection problem and obstacle caches.
// Every state of a trajectory reads the same problem, so repeat reads
// dominate during an epoch.
const problemCacheSize = 256

// Collection is a read-only view of one named trajectory collection. It
// holds the collection's counts and cumulative length index, loaded once
// when the collection is first opened.
type Collection struct {
	db   *sql.DB
	name string

	trajectoryCount int
	stateCount      int
	maxLength       int
	maxCuboids      int
	maxCylinders    int

	lengths []int
	// cum[i] is the number of states in trajectories before i, so a global
	// state index g belongs to the trajectory t with cum[t] <= g < cum[t+1].
	cum []int

	problems  *lru.Cache[int, *scene.Problem]
	obstacles *lru.Cache[int, *scene.FlatObstacles]
}

func openCollection(db *sql.DB, name string) (*Collection, error) {
	c := &Collection{db: db, name: name}
	err := db.QueryRow(
		"SELECT trajectory_count, state_count, max_length, max_cuboids, max_cylinders FROM collections WHERE name = ?",
		name,
	).Scan(&c.trajectoryCount, &c.stateCount, &c.maxLength, &c.maxCuboids, &c.maxCylinders)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("collection %q: %w", name, ErrUnknownCollection)
	}
	if err != nil {
		return nil, fmt.Errorf("load collection %q: %w", name, err)
	}

	rows, err := db.Query("SELECT length FROM trajectories WHERE collection = ? ORDER BY traj_idx", name)
	if err != nil {
		return nil, fmt.Errorf("load collection %q lengths: %w", name, err)
	}
	defer rows.Close()

	c.lengths = make([]int, 0, c.trajectoryCount)
	for rows.Next() {
		var length int
		if err := rows.Scan(&length); err != nil {
			return nil, fmt.Errorf("load collection %q lengths: %w", name, err)
		}
		c.lengths = append(c.lengths, length)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load collection %q lengths: %w", name, err)
	}
	if len(c.lengths) != c.trajectoryCount {
		return nil, fmt.Errorf("collection %q lists %d trajectories but stores %d", name, c.trajectoryCount, len(c.lengths))
	}

	c.cum = make([]int, len(c.lengths)+1)
	for i, length := range c.lengths {
		c.cum[i+1] = c.cum[i] + length
	}
	if c.cum[len(c.cum)-1] != c.stateCount {
		return nil, fmt.Errorf("collection %q counts %d states but trajectories sum to %d",
			name, c.stateCount, c.cum[len(c.cum)-1])
	}

	// lru.New only fails for non-positive sizes.
	if c.problems, err = lru.New[int, *scene.Problem](problemCacheSize); err != nil {
		return nil, err
	}
	if c.obstacles, err = lru.New[int, *scene.FlatObstacles](problemCacheSize); err != nil {
		return nil, err
	}
	return c, nil
}

// Name returns the collection's name within the archive.
func (c *Collection) Name() string { return c.name }

// TrajectoryCount returns the number of trajectories in the collection.
func (c *Collection) TrajectoryCount() int { return c.trajectoryCount }

// StateCount returns the total number of states across all trajectories.
func (c *Collection) StateCount() int { return c.stateCount }

// MaxTrajectoryLength returns the length of the longest trajectory.
func (c *Collection) MaxTrajectoryLength() int { return c.maxLength }

// MaxCuboids returns the largest cuboid count of any problem.
func (c *Collection) MaxCuboids() int { return c.maxCuboids }

// MaxCylinders returns the largest cylinder count of any problem.
func (c *Collection) MaxCylinders() int { return c.maxCylinders }

// TrajectoryLength returns the number of states in one trajectory.
func (c *Collection) TrajectoryLength(traj int) (int, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return 0, err
	}
	return c.lengths[traj], nil
}

func (c *Collection) checkTrajectory(traj int) error {
	if traj < 0 || traj >= c.trajectoryCount {
		return fmt.Errorf("trajectory index %d out of range [0, %d): %w", traj, c.trajectoryCount, ErrOutOfRange)
	}
	return nil
}

// Locate maps a global state index to its (trajectory, step) pair.
func (c *Collection) Locate(global int) (traj, step int, err error) {
	if global < 0 || global >= c.stateCount {
		return 0, 0, fmt.Errorf("state index %d out of range [0, %d): %w", global, c.stateCount, ErrOutOfRange)
	}
	traj = sort.Search(c.trajectoryCount, func(i int) bool { return global < c.cum[i+1] })
	return traj, global - c.cum[traj], nil
}

// LookupTrajectory maps a global state index to the trajectory containing it.
func (c *Collection) LookupTrajectory(global int) (int, error) {
	traj, _, err := c.Locate(global)
	return traj, err
}

// GlobalIndex is the inverse of Locate, mapping a (trajectory, step) pair
// back to the flat state index.
func (c *Collection) GlobalIndex(traj, step int) (int, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return 0, err
	}
	if step < 0 || step >= c.lengths[traj] {
		return 0, fmt.Errorf("step %d out of range [0, %d) in trajectory %d: %w",
			step, c.lengths[traj], traj, ErrOutOfRange)
	}
	return c.cum[traj] + step, nil
}

// Problem returns the static scene the trajectory was solved in. Problems
// are cached and must be treated as read-only.
func (c *Collection) Problem(traj int) (*scene.Problem, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return nil, err
	}
	if p, ok := c.problems.Get(traj); ok {
		return p, nil
	}
	p, err := c.loadProblem(traj)
	if err != nil {
		return nil, err
	}
	c.problems.Add(traj, p)
	return p, nil
}

func (c *Collection) loadProblem(traj int) (*scene.Problem, error) {
	p := &scene.Problem{}
	err := c.db.QueryRow(
		"SELECT target_q0, target_q1, target_q2, target_q3, target_q4, target_q5, target_q6 FROM trajectories WHERE collection = ? AND traj_idx = ?",
		c.name, traj,
	).Scan(&p.Target[0], &p.Target[1], &p.Target[2], &p.Target[3], &p.Target[4], &p.Target[5], &p.Target[6])
	if err != nil {
		return nil, fmt.Errorf("load problem %d in %q: %w", traj, c.name, err)
	}

	rows, err := c.db.Query(
		"SELECT dim_x, dim_y, dim_z, center_x, center_y, center_z, quat_w, quat_x, quat_y, quat_z FROM cuboids WHERE collection = ? AND traj_idx = ? ORDER BY ord",
		c.name, traj,
	)
	if err != nil {
		return nil, fmt.Errorf("load cuboids for problem %d: %w", traj, err)
	}
	defer rows.Close()
	for rows.Next() {
		var cb scene.Cuboid
		var w, x, y, z float64
		if err := rows.Scan(&cb.Dims.X, &cb.Dims.Y, &cb.Dims.Z,
			&cb.Center.X, &cb.Center.Y, &cb.Center.Z, &w, &x, &y, &z); err != nil {
			return nil, fmt.Errorf("load cuboids for problem %d: %w", traj, err)
		}
		cb.Quat = scene.Quaternion(w, x, y, z)
		p.Cuboids = append(p.Cuboids, cb)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cuboids for problem %d: %w", traj, err)
	}

	cylRows, err := c.db.Query(
		"SELECT radius, height, center_x, center_y, center_z, quat_w, quat_x, quat_y, quat_z FROM cylinders WHERE collection = ? AND traj_idx = ? ORDER BY ord",
		c.name, traj,
	)
	if err != nil {
		return nil, fmt.Errorf("load cylinders for problem %d: %w", traj, err)
	}
	defer cylRows.Close()
	for cylRows.Next() {
		var cy scene.Cylinder
		var w, x, y, z float64
		if err := cylRows.Scan(&cy.Radius, &cy.Height,
			&cy.Center.X, &cy.Center.Y, &cy.Center.Z, &w, &x, &y, &z); err != nil {
			return nil, fmt.Errorf("load cylinders for problem %d: %w", traj, err)
		}
		cy.Quat = scene.Quaternion(w, x, y, z)
		p.Cylinders = append(p.Cylinders, cy)
	}
	if err := cylRows.Err(); err != nil {
		return nil, fmt.Errorf("load cylinders for problem %d: %w", traj, err)
	}
	return p, nil
}

// FlattenedObstacles returns the problem's obstacle parameters padded to
// the collection-wide maxima. Results are cached and must be treated as
// read-only.
func (c *Collection) FlattenedObstacles(traj int) (*scene.FlatObstacles, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return nil, err
	}
	if f, ok := c.obstacles.Get(traj); ok {
		return f, nil
	}
	p, err := c.Problem(traj)
	if err != nil {
		return nil, err
	}
	f, err := scene.Flatten(p, c.maxCuboids, c.maxCylinders)
	if err != nil {
		return nil, fmt.Errorf("flatten problem %d in %q: %w", traj, c.name, err)
	}
	c.obstacles.Add(traj, f)
	return f, nil
}

// StateWindow returns up to lookahead+1 consecutive configurations starting
// at the global state index, truncated at the trajectory's end rather than
// wrapping or padding. The first element is always the configuration at the
// index itself.
func (c *Collection) StateWindow(global, lookahead int) ([]robot.Configuration, error) {
	if lookahead < 0 {
		return nil, fmt.Errorf("negative lookahead %d", lookahead)
	}
	traj, step, err := c.Locate(global)
	if err != nil {
		return nil, err
	}
	end := step + lookahead + 1
	if end > c.lengths[traj] {
		end = c.lengths[traj]
	}
	return c.readStates(traj, step, end)
}

// StartConfiguration returns the first configuration of a trajectory.
func (c *Collection) StartConfiguration(traj int) (robot.Configuration, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return robot.Configuration{}, err
	}
	states, err := c.readStates(traj, 0, 1)
	if err != nil {
		return robot.Configuration{}, err
	}
	return states[0], nil
}

// Expert returns the full expert trajectory in order.
func (c *Collection) Expert(traj int) ([]robot.Configuration, error) {
	if err := c.checkTrajectory(traj); err != nil {
		return nil, err
	}
	return c.readStates(traj, 0, c.lengths[traj])
}

// PaddedExpert returns the expert trajectory padded to the collection's
// maximum length by repeating the final state, so batched experts share one
// shape.
func (c *Collection) PaddedExpert(traj int) ([]robot.Configuration, error) {
	expert, err := c.Expert(traj)
	if err != nil {
		return nil, err
	}
	if len(expert) == 0 {
		return nil, fmt.Errorf("trajectory %d in %q has no states", traj, c.name)
	}
	for len(expert) < c.maxLength {
		expert = append(expert, expert[len(expert)-1])
	}
	return expert, nil
}

func (c *Collection) readStates(traj, from, to int) ([]robot.Configuration, error) {
	rows, err := c.db.Query(
		"SELECT q0, q1, q2, q3, q4, q5, q6 FROM states WHERE collection = ? AND traj_idx = ? AND step >= ? AND step < ? ORDER BY step",
		c.name, traj, from, to,
	)
	if err != nil {
		return nil, fmt.Errorf("read states [%d, %d) of trajectory %d: %w", from, to, traj, err)
	}
	defer rows.Close()

	out := make([]robot.Configuration, 0, to-from)
	for rows.Next() {
		var q robot.Configuration
		if err := rows.Scan(&q[0], &q[1], &q[2], &q[3], &q[4], &q[5], &q[6]); err != nil {
			return nil, fmt.Errorf("read states of trajectory %d: %w", traj, err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read states of trajectory %d: %w", traj, err)
	}
	if len(out) != to-from {
		return nil, fmt.Errorf("trajectory %d holds %d states in [%d, %d), expected %d",
			traj, len(out), from, to, to-from)
	}
	return out, nil
}
