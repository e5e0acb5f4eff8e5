package datasets

import (
	"math/rand"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/robot"
)

// StateDataset yields one example per timestep across every trajectory in a
// collection. It is the training variant: the example holds the scene at a
// single step, the (optionally noised) current configuration, and the next
// ActionChunkLength configurations as supervision.
type StateDataset struct {
	base
}

// NewStateDataset builds a per-state dataset over col. A nil collection
// produces a valid empty dataset, which is how splits whose archive file is
// absent are represented.
func NewStateDataset(col *archive.Collection, name string, p Params) (*StateDataset, error) {
	b, err := newBase(col, name, p)
	if err != nil {
		return nil, err
	}
	return &StateDataset{base: b}, nil
}

// Len returns the total number of states across all trajectories.
func (d *StateDataset) Len() int {
	if d.col == nil {
		return 0
	}
	return d.col.StateCount()
}

// Example assembles the example for one global state index.
func (d *StateDataset) Example(i int) (*Example, error) {
	if err := d.checkIndex(i, d.Len()); err != nil {
		return nil, err
	}

	traj, err := d.col.LookupTrajectory(i)
	if err != nil {
		return nil, err
	}
	ex, err := d.sceneInputs(traj, rand.New(rand.NewSource(d.sceneSeed(i))))
	if err != nil {
		return nil, err
	}

	window, err := d.col.StateWindow(i, d.params.ActionChunkLength)
	if err != nil {
		return nil, err
	}
	current := window[0]

	// The lookahead window truncates at the end of the trajectory. Supervision
	// pads back out to the chunk length by repeating the final row, keeping a
	// fixed shape with the trajectory held at its goal.
	last := window[len(window)-1]
	supervision := make([]float32, 0, d.params.ActionChunkLength*robot.NumJoints)
	for step := 1; step <= d.params.ActionChunkLength; step++ {
		q := last
		if step < len(window) {
			q = window[step]
		}
		supervision = append(supervision, robot.ClampAndNormalize(q).Float32s()...)
	}
	ex.Supervision = supervision
	ex.Index = int64(i)

	// Noise perturbs only the current configuration; supervision stays
	// ground truth. Robot points are sampled from the same noised value the
	// configuration tensor is built from.
	if d.params.Train && d.params.RandomScale > 0 {
		d.noise(&current)
	}
	ex.Configuration = robot.ClampAndNormalize(current).Float32s()
	d.prependRobot(ex, current)
	return ex, nil
}
