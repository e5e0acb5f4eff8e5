package datasets

import (
	"math/rand"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/robot"
)

// TrajectoryDataset yields one example per trajectory, built from the start
// configuration. It is the rollout evaluation variant: there is no stepwise
// supervision because the policy is rolled out from the start and judged on
// reaching the goal rather than on matching the expert. The raw padded
// expert trajectory rides along for comparison metrics.
type TrajectoryDataset struct {
	base
}

// NewTrajectoryDataset builds a per-trajectory dataset over col. A nil
// collection produces a valid empty dataset.
func NewTrajectoryDataset(col *archive.Collection, name string, p Params) (*TrajectoryDataset, error) {
	b, err := newBase(col, name, p)
	if err != nil {
		return nil, err
	}
	return &TrajectoryDataset{base: b}, nil
}

// Len returns the number of trajectories in the collection.
func (d *TrajectoryDataset) Len() int {
	if d.col == nil {
		return 0
	}
	return d.col.TrajectoryCount()
}

// Example assembles the example for one trajectory index.
func (d *TrajectoryDataset) Example(i int) (*Example, error) {
	if err := d.checkIndex(i, d.Len()); err != nil {
		return nil, err
	}

	ex, err := d.sceneInputs(i, rand.New(rand.NewSource(d.sceneSeed(i))))
	if err != nil {
		return nil, err
	}

	start, err := d.col.StartConfiguration(i)
	if err != nil {
		return nil, err
	}
	if d.params.Train && d.params.RandomScale > 0 {
		d.noise(&start)
	}
	ex.Configuration = robot.ClampAndNormalize(start).Float32s()
	d.prependRobot(ex, start)

	// The expert stays in raw joint values. Rollout metrics compare
	// unnormalized configurations, unlike the normalized supervision a
	// state example carries.
	expert, err := d.col.PaddedExpert(i)
	if err != nil {
		return nil, err
	}
	flat := make([]float32, 0, len(expert)*robot.NumJoints)
	for _, q := range expert {
		flat = append(flat, q.Float32s()...)
	}
	ex.Expert = flat
	ex.ProblemIndex = int64(i)
	return ex, nil
}
