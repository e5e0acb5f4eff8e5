package datasets

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/robot"
)

// CollectionStats summarizes one trajectory collection: how long its
// trajectories run, how cluttered its scenes are, and where in the
// workspace its targets sit.
type CollectionStats struct {
	Trajectories int
	States       int

	MinLength  int
	MaxLength  int
	MeanLength float64

	MeanCuboids   float64
	MeanCylinders float64
	MaxCuboids    int
	MaxCylinders  int

	// TargetMin and TargetMax bound the axis-aligned box containing every
	// target gripper position.
	TargetMin r3.Vec
	TargetMax r3.Vec
}

// Summarize scans every trajectory in the collection. A nil collection
// yields zero stats, matching the empty datasets built over missing splits.
func Summarize(col *archive.Collection) (*CollectionStats, error) {
	st := &CollectionStats{}
	if col == nil {
		return st, nil
	}

	st.Trajectories = col.TrajectoryCount()
	st.States = col.StateCount()
	st.MaxLength = col.MaxTrajectoryLength()
	st.MaxCuboids = col.MaxCuboids()
	st.MaxCylinders = col.MaxCylinders()
	if st.Trajectories == 0 {
		return st, nil
	}

	st.MinLength = math.MaxInt
	st.TargetMin = r3.Vec{X: math.Inf(1), Y: math.Inf(1), Z: math.Inf(1)}
	st.TargetMax = r3.Vec{X: math.Inf(-1), Y: math.Inf(-1), Z: math.Inf(-1)}
	cuboids, cylinders := 0, 0

	for traj := range st.Trajectories {
		length, err := col.TrajectoryLength(traj)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", col.Name(), err)
		}
		st.MinLength = min(st.MinLength, length)

		p, err := col.Problem(traj)
		if err != nil {
			return nil, fmt.Errorf("failed to summarize %s: %w", col.Name(), err)
		}
		cuboids += len(p.Cuboids)
		cylinders += len(p.Cylinders)

		pos := robot.GripperPose(p.Target).Transform(r3.Vec{})
		st.TargetMin.X = min(st.TargetMin.X, pos.X)
		st.TargetMin.Y = min(st.TargetMin.Y, pos.Y)
		st.TargetMin.Z = min(st.TargetMin.Z, pos.Z)
		st.TargetMax.X = max(st.TargetMax.X, pos.X)
		st.TargetMax.Y = max(st.TargetMax.Y, pos.Y)
		st.TargetMax.Z = max(st.TargetMax.Z, pos.Z)
	}

	st.MeanLength = float64(st.States) / float64(st.Trajectories)
	st.MeanCuboids = float64(cuboids) / float64(st.Trajectories)
	st.MeanCylinders = float64(cylinders) / float64(st.Trajectories)
	return st, nil
}
