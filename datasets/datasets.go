// Package datasets assembles training and evaluation examples from
// trajectory archives. Each example pairs a segmented point cloud (robot
// surface, obstacle surfaces, target gripper) with the robot's normalized
// configuration and its supervision: either the next lookahead window of
// configurations or the full padded expert trajectory, depending on the
// dataset variant.
//
// Datasets are lazy. They hold an open collection handle and assemble each
// example on demand, so archives far larger than memory stream through a
// Loader without being materialized. Scene and target points are drawn from
// a per-example stream derived from the dataset seed, which makes retrieval
// deterministic: asking for the same index twice yields the same example,
// except for the configuration noise applied to training variants.
package datasets

import (
	"fmt"
	"math/rand"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/robot"
	"github.com/Noofbiz/motionset/scene"
)

// Example is one assembled datapoint. All geometry is stored in flat
// row-major float32 buffers so batches can be packed without reshaping.
type Example struct {
	// PointCloud holds robot, obstacle, and target surface samples in that
	// order, three values per point. PointCloudLabels tags each point with
	// 0 (robot), 1 (obstacle), or 2 (target).
	PointCloud       []float32
	PointCloudLabels []int32

	// Configuration is the current configuration, clamped and normalized.
	Configuration []float32

	// TargetPosition is the goal gripper position (3 values) and
	// TargetOrientation its rotation matrix (9 values, row-major).
	TargetPosition    []float32
	TargetOrientation []float32

	// Obstacle parameters, padded to the collection's fixed shape. See
	// scene.FlatObstacles for the row layouts.
	CuboidDims      []float32
	CuboidCenters   []float32
	CuboidQuats     []float32
	CylinderRadii   []float32
	CylinderHeights []float32
	CylinderCenters []float32
	CylinderQuats   []float32

	// Supervision holds the lookahead window, one normalized configuration
	// per row, padded to the chunk length. Index is the global state index.
	// Set by state datasets only.
	Supervision []float32
	Index       int64

	// Expert holds the padded expert trajectory in raw joint values, one
	// configuration per row. ProblemIndex is the trajectory index. Set by
	// trajectory datasets only.
	Expert       []float32
	ProblemIndex int64
}

// ExampleSource is the indexed access surface shared by the dataset
// variants. Loaders batch over it; implementations must be safe for
// concurrent Example calls.
type ExampleSource interface {
	Name() string
	Len() int
	Example(i int) (*Example, error)
}

// Params configures a dataset variant.
type Params struct {
	// RobotPoints, ObstaclePoints, and TargetPoints are the per-example
	// point budgets for each point cloud segment.
	RobotPoints    int
	ObstaclePoints int
	TargetPoints   int

	// ActionChunkLength is the number of supervision steps per state
	// example.
	ActionChunkLength int

	// PrismaticJoint is the fixed gripper opening used when sampling robot
	// and target points.
	PrismaticJoint float64

	// RandomScale is the standard deviation of the Gaussian noise applied
	// to the current configuration. Only used when Train is set.
	RandomScale float64

	// Train marks the dataset as a training split, enabling noise.
	Train bool

	// Seed drives point sampling topology, scene sampling streams, and the
	// noise generator.
	Seed int64
}

func (p Params) validate() error {
	if p.RobotPoints <= 0 || p.ObstaclePoints <= 0 || p.TargetPoints <= 0 {
		return fmt.Errorf("point budgets must be positive: robot=%d obstacle=%d target=%d",
			p.RobotPoints, p.ObstaclePoints, p.TargetPoints)
	}
	if p.ActionChunkLength < 0 {
		return fmt.Errorf("action chunk length must not be negative: %d", p.ActionChunkLength)
	}
	if p.RandomScale < 0 {
		return fmt.Errorf("random scale must not be negative: %v", p.RandomScale)
	}
	return nil
}

// base carries the state shared by both dataset variants: the collection
// handle (nil when the split's archive file is absent), the point sampler,
// and the noise generator.
type base struct {
	col    *archive.Collection
	name   string
	params Params

	sampler *robot.PointSampler

	mu  sync.Mutex
	rng *rand.Rand
}

func newBase(col *archive.Collection, name string, p Params) (base, error) {
	if err := p.validate(); err != nil {
		return base{}, fmt.Errorf("dataset %s: %w", name, err)
	}
	return base{
		col:     col,
		name:    name,
		params:  p,
		sampler: robot.NewPointSampler(p.RobotPoints, p.TargetPoints, p.Seed),
		rng:     rand.New(rand.NewSource(p.Seed)),
	}, nil
}

// Name returns the dataset's split name.
func (b *base) Name() string { return b.name }

// checkIndex reports out-of-range accesses. It also covers the empty
// dataset backed by a missing archive file, where every index is invalid.
func (b *base) checkIndex(i, n int) error {
	if i < 0 || i >= n {
		return fmt.Errorf("example %d out of range [0, %d) in %s: %w",
			i, n, b.name, archive.ErrOutOfRange)
	}
	return nil
}

// sceneSeed derives the stream for example i's scene and obstacle point
// draws. Tying the stream to the index keeps retrieval deterministic no
// matter how loader workers interleave.
func (b *base) sceneSeed(i int) int64 {
	return b.params.Seed ^ int64((uint64(i)+1)*0x9e3779b97f4a7c15)
}

// sceneInputs assembles the parts of an example that depend only on the
// trajectory's problem: target pose fields, padded obstacle parameters, and
// the obstacle and target point cloud segments with labels 1 and 2. The
// robot segment is prepended afterwards by the variant, which knows whether
// the configuration was noised.
func (b *base) sceneInputs(traj int, rng *rand.Rand) (*Example, error) {
	p, err := b.col.Problem(traj)
	if err != nil {
		return nil, err
	}
	flat, err := b.col.FlattenedObstacles(traj)
	if err != nil {
		return nil, err
	}

	pose := robot.GripperPose(p.Target)
	ex := &Example{
		TargetPosition: []float32{
			float32(pose.Position.X), float32(pose.Position.Y), float32(pose.Position.Z),
		},
		TargetOrientation: make([]float32, 0, 9),
		CuboidDims:        cloneFloats(flat.CuboidDims),
		CuboidCenters:     cloneFloats(flat.CuboidCenters),
		CuboidQuats:       cloneFloats(flat.CuboidQuats),
		CylinderRadii:     cloneFloats(flat.CylinderRadii),
		CylinderHeights:   cloneFloats(flat.CylinderHeights),
		CylinderCenters:   cloneFloats(flat.CylinderCenters),
		CylinderQuats:     cloneFloats(flat.CylinderQuats),
	}
	for i := range 3 {
		for j := range 3 {
			ex.TargetOrientation = append(ex.TargetOrientation, float32(pose.Rotation[i][j]))
		}
	}

	obstaclePts := scene.SamplePointCloud(p.Cuboids, p.Cylinders, b.params.ObstaclePoints, rng)
	targetPts := b.sampler.SampleGripper(pose, b.params.PrismaticJoint)

	total := b.params.RobotPoints + len(obstaclePts) + len(targetPts)
	ex.PointCloud = make([]float32, 0, total*3)
	ex.PointCloudLabels = make([]int32, 0, total)
	ex.PointCloud = appendPoints(ex.PointCloud, obstaclePts)
	ex.PointCloudLabels = appendLabels(ex.PointCloudLabels, 1, len(obstaclePts))
	ex.PointCloud = appendPoints(ex.PointCloud, targetPts)
	ex.PointCloudLabels = appendLabels(ex.PointCloudLabels, 2, len(targetPts))
	return ex, nil
}

// prependRobot puts robot surface samples for q at the front of the point
// cloud with label 0. q is used as given; callers pass noised values
// unclamped.
func (b *base) prependRobot(ex *Example, q robot.Configuration) {
	pts := b.sampler.SampleRobot(q, b.params.PrismaticJoint)

	cloud := make([]float32, 0, len(pts)*3+len(ex.PointCloud))
	cloud = appendPoints(cloud, pts)
	ex.PointCloud = append(cloud, ex.PointCloud...)

	labels := make([]int32, 0, len(pts)+len(ex.PointCloudLabels))
	labels = appendLabels(labels, 0, len(pts))
	ex.PointCloudLabels = append(labels, ex.PointCloudLabels...)
}

// noise perturbs q in place with zero-mean Gaussian noise. The generator is
// shared and stateful, so revisiting an example across epochs draws fresh
// noise; the lock keeps concurrent loader workers off the same stream.
func (b *base) noise(q *robot.Configuration) {
	b.mu.Lock()
	for j := range q {
		q[j] += b.rng.NormFloat64() * b.params.RandomScale
	}
	b.mu.Unlock()
}

func cloneFloats(src []float32) []float32 {
	out := make([]float32, len(src))
	copy(out, src)
	return out
}

func appendPoints(dst []float32, pts []r3.Vec) []float32 {
	for _, p := range pts {
		dst = append(dst, float32(p.X), float32(p.Y), float32(p.Z))
	}
	return dst
}

func appendLabels(dst []int32, label int32, n int) []int32 {
	for range n {
		dst = append(dst, label)
	}
	return dst
}
