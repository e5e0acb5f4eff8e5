package datasets

import (
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/Noofbiz/motionset/robot"
)

// Batch packs examples into contiguous flat buffers with shared shape
// metadata. All examples in a batch must come from the same dataset variant
// and carry identical per-example dimensions.
type Batch struct {
	// Size is the number of examples in the batch.
	Size int

	// Points is the number of point cloud rows per example, ChunkLength the
	// number of supervision rows, and ExpertSteps the number of expert rows.
	Points      int
	ChunkLength int
	ExpertSteps int

	// MaxCuboids and MaxCylinders are the padded obstacle capacities.
	MaxCuboids   int
	MaxCylinders int

	// HasSupervision marks a batch of state examples, HasExpert a batch of
	// trajectory examples.
	HasSupervision bool
	HasExpert      bool

	PointCloud        []float32 // Size x Points x 3
	PointCloudLabels  []int32   // Size x Points
	Configuration     []float32 // Size x 7
	TargetPosition    []float32 // Size x 3
	TargetOrientation []float32 // Size x 3 x 3
	CuboidDims        []float32 // Size x MaxCuboids x 3
	CuboidCenters     []float32 // Size x MaxCuboids x 3
	CuboidQuats       []float32 // Size x MaxCuboids x 4
	CylinderRadii     []float32 // Size x MaxCylinders x 1
	CylinderHeights   []float32 // Size x MaxCylinders x 1
	CylinderCenters   []float32 // Size x MaxCylinders x 3
	CylinderQuats     []float32 // Size x MaxCylinders x 4
	Supervision       []float32 // Size x ChunkLength x 7
	Index             []int64   // Size
	Expert            []float32 // Size x ExpertSteps x 7
	ProblemIndex      []int64   // Size
}

// MakeBatch flattens examples into a batch, inferring the per-example
// dimensions from the first example and validating the rest against them.
func MakeBatch(examples []*Example) (*Batch, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("batch must contain at least one example")
	}

	first := examples[0]
	b := &Batch{
		Size:           len(examples),
		Points:         len(first.PointCloud) / 3,
		ChunkLength:    len(first.Supervision) / robot.NumJoints,
		ExpertSteps:    len(first.Expert) / robot.NumJoints,
		MaxCuboids:     len(first.CuboidDims) / 3,
		MaxCylinders:   len(first.CylinderRadii),
		HasSupervision: first.Supervision != nil,
		HasExpert:      first.Expert != nil,
	}

	n := b.Size
	b.PointCloud = make([]float32, n*b.Points*3)
	b.PointCloudLabels = make([]int32, n*b.Points)
	b.Configuration = make([]float32, n*robot.NumJoints)
	b.TargetPosition = make([]float32, n*3)
	b.TargetOrientation = make([]float32, n*9)
	b.CuboidDims = make([]float32, n*b.MaxCuboids*3)
	b.CuboidCenters = make([]float32, n*b.MaxCuboids*3)
	b.CuboidQuats = make([]float32, n*b.MaxCuboids*4)
	b.CylinderRadii = make([]float32, n*b.MaxCylinders)
	b.CylinderHeights = make([]float32, n*b.MaxCylinders)
	b.CylinderCenters = make([]float32, n*b.MaxCylinders*3)
	b.CylinderQuats = make([]float32, n*b.MaxCylinders*4)
	if b.HasSupervision {
		b.Supervision = make([]float32, n*b.ChunkLength*robot.NumJoints)
		b.Index = make([]int64, n)
	}
	if b.HasExpert {
		b.Expert = make([]float32, n*b.ExpertSteps*robot.NumJoints)
		b.ProblemIndex = make([]int64, n)
	}

	for i, ex := range examples {
		if (ex.Supervision != nil) != b.HasSupervision || (ex.Expert != nil) != b.HasExpert {
			return nil, fmt.Errorf("cannot mix state and trajectory examples in one batch (example %d)", i)
		}

		fields := []struct {
			name  string
			dst   []float32
			src   []float32
			width int
		}{
			{"point cloud", b.PointCloud, ex.PointCloud, b.Points * 3},
			{"configuration", b.Configuration, ex.Configuration, robot.NumJoints},
			{"target position", b.TargetPosition, ex.TargetPosition, 3},
			{"target orientation", b.TargetOrientation, ex.TargetOrientation, 9},
			{"cuboid dims", b.CuboidDims, ex.CuboidDims, b.MaxCuboids * 3},
			{"cuboid centers", b.CuboidCenters, ex.CuboidCenters, b.MaxCuboids * 3},
			{"cuboid quats", b.CuboidQuats, ex.CuboidQuats, b.MaxCuboids * 4},
			{"cylinder radii", b.CylinderRadii, ex.CylinderRadii, b.MaxCylinders},
			{"cylinder heights", b.CylinderHeights, ex.CylinderHeights, b.MaxCylinders},
			{"cylinder centers", b.CylinderCenters, ex.CylinderCenters, b.MaxCylinders * 3},
			{"cylinder quats", b.CylinderQuats, ex.CylinderQuats, b.MaxCylinders * 4},
		}
		for _, f := range fields {
			if len(f.src) != f.width {
				return nil, fmt.Errorf("inconsistent %s length at example %d: expected %d, got %d",
					f.name, i, f.width, len(f.src))
			}
			copy(f.dst[i*f.width:], f.src)
		}

		if len(ex.PointCloudLabels) != b.Points {
			return nil, fmt.Errorf("inconsistent point cloud labels length at example %d: expected %d, got %d",
				i, b.Points, len(ex.PointCloudLabels))
		}
		copy(b.PointCloudLabels[i*b.Points:], ex.PointCloudLabels)

		if b.HasSupervision {
			width := b.ChunkLength * robot.NumJoints
			if len(ex.Supervision) != width {
				return nil, fmt.Errorf("inconsistent supervision length at example %d: expected %d, got %d",
					i, width, len(ex.Supervision))
			}
			copy(b.Supervision[i*width:], ex.Supervision)
			b.Index[i] = ex.Index
		}
		if b.HasExpert {
			width := b.ExpertSteps * robot.NumJoints
			if len(ex.Expert) != width {
				return nil, fmt.Errorf("inconsistent expert length at example %d: expected %d, got %d",
					i, width, len(ex.Expert))
			}
			copy(b.Expert[i*width:], ex.Expert)
			b.ProblemIndex[i] = ex.ProblemIndex
		}
	}
	return b, nil
}

// ToTensors converts the batch into named gomlx tensors. Point clouds come
// out as [size, points, 3] with labels [size, points]; configurations and
// supervision rows keep seven values per configuration. Keys whose capacity
// is zero for this batch (no cuboids, no cylinders, empty chunk) are
// omitted rather than emitted with a zero dimension.
func (b *Batch) ToTensors() map[string]*tensors.Tensor {
	out := map[string]*tensors.Tensor{
		"point_cloud":        tensors.FromAnyValue(nestFloats3(b.PointCloud, b.Size, b.Points, 3)),
		"point_cloud_labels": tensors.FromAnyValue(nestInts(b.PointCloudLabels, b.Size, b.Points)),
		"configuration":      tensors.FromAnyValue(nestFloats(b.Configuration, b.Size, robot.NumJoints)),
		"target_position":    tensors.FromAnyValue(nestFloats(b.TargetPosition, b.Size, 3)),
		"target_orientation": tensors.FromAnyValue(nestFloats3(b.TargetOrientation, b.Size, 3, 3)),
	}
	if b.MaxCuboids > 0 {
		out["cuboid_dims"] = tensors.FromAnyValue(nestFloats3(b.CuboidDims, b.Size, b.MaxCuboids, 3))
		out["cuboid_centers"] = tensors.FromAnyValue(nestFloats3(b.CuboidCenters, b.Size, b.MaxCuboids, 3))
		out["cuboid_quats"] = tensors.FromAnyValue(nestFloats3(b.CuboidQuats, b.Size, b.MaxCuboids, 4))
	}
	if b.MaxCylinders > 0 {
		out["cylinder_radii"] = tensors.FromAnyValue(nestFloats3(b.CylinderRadii, b.Size, b.MaxCylinders, 1))
		out["cylinder_heights"] = tensors.FromAnyValue(nestFloats3(b.CylinderHeights, b.Size, b.MaxCylinders, 1))
		out["cylinder_centers"] = tensors.FromAnyValue(nestFloats3(b.CylinderCenters, b.Size, b.MaxCylinders, 3))
		out["cylinder_quats"] = tensors.FromAnyValue(nestFloats3(b.CylinderQuats, b.Size, b.MaxCylinders, 4))
	}
	if b.HasSupervision {
		if b.ChunkLength > 0 {
			out["supervision"] = tensors.FromAnyValue(nestFloats3(b.Supervision, b.Size, b.ChunkLength, robot.NumJoints))
		}
		out["index"] = tensors.FromAnyValue(b.Index)
	}
	if b.HasExpert {
		if b.ExpertSteps > 0 {
			out["expert"] = tensors.FromAnyValue(nestFloats3(b.Expert, b.Size, b.ExpertSteps, robot.NumJoints))
		}
		out["problem_index"] = tensors.FromAnyValue(b.ProblemIndex)
	}
	return out
}

// nestFloats reshapes a flat buffer into rows of width cols, sharing the
// backing array.
func nestFloats(flat []float32, rows, cols int) [][]float32 {
	out := make([][]float32, rows)
	for i := range rows {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}

// nestFloats3 reshapes a flat buffer into n blocks of rows x cols.
func nestFloats3(flat []float32, n, rows, cols int) [][][]float32 {
	out := make([][][]float32, n)
	stride := rows * cols
	for i := range n {
		out[i] = nestFloats(flat[i*stride:(i+1)*stride], rows, cols)
	}
	return out
}

func nestInts(flat []int32, rows, cols int) [][]int32 {
	out := make([][]int32, rows)
	for i := range rows {
		out[i] = flat[i*cols : (i+1)*cols]
	}
	return out
}
