// Package scene describes the static obstacle scenes that motion problems
// are posed in: cuboid and cylinder primitives, the Problem type tying
// obstacles to a target configuration, fixed-shape flattening of obstacle
// parameters for batching, and surface sampling of mixed primitive
// populations into point clouds.
package scene

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Noofbiz/motionset/robot"
)

// Cuboid is a box obstacle. Dims holds the full side lengths and Quat the
// orientation about the center as a unit quaternion (w, x, y, z order).
type Cuboid struct {
	Dims   r3.Vec
	Center r3.Vec
	Quat   quat.Number
}

// SurfaceArea returns the total area of the six faces.
func (c Cuboid) SurfaceArea() float64 {
	return 2 * (c.Dims.X*c.Dims.Y + c.Dims.Y*c.Dims.Z + c.Dims.X*c.Dims.Z)
}

// Cylinder is a cylindrical obstacle with its axis along local z, centered
// on Center and oriented by the unit quaternion Quat.
type Cylinder struct {
	Radius float64
	Height float64
	Center r3.Vec
	Quat   quat.Number
}

// SurfaceArea returns the lateral area plus both caps.
func (c Cylinder) SurfaceArea() float64 {
	return 2*math.Pi*c.Radius*c.Height + 2*math.Pi*c.Radius*c.Radius
}

// IdentityQuat returns the no-rotation orientation.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// Quaternion builds an orientation from (w, x, y, z) components.
func Quaternion(w, x, y, z float64) quat.Number {
	return quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
}

// Problem is one static scene instance: the target configuration a
// trajectory drives toward and the obstacles it must avoid. Problems are
// immutable once read from an archive.
type Problem struct {
	Target    robot.Configuration
	Cuboids   []Cuboid
	Cylinders []Cylinder
}

// FlatObstacles holds a problem's obstacle parameters padded out to fixed
// per-collection shapes so every example batches together regardless of how
// many obstacles its scene has. Padding rows are all zero, quaternions
// included. Rows are packed consecutively: CuboidDims holds MaxCuboids rows
// of 3 values, CuboidQuats rows of 4 in (w, x, y, z) order, and so on.
type FlatObstacles struct {
	MaxCuboids   int
	MaxCylinders int

	CuboidDims    []float32
	CuboidCenters []float32
	CuboidQuats   []float32

	CylinderRadii   []float32
	CylinderHeights []float32
	CylinderCenters []float32
	CylinderQuats   []float32
}

// Flatten pads the obstacle parameters of p to the given maximum counts.
// It fails if p has more obstacles than the maxima allow.
func Flatten(p *Problem, maxCuboids, maxCylinders int) (*FlatObstacles, error) {
	if len(p.Cuboids) > maxCuboids {
		return nil, fmt.Errorf("problem has %d cuboids, collection maximum is %d", len(p.Cuboids), maxCuboids)
	}
	if len(p.Cylinders) > maxCylinders {
		return nil, fmt.Errorf("problem has %d cylinders, collection maximum is %d", len(p.Cylinders), maxCylinders)
	}

	f := &FlatObstacles{
		MaxCuboids:      maxCuboids,
		MaxCylinders:    maxCylinders,
		CuboidDims:      make([]float32, maxCuboids*3),
		CuboidCenters:   make([]float32, maxCuboids*3),
		CuboidQuats:     make([]float32, maxCuboids*4),
		CylinderRadii:   make([]float32, maxCylinders),
		CylinderHeights: make([]float32, maxCylinders),
		CylinderCenters: make([]float32, maxCylinders*3),
		CylinderQuats:   make([]float32, maxCylinders*4),
	}

	for i, c := range p.Cuboids {
		putVec(f.CuboidDims[i*3:], c.Dims)
		putVec(f.CuboidCenters[i*3:], c.Center)
		putQuat(f.CuboidQuats[i*4:], c.Quat)
	}
	for i, c := range p.Cylinders {
		f.CylinderRadii[i] = float32(c.Radius)
		f.CylinderHeights[i] = float32(c.Height)
		putVec(f.CylinderCenters[i*3:], c.Center)
		putQuat(f.CylinderQuats[i*4:], c.Quat)
	}
	return f, nil
}

func putVec(dst []float32, v r3.Vec) {
	dst[0] = float32(v.X)
	dst[1] = float32(v.Y)
	dst[2] = float32(v.Z)
}

func putQuat(dst []float32, q quat.Number) {
	dst[0] = float32(q.Real)
	dst[1] = float32(q.Imag)
	dst[2] = float32(q.Jmag)
	dst[3] = float32(q.Kmag)
}
