package scene

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// surface is anything we can draw uniform surface points from.
type surface interface {
	SurfaceArea() float64
	samplePoint(rng *rand.Rand) r3.Vec
}

// SamplePointCloud draws exactly n surface points from the mixed primitive
// population, splitting the budget across primitives in proportion to
// surface area. With no obstacles (or only degenerate ones) the result is n
// zero points, keeping downstream tensor shapes fixed.
func SamplePointCloud(cuboids []Cuboid, cylinders []Cylinder, n int, rng *rand.Rand) []r3.Vec {
	if n <= 0 {
		return nil
	}

	surfaces := make([]surface, 0, len(cuboids)+len(cylinders))
	for _, c := range cuboids {
		if c.SurfaceArea() > 0 {
			surfaces = append(surfaces, c)
		}
	}
	for _, c := range cylinders {
		if c.SurfaceArea() > 0 {
			surfaces = append(surfaces, c)
		}
	}

	pts := make([]r3.Vec, 0, n)
	if len(surfaces) == 0 {
		return append(pts, make([]r3.Vec, n)...)
	}

	areas := make([]float64, len(surfaces))
	for i, s := range surfaces {
		areas[i] = s.SurfaceArea()
	}
	for i, count := range allocateByArea(areas, n) {
		for range count {
			pts = append(pts, surfaces[i].samplePoint(rng))
		}
	}
	return pts
}

// samplePoint draws a uniform point on the cuboid surface: pick a face pair
// by area, a side at random, then a uniform point on that face.
func (c Cuboid) samplePoint(rng *rand.Rand) r3.Vec {
	wx := c.Dims.Y * c.Dims.Z
	wy := c.Dims.X * c.Dims.Z
	wz := c.Dims.X * c.Dims.Y

	sign := 1.0
	if rng.Intn(2) == 0 {
		sign = -1.0
	}
	var local r3.Vec
	switch u := rng.Float64() * (wx + wy + wz); {
	case u < wx:
		local = r3.Vec{
			X: sign * c.Dims.X / 2,
			Y: (rng.Float64() - 0.5) * c.Dims.Y,
			Z: (rng.Float64() - 0.5) * c.Dims.Z,
		}
	case u < wx+wy:
		local = r3.Vec{
			X: (rng.Float64() - 0.5) * c.Dims.X,
			Y: sign * c.Dims.Y / 2,
			Z: (rng.Float64() - 0.5) * c.Dims.Z,
		}
	default:
		local = r3.Vec{
			X: (rng.Float64() - 0.5) * c.Dims.X,
			Y: (rng.Float64() - 0.5) * c.Dims.Y,
			Z: sign * c.Dims.Z / 2,
		}
	}
	return r3.Add(c.Center, rotate(c.Quat, local))
}

// samplePoint draws a uniform point on the cylinder surface, choosing
// between the lateral wall and the caps by area.
func (c Cylinder) samplePoint(rng *rand.Rand) r3.Vec {
	lateral := 2 * math.Pi * c.Radius * c.Height
	caps := 2 * math.Pi * c.Radius * c.Radius
	theta := rng.Float64() * 2 * math.Pi

	var local r3.Vec
	if rng.Float64()*(lateral+caps) < lateral {
		local = r3.Vec{
			X: c.Radius * math.Cos(theta),
			Y: c.Radius * math.Sin(theta),
			Z: (rng.Float64() - 0.5) * c.Height,
		}
	} else {
		sign := 1.0
		if rng.Intn(2) == 0 {
			sign = -1.0
		}
		rad := c.Radius * math.Sqrt(rng.Float64())
		local = r3.Vec{
			X: rad * math.Cos(theta),
			Y: rad * math.Sin(theta),
			Z: sign * c.Height / 2,
		}
	}
	return r3.Add(c.Center, rotate(c.Quat, local))
}

func rotate(q quat.Number, v r3.Vec) r3.Vec {
	return r3.Rotation(q).Rotate(v)
}

// allocateByArea divides n points across the areas proportionally, assigning
// whole shares first and the remainder by largest fractional part, so the
// counts always sum to exactly n.
func allocateByArea(areas []float64, n int) []int {
	counts := make([]int, len(areas))
	if n <= 0 || len(areas) == 0 {
		return counts
	}
	var total float64
	for _, a := range areas {
		total += a
	}
	if total <= 0 {
		return counts
	}

	type remainder struct {
		idx  int
		frac float64
	}
	rems := make([]remainder, len(areas))
	assigned := 0
	for i, a := range areas {
		exact := float64(n) * a / total
		whole := int(math.Floor(exact))
		counts[i] = whole
		assigned += whole
		rems[i] = remainder{idx: i, frac: exact - float64(whole)}
	}
	sort.Slice(rems, func(a, b int) bool {
		if rems[a].frac != rems[b].frac {
			return rems[a].frac > rems[b].frac
		}
		return rems[a].idx < rems[b].idx
	})
	for i := 0; assigned < n; i++ {
		counts[rems[i%len(rems)].idx]++
		assigned++
	}
	return counts
}
