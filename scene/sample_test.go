package scene

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestSamplePointCloudExactCount checks the fixed-shape guarantee for mixed,
// single-primitive, and empty scenes.
func TestSamplePointCloudExactCount(t *testing.T) {
	rng := rand.New(rand.NewSource(21))
	cuboids := []Cuboid{
		{Dims: r3.Vec{X: 0.2, Y: 0.3, Z: 0.4}, Center: r3.Vec{X: 1}, Quat: IdentityQuat()},
		{Dims: r3.Vec{X: 0.1, Y: 0.1, Z: 0.1}, Center: r3.Vec{Y: 1}, Quat: IdentityQuat()},
	}
	cylinders := []Cylinder{
		{Radius: 0.1, Height: 0.5, Center: r3.Vec{Z: 1}, Quat: IdentityQuat()},
	}

	for _, n := range []int{1, 7, 100, 4096} {
		if got := len(SamplePointCloud(cuboids, cylinders, n, rng)); got != n {
			t.Fatalf("mixed scene: asked for %d points, got %d", n, got)
		}
	}
	if got := len(SamplePointCloud(cuboids, nil, 50, rng)); got != 50 {
		t.Fatalf("cuboid-only scene: got %d points, want 50", got)
	}
}

// TestSamplePointCloudEmptyScene checks that an obstacle-free scene yields
// all-zero points rather than fewer rows.
func TestSamplePointCloudEmptyScene(t *testing.T) {
	rng := rand.New(rand.NewSource(22))
	pts := SamplePointCloud(nil, nil, 16, rng)
	if len(pts) != 16 {
		t.Fatalf("expected 16 rows, got %d", len(pts))
	}
	for i, p := range pts {
		if p != (r3.Vec{}) {
			t.Fatalf("row %d not zero: %+v", i, p)
		}
	}
}

// TestCuboidPointsOnSurface samples an axis-aligned cuboid and checks every
// point sits on a face.
func TestCuboidPointsOnSurface(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	c := Cuboid{
		Dims:   r3.Vec{X: 0.4, Y: 0.6, Z: 0.8},
		Center: r3.Vec{X: 1, Y: 2, Z: 3},
		Quat:   IdentityQuat(),
	}
	const eps = 1e-9
	for i, p := range SamplePointCloud([]Cuboid{c}, nil, 500, rng) {
		local := r3.Sub(p, c.Center)
		ax, ay, az := math.Abs(local.X), math.Abs(local.Y), math.Abs(local.Z)
		if ax > c.Dims.X/2+eps || ay > c.Dims.Y/2+eps || az > c.Dims.Z/2+eps {
			t.Fatalf("point %d outside the box: %+v", i, local)
		}
		onFace := math.Abs(ax-c.Dims.X/2) < eps ||
			math.Abs(ay-c.Dims.Y/2) < eps ||
			math.Abs(az-c.Dims.Z/2) < eps
		if !onFace {
			t.Fatalf("point %d is inside the box, not on a face: %+v", i, local)
		}
	}
}

// TestCylinderPointsOnSurface samples an axis-aligned cylinder and checks
// every point is on the wall or a cap.
func TestCylinderPointsOnSurface(t *testing.T) {
	rng := rand.New(rand.NewSource(24))
	c := Cylinder{Radius: 0.3, Height: 0.9, Center: r3.Vec{Y: -1}, Quat: IdentityQuat()}
	const eps = 1e-9
	for i, p := range SamplePointCloud(nil, []Cylinder{c}, 500, rng) {
		local := r3.Sub(p, c.Center)
		rad := math.Hypot(local.X, local.Y)
		onWall := math.Abs(rad-c.Radius) < eps && math.Abs(local.Z) <= c.Height/2+eps
		onCap := math.Abs(math.Abs(local.Z)-c.Height/2) < eps && rad <= c.Radius+eps
		if !onWall && !onCap {
			t.Fatalf("point %d not on the cylinder surface: %+v (r=%v)", i, local, rad)
		}
	}
}

// TestSampleRotatedCuboid rotates a flat cuboid a quarter turn about z and
// checks the samples land on the rotated geometry.
func TestSampleRotatedCuboid(t *testing.T) {
	rng := rand.New(rand.NewSource(25))
	// Quarter turn about z: (w, x, y, z) = (cos 45, 0, 0, sin 45).
	halfRoot2 := math.Sqrt(2) / 2
	c := Cuboid{
		Dims: r3.Vec{X: 2, Y: 0.2, Z: 0.2},
		Quat: Quaternion(halfRoot2, 0, 0, halfRoot2),
	}
	for i, p := range SamplePointCloud([]Cuboid{c}, nil, 200, rng) {
		// The long axis now lies along y.
		if math.Abs(p.X) > 0.1+1e-9 {
			t.Fatalf("point %d extends along x after rotation: %+v", i, p)
		}
		if math.Abs(p.Y) > 1+1e-9 {
			t.Fatalf("point %d outside the rotated extent: %+v", i, p)
		}
	}
}

// TestAllocateByAreaProportions checks the deterministic budget split.
func TestAllocateByAreaProportions(t *testing.T) {
	counts := allocateByArea([]float64{3, 1}, 100)
	if counts[0] != 75 || counts[1] != 25 {
		t.Fatalf("unexpected allocation: %v", counts)
	}
	counts = allocateByArea([]float64{1, 1, 1}, 2)
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != 2 {
		t.Fatalf("allocation does not sum to the budget: %v", counts)
	}
}
