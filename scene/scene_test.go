package scene

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Noofbiz/motionset/robot"
)

// TestFlattenLayout checks that obstacle parameters land in the right rows
// and that padding rows stay zero.
func TestFlattenLayout(t *testing.T) {
	p := &Problem{
		Target: robot.Configuration{},
		Cuboids: []Cuboid{
			{Dims: r3.Vec{X: 1, Y: 2, Z: 3}, Center: r3.Vec{X: 4, Y: 5, Z: 6}, Quat: IdentityQuat()},
		},
		Cylinders: []Cylinder{
			{Radius: 0.5, Height: 2, Center: r3.Vec{X: -1, Y: -2, Z: -3}, Quat: IdentityQuat()},
		},
	}

	f, err := Flatten(p, 3, 2)
	if err != nil {
		t.Fatalf("Flatten failed: %v", err)
	}

	if len(f.CuboidDims) != 9 || len(f.CuboidCenters) != 9 || len(f.CuboidQuats) != 12 {
		t.Fatalf("unexpected cuboid buffer lengths: dims=%d centers=%d quats=%d",
			len(f.CuboidDims), len(f.CuboidCenters), len(f.CuboidQuats))
	}
	if len(f.CylinderRadii) != 2 || len(f.CylinderHeights) != 2 || len(f.CylinderCenters) != 6 || len(f.CylinderQuats) != 8 {
		t.Fatalf("unexpected cylinder buffer lengths: radii=%d heights=%d centers=%d quats=%d",
			len(f.CylinderRadii), len(f.CylinderHeights), len(f.CylinderCenters), len(f.CylinderQuats))
	}

	if f.CuboidDims[0] != 1 || f.CuboidDims[1] != 2 || f.CuboidDims[2] != 3 {
		t.Fatalf("cuboid dims row 0 = %v", f.CuboidDims[:3])
	}
	if f.CuboidQuats[0] != 1 || f.CuboidQuats[1] != 0 {
		t.Fatalf("cuboid quat row 0 = %v", f.CuboidQuats[:4])
	}
	for _, v := range f.CuboidDims[3:] {
		if v != 0 {
			t.Fatalf("cuboid padding not zero: %v", f.CuboidDims)
		}
	}
	for _, v := range f.CuboidQuats[4:] {
		if v != 0 {
			t.Fatalf("cuboid quat padding not zero: %v", f.CuboidQuats)
		}
	}

	if f.CylinderRadii[0] != 0.5 || f.CylinderHeights[0] != 2 {
		t.Fatalf("cylinder row 0 = r%v h%v", f.CylinderRadii[0], f.CylinderHeights[0])
	}
	if f.CylinderRadii[1] != 0 || f.CylinderHeights[1] != 0 {
		t.Fatalf("cylinder padding not zero: %v %v", f.CylinderRadii[1], f.CylinderHeights[1])
	}
}

// TestFlattenTooManyObstacles checks that exceeding the collection maxima is
// reported rather than truncated.
func TestFlattenTooManyObstacles(t *testing.T) {
	p := &Problem{
		Cuboids: []Cuboid{
			{Dims: r3.Vec{X: 1, Y: 1, Z: 1}, Quat: IdentityQuat()},
			{Dims: r3.Vec{X: 1, Y: 1, Z: 1}, Quat: IdentityQuat()},
		},
	}
	if _, err := Flatten(p, 1, 0); err == nil {
		t.Fatalf("expected error for too many cuboids, got nil")
	}
}

// TestSurfaceAreas checks the primitive area formulas against hand-computed
// values.
func TestSurfaceAreas(t *testing.T) {
	c := Cuboid{Dims: r3.Vec{X: 1, Y: 2, Z: 3}}
	if got, want := c.SurfaceArea(), 22.0; got != want {
		t.Fatalf("cuboid area = %v, want %v", got, want)
	}
	cy := Cylinder{Radius: 1, Height: 1}
	// 2*pi*1*1 + 2*pi*1*1
	if got, want := cy.SurfaceArea(), 4*3.141592653589793; got < want-1e-9 || got > want+1e-9 {
		t.Fatalf("cylinder area = %v, want %v", got, want)
	}
}
