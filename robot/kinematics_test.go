package robot

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

func approxVec(t *testing.T, got, want r3.Vec, tol float64, context string) {
	t.Helper()
	if math.Abs(got.X-want.X) > tol || math.Abs(got.Y-want.Y) > tol || math.Abs(got.Z-want.Z) > tol {
		t.Fatalf("%s: got %+v, want %+v", context, got, want)
	}
}

// TestLinkPosesZeroConfiguration checks the chain against the known flange
// placement at the all-zero configuration.
func TestLinkPosesZeroConfiguration(t *testing.T) {
	poses := LinkPoses(Configuration{})

	approxVec(t, poses[0].Position, r3.Vec{}, 1e-12, "base position")
	approxVec(t, poses[1].Position, r3.Vec{Z: 0.333}, 1e-9, "joint 1 position")
	approxVec(t, poses[3].Position, r3.Vec{Z: 0.649}, 1e-9, "joint 3 position")
	approxVec(t, poses[NumLinks-1].Position, r3.Vec{X: 0.088, Z: 0.926}, 1e-9, "flange position")
}

// TestGripperPoseZeroConfiguration checks that the grasp point sits the
// fingertip depth beyond the flange along its axis.
func TestGripperPoseZeroConfiguration(t *testing.T) {
	pose := GripperPose(Configuration{})
	// At zero configuration the flange axis points straight down.
	approxVec(t, pose.Position, r3.Vec{X: 0.088, Z: 0.926 - graspDepth}, 1e-9, "grasp position")
}

// TestRotationsOrthonormal checks that every link rotation is a proper
// rotation matrix for random configurations.
func TestRotationsOrthonormal(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for range 50 {
		q := Clamp(randomConfiguration(rng, 1))
		for li, pose := range LinkPoses(q) {
			r := pose.Rotation
			for i := range 3 {
				for j := range 3 {
					var dot float64
					for k := range 3 {
						dot += r[k][i] * r[k][j]
					}
					want := 0.0
					if i == j {
						want = 1.0
					}
					if math.Abs(dot-want) > 1e-9 {
						t.Fatalf("link %d: columns %d,%d dot = %v, want %v", li, i, j, dot, want)
					}
				}
			}
			det := r[0][0]*(r[1][1]*r[2][2]-r[1][2]*r[2][1]) -
				r[0][1]*(r[1][0]*r[2][2]-r[1][2]*r[2][0]) +
				r[0][2]*(r[1][0]*r[2][1]-r[1][1]*r[2][0])
			if math.Abs(det-1) > 1e-9 {
				t.Fatalf("link %d: determinant %v, want 1", li, det)
			}
		}
	}
}

// TestGripperPoseMovesWithJoints checks that distinct configurations give
// distinct grasp poses.
func TestGripperPoseMovesWithJoints(t *testing.T) {
	a := GripperPose(Configuration{})
	q := Configuration{}
	q[0] = 1.0
	b := GripperPose(q)
	if r3.Norm(r3.Sub(a.Position, b.Position)) < 1e-6 {
		t.Fatalf("rotating the base joint did not move the grasp point: %+v vs %+v", a.Position, b.Position)
	}
	// Base rotation must not change the grasp height.
	if math.Abs(a.Position.Z-b.Position.Z) > 1e-9 {
		t.Fatalf("base rotation changed grasp height: %v vs %v", a.Position.Z, b.Position.Z)
	}
}

// TestPoseTransformComposes checks Transform against a hand-built pose.
func TestPoseTransformComposes(t *testing.T) {
	// Quarter turn about z plus a unit x offset.
	p := Pose{
		Position: r3.Vec{X: 1},
		Rotation: [3][3]float64{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	}
	got := p.Transform(r3.Vec{X: 1})
	approxVec(t, got, r3.Vec{X: 1, Y: 1}, 1e-12, "quarter turn")
}
