package robot

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

// TestSampleRobotBudget checks that the sampler returns exactly the
// requested number of points for any configuration.
func TestSampleRobotBudget(t *testing.T) {
	s := NewPointSampler(512, 64, 11)
	for _, q := range []Configuration{{}, {0.3, -0.5, 1.1, -2.0, 0.7, 1.9, -0.4}} {
		pts := s.SampleRobot(q, 0.025)
		if len(pts) != 512 {
			t.Fatalf("expected 512 robot points, got %d", len(pts))
		}
	}
	pts := s.SampleGripper(GripperPose(Configuration{}), 0.025)
	if len(pts) != 64 {
		t.Fatalf("expected 64 gripper points, got %d", len(pts))
	}
}

// TestSamplerTopologyFixed checks that repeated samples of the same
// configuration are identical, and that two samplers built with the same
// seed agree point for point.
func TestSamplerTopologyFixed(t *testing.T) {
	q := Configuration{0.1, -0.3, 0.5, -1.5, 0.2, 2.0, 0.9}
	a := NewPointSampler(256, 32, 7)
	b := NewPointSampler(256, 32, 7)

	first := a.SampleRobot(q, 0.025)
	second := a.SampleRobot(q, 0.025)
	other := b.SampleRobot(q, 0.025)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated sample differs at point %d: %+v vs %+v", i, first[i], second[i])
		}
		if first[i] != other[i] {
			t.Fatalf("same-seed sampler differs at point %d: %+v vs %+v", i, first[i], other[i])
		}
	}
}

// TestSampleGripperFollowsPose checks that gripper samples move rigidly with
// the pose they are given.
func TestSampleGripperFollowsPose(t *testing.T) {
	s := NewPointSampler(64, 64, 3)
	base := GripperPose(Configuration{})
	shifted := base
	shifted.Position = r3.Add(shifted.Position, r3.Vec{X: 0.5})

	a := s.SampleGripper(base, 0.025)
	b := s.SampleGripper(shifted, 0.025)
	for i := range a {
		d := r3.Sub(b[i], a[i])
		if r3.Norm(r3.Sub(d, r3.Vec{X: 0.5})) > 1e-9 {
			t.Fatalf("point %d did not translate rigidly: moved by %+v", i, d)
		}
	}
}

// TestSampleRobotFingerSpread checks that the prismatic value changes the
// finger points but leaves the arm body alone.
func TestSampleRobotFingerSpread(t *testing.T) {
	s := NewPointSampler(400, 32, 9)
	q := Configuration{}
	closed := s.SampleRobot(q, 0.0)
	open := s.SampleRobot(q, 0.04)

	moved := 0
	for i := range closed {
		if closed[i] != open[i] {
			moved++
		}
	}
	if moved == 0 {
		t.Fatalf("opening the fingers moved no points")
	}
	if moved == len(closed) {
		t.Fatalf("opening the fingers moved every point, body points should be unaffected")
	}
}

// TestSplitProportionally checks exact totals and proportional shares.
func TestSplitProportionally(t *testing.T) {
	counts := splitProportionally([]float64{1, 1, 2}, 100)
	total := 0
	for _, c := range counts {
		total += c
	}
	if total != 100 {
		t.Fatalf("counts sum to %d, want 100", total)
	}
	if counts[0] != 25 || counts[1] != 25 || counts[2] != 50 {
		t.Fatalf("unexpected allocation: %v", counts)
	}

	counts = splitProportionally([]float64{1, 1, 1}, 10)
	total = 0
	for _, c := range counts {
		total += c
	}
	if total != 10 {
		t.Fatalf("counts sum to %d, want 10", total)
	}
}
