package robot

import (
	"math"
	"math/rand"
	"testing"
)

// randomConfiguration draws a configuration with each joint uniform over a
// range scale times wider than its limits, centered on the limit midpoint.
func randomConfiguration(rng *rand.Rand, scale float64) Configuration {
	var q Configuration
	for i := range q {
		lo, hi := jointLimits[i][0], jointLimits[i][1]
		mid := (lo + hi) / 2
		span := (hi - lo) * scale
		q[i] = mid + (rng.Float64()-0.5)*span
	}
	return q
}

// TestClampWithinLimits checks that clamped values always land inside the
// joint limits and that clamping twice changes nothing.
func TestClampWithinLimits(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for range 200 {
		q := randomConfiguration(rng, 3)
		c := Clamp(q)
		for i := range c {
			if c[i] < jointLimits[i][0] || c[i] > jointLimits[i][1] {
				t.Fatalf("joint %d clamped to %v, outside [%v, %v]", i, c[i], jointLimits[i][0], jointLimits[i][1])
			}
		}
		if Clamp(c) != c {
			t.Fatalf("clamp not idempotent: %v != %v", Clamp(c), c)
		}
	}
}

// TestNormalizeBounds checks that normalized clamped values stay in [-1, 1]
// and that the limit endpoints map to exactly -1 and +1.
func TestNormalizeBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for range 200 {
		n := Normalize(Clamp(randomConfiguration(rng, 3)))
		for i := range n {
			if n[i] < -1 || n[i] > 1 {
				t.Fatalf("joint %d normalized to %v, outside [-1, 1]", i, n[i])
			}
		}
	}

	var lo, hi Configuration
	for i := range lo {
		lo[i] = jointLimits[i][0]
		hi[i] = jointLimits[i][1]
	}
	nlo, nhi := Normalize(lo), Normalize(hi)
	for i := range nlo {
		if nlo[i] != -1 {
			t.Fatalf("joint %d lower limit normalized to %v, want exactly -1", i, nlo[i])
		}
		if nhi[i] != 1 {
			t.Fatalf("joint %d upper limit normalized to %v, want exactly 1", i, nhi[i])
		}
	}
}

// TestDenormalizeRoundTrip checks that Denormalize inverts Normalize for
// in-range configurations.
func TestDenormalizeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for range 200 {
		q := Clamp(randomConfiguration(rng, 1))
		back := Denormalize(Normalize(q))
		for i := range q {
			if math.Abs(back[i]-q[i]) > 1e-12 {
				t.Fatalf("joint %d round trip %v -> %v", i, q[i], back[i])
			}
		}
	}
}

// TestClampAndNormalizeOvershoot starts a configuration at the joint limits,
// pushes it 10% of the joint range past them, and checks that the result
// lands exactly on ±1.
func TestClampAndNormalizeOvershoot(t *testing.T) {
	var q Configuration
	for i := range q {
		lo, hi := jointLimits[i][0], jointLimits[i][1]
		span := hi - lo
		if i%2 == 0 {
			q[i] = hi + 0.1*span
		} else {
			q[i] = lo - 0.1*span
		}
	}
	n := ClampAndNormalize(q)
	for i := range n {
		want := 1.0
		if i%2 != 0 {
			want = -1.0
		}
		if n[i] != want {
			t.Fatalf("joint %d overshoot normalized to %v, want exactly %v", i, n[i], want)
		}
	}
}

// TestInterpolateEndpoints checks that interpolation reproduces its
// endpoints and the midpoint.
func TestInterpolateEndpoints(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	a := Clamp(randomConfiguration(rng, 1))
	b := Clamp(randomConfiguration(rng, 1))
	if got := Interpolate(a, b, 0); got != a {
		t.Fatalf("t=0 gave %v, want %v", got, a)
	}
	if got := Interpolate(a, b, 1); got != b {
		t.Fatalf("t=1 gave %v, want %v", got, b)
	}
	mid := Interpolate(a, b, 0.5)
	for i := range mid {
		want := (a[i] + b[i]) / 2
		if math.Abs(mid[i]-want) > 1e-12 {
			t.Fatalf("midpoint joint %d = %v, want %v", i, mid[i], want)
		}
	}
}

// TestFloat32s checks the float32 conversion keeps order and length.
func TestFloat32s(t *testing.T) {
	q := Configuration{0.1, -0.2, 0.3, -1.5, 0.5, 0.6, -0.7}
	f := q.Float32s()
	if len(f) != NumJoints {
		t.Fatalf("expected %d values, got %d", NumJoints, len(f))
	}
	for i := range q {
		if f[i] != float32(q[i]) {
			t.Fatalf("value %d: got %v, want %v", i, f[i], float32(q[i]))
		}
	}
}
