package datasets

import (
	"errors"
	"io"
	"path/filepath"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/Noofbiz/motionset/robot"
)

// stubSource produces minimal examples whose Index records which example
// was requested, so loader tests can observe ordering.
type stubSource struct {
	n    int
	fail map[int]error
}

func (s *stubSource) Name() string { return "stub" }
func (s *stubSource) Len() int     { return s.n }

func (s *stubSource) Example(i int) (*Example, error) {
	if err := s.fail[i]; err != nil {
		return nil, err
	}
	return &Example{
		PointCloud:        []float32{float32(i), 0, 0},
		PointCloudLabels:  []int32{0},
		Configuration:     make([]float32, robot.NumJoints),
		TargetPosition:    []float32{0, 0, 0},
		TargetOrientation: []float32{1, 0, 0, 0, 1, 0, 0, 0, 1},
		Supervision:       make([]float32, 0),
		Index:             int64(i),
	}, nil
}

// drainIndices runs one full epoch and returns every example index in the
// order the loader produced it.
func drainIndices(t *testing.T, l *Loader) []int64 {
	t.Helper()
	var out []int64
	for {
		b, err := l.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("failed to load batch: %v", err)
		}
		out = append(out, b.Index...)
	}
}

func TestLoaderEpoch(t *testing.T) {
	l := NewLoader(&stubSource{n: 8}, 3, false, 2, 1)

	if got := l.Batches(); got != 3 {
		t.Errorf("Batches() = %d, want 3", got)
	}
	if got := l.Len(); got != 8 {
		t.Errorf("Len() = %d, want 8", got)
	}

	sizes := []int{3, 3, 2}
	for i, want := range sizes {
		b, err := l.Next()
		if err != nil {
			t.Fatalf("batch %d failed: %v", i, err)
		}
		if b.Size != want {
			t.Errorf("batch %d size = %d, want %d", i, b.Size, want)
		}
	}
	if _, err := l.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("exhausted loader returned %v, want io.EOF", err)
	}

	l.Reset()
	b, err := l.Next()
	if err != nil {
		t.Fatalf("batch after reset failed: %v", err)
	}
	if !slices.Equal(b.Index, []int64{0, 1, 2}) {
		t.Errorf("unshuffled order after reset = %v, want [0 1 2]", b.Index)
	}
}

func TestLoaderShuffle(t *testing.T) {
	a := NewLoader(&stubSource{n: 8}, 3, true, 1, 99)
	b := NewLoader(&stubSource{n: 8}, 3, true, 1, 99)

	orderA := drainIndices(t, a)
	orderB := drainIndices(t, b)
	if !slices.Equal(orderA, orderB) {
		t.Errorf("same seed produced different orders: %v vs %v", orderA, orderB)
	}

	sorted := slices.Clone(orderA)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []int64{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("shuffled epoch is not a permutation: %v", orderA)
	}

	a.Reset()
	second := drainIndices(t, a)
	sorted = slices.Clone(second)
	slices.Sort(sorted)
	if !slices.Equal(sorted, []int64{0, 1, 2, 3, 4, 5, 6, 7}) {
		t.Errorf("second epoch is not a permutation: %v", second)
	}
}

func TestLoaderWorkersMatchSerial(t *testing.T) {
	path := writeArchive(t, filepath.Join(t.TempDir(), "val.db"))
	col := openCollection(t, path)

	serialDS, err := NewTrajectoryDataset(col, "val", testParams())
	if err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}
	parallelDS, err := NewTrajectoryDataset(col, "val", testParams())
	if err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}

	serial := NewLoader(serialDS, 2, false, 1, 1)
	parallel := NewLoader(parallelDS, 2, false, 4, 1)

	sb, err := serial.Next()
	if err != nil {
		t.Fatalf("serial batch failed: %v", err)
	}
	pb, err := parallel.Next()
	if err != nil {
		t.Fatalf("parallel batch failed: %v", err)
	}
	if diff := cmp.Diff(sb, pb); diff != "" {
		t.Errorf("parallel batch differs from serial (-serial +parallel):\n%s", diff)
	}
}

func TestLoaderPropagatesError(t *testing.T) {
	boom := errors.New("bad example")
	l := NewLoader(&stubSource{n: 8, fail: map[int]error{5: boom}}, 4, false, 2, 1)

	if _, err := l.Next(); err != nil {
		t.Fatalf("first batch failed: %v", err)
	}
	_, err := l.Next()
	if !errors.Is(err, boom) {
		t.Errorf("second batch error = %v, want wrapped %v", err, boom)
	}
}

func TestLoaderGoroutineHygiene(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewLoader(&stubSource{n: 50}, 7, true, 8, 3)
	for {
		if _, err := l.Next(); errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			t.Fatalf("failed to load batch: %v", err)
		}
	}
}

func TestTrainDatasetYield(t *testing.T) {
	path := writeArchive(t, filepath.Join(t.TempDir(), "train.db"))
	ds, err := NewStateDataset(openCollection(t, path), "train", testParams())
	if err != nil {
		t.Fatalf("failed to build dataset: %v", err)
	}
	td := NewTrainDataset(NewLoader(ds, 3, false, 2, 1))

	if td.Name() != "train" {
		t.Errorf("Name() = %q, want %q", td.Name(), "train")
	}

	batches := 0
	for {
		_, inputs, labels, err := td.Yield()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("yield failed: %v", err)
		}
		batches++
		if len(inputs) != 3 {
			t.Fatalf("yield produced %d input tensors, want 3", len(inputs))
		}
		if len(labels) != 1 {
			t.Fatalf("yield produced %d label tensors, want 1", len(labels))
		}
		dims := labels[0].Shape().Dimensions
		if len(dims) != 3 || dims[1] != 4 || dims[2] != robot.NumJoints {
			t.Errorf("supervision label dims = %v, want [*, 4, %d]", dims, robot.NumJoints)
		}
	}
	if batches != 3 {
		t.Errorf("epoch yielded %d batches, want 3", batches)
	}

	td.Reset()
	if _, _, _, err := td.Yield(); err != nil {
		t.Fatalf("yield after reset failed: %v", err)
	}
}
