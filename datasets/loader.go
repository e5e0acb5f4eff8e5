package datasets

import (
	"fmt"
	"io"
	"math/rand"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"golang.org/x/sync/errgroup"
)

const defaultBatchSize = 32

// Loader iterates an ExampleSource in batches. Examples within a batch are
// assembled concurrently by a bounded worker pool; order within the epoch
// is fixed at Reset time, shuffled when requested.
type Loader struct {
	src       ExampleSource
	batchSize int
	workers   int
	shuffle   bool

	rng   *rand.Rand
	order []int
	next  int
}

// NewLoader builds a loader over src. A batchSize or workers value of zero
// or less falls back to 32 and 1 respectively. When shuffle is set the
// epoch order is reshuffled on every Reset, including the implicit one
// before the first batch.
func NewLoader(src ExampleSource, batchSize int, shuffle bool, workers int, seed int64) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = 1
	}
	l := &Loader{
		src:       src,
		batchSize: batchSize,
		workers:   workers,
		shuffle:   shuffle,
		rng:       rand.New(rand.NewSource(seed)),
		order:     make([]int, src.Len()),
	}
	for i := range l.order {
		l.order[i] = i
	}
	l.Reset()
	return l
}

// Source returns the underlying example source.
func (l *Loader) Source() ExampleSource { return l.src }

// Len returns the number of examples in one epoch.
func (l *Loader) Len() int { return len(l.order) }

// Batches returns the number of batches in one epoch.
func (l *Loader) Batches() int {
	return (len(l.order) + l.batchSize - 1) / l.batchSize
}

// Reset rewinds the loader to the start of a fresh epoch, reshuffling the
// order when shuffling is enabled.
func (l *Loader) Reset() {
	l.next = 0
	if l.shuffle {
		l.rng.Shuffle(len(l.order), func(i, j int) {
			l.order[i], l.order[j] = l.order[j], l.order[i]
		})
	}
}

// Next assembles and returns the next batch. It returns io.EOF once the
// epoch is exhausted; call Reset to start another. The final batch of an
// epoch may be smaller than the configured batch size.
func (l *Loader) Next() (*Batch, error) {
	if l.next >= len(l.order) {
		return nil, io.EOF
	}
	end := min(l.next+l.batchSize, len(l.order))
	indices := l.order[l.next:end]
	l.next = end

	examples := make([]*Example, len(indices))
	var g errgroup.Group
	g.SetLimit(l.workers)
	for pos, idx := range indices {
		g.Go(func() error {
			ex, err := l.src.Example(idx)
			if err != nil {
				return err
			}
			examples[pos] = ex
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to load batch from %s: %w", l.src.Name(), err)
	}
	return MakeBatch(examples)
}

// TrainDataset adapts a Loader to the dataset contract of gomlx training
// loops: Name identifies the stream, Yield produces one batch of tensors
// and returns io.EOF at the end of an epoch, and Reset starts the next
// epoch.
type TrainDataset struct {
	loader *Loader
}

// NewTrainDataset wraps loader for use with a gomlx training loop.
func NewTrainDataset(loader *Loader) *TrainDataset {
	return &TrainDataset{loader: loader}
}

// Name returns the underlying dataset's split name.
func (d *TrainDataset) Name() string { return d.loader.src.Name() }

// Yield returns the next batch as tensors. Inputs are the point cloud, its
// segment labels, and the current configuration; the single label tensor is
// the supervision window for state batches or the padded expert trajectory
// for trajectory batches.
func (d *TrainDataset) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	batch, err := d.loader.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	ts := batch.ToTensors()
	inputs = []*tensors.Tensor{ts["point_cloud"], ts["point_cloud_labels"], ts["configuration"]}
	switch {
	case batch.HasSupervision && batch.ChunkLength > 0:
		labels = []*tensors.Tensor{ts["supervision"]}
	case batch.HasExpert && batch.ExpertSteps > 0:
		labels = []*tensors.Tensor{ts["expert"]}
	}
	return nil, inputs, labels, nil
}

// Reset rewinds the underlying loader for a new epoch.
func (d *TrainDataset) Reset() {
	d.loader.Reset()
}
