package datasets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Noofbiz/motionset/archive"
)

// Split identifies one of the named dataset splits of an archive tree.
type Split string

const (
	SplitTrain       Split = "train"
	SplitValState    Split = "val_state"
	SplitVal         Split = "val"
	SplitMiniTrain   Split = "mini_train"
	SplitValPretrain Split = "val_pretrain"
	SplitTest        Split = "test"
	SplitDagger      Split = "dagger"
)

// allSplits lists the splits in reporting order.
var allSplits = []Split{
	SplitTrain, SplitValState, SplitVal, SplitMiniTrain,
	SplitValPretrain, SplitTest, SplitDagger,
}

// Splits returns every split name in reporting order.
func Splits() []Split {
	return append([]Split(nil), allSplits...)
}

// ParseSplit resolves a split name from the command line or a config file.
func ParseSplit(s string) (Split, error) {
	for _, split := range allSplits {
		if string(split) == s {
			return split, nil
		}
	}
	return "", fmt.Errorf("unknown split %q (valid: train, val_state, val, mini_train, val_pretrain, test, dagger)", s)
}

// File returns the archive path backing the split under the data root.
// Several splits share a file: val_state reads the val archive with
// per-state access, and dagger replays the train archive per-trajectory.
func (s Split) File(root string) string {
	switch s {
	case SplitTrain, SplitDagger:
		return filepath.Join(root, "train", "train.db")
	case SplitValState, SplitVal:
		return filepath.Join(root, "val", "val.db")
	case SplitMiniTrain:
		return filepath.Join(root, "val", "mini_train.db")
	case SplitValPretrain:
		return filepath.Join(root, "val", "val_pretrain.db")
	case SplitTest:
		return filepath.Join(root, "test", "test.db")
	}
	return ""
}

// Stage selects which loaders Setup prepares.
type Stage string

const (
	StageFit    Stage = "fit"
	StageTest   Stage = "test"
	StageDagger Stage = "dagger"
)

// ChecksumPolicy selects how VerifyChecksums treats a mismatch between the
// current split archives and a recorded manifest.
type ChecksumPolicy string

const (
	// ChecksumWarn logs mismatches and carries on.
	ChecksumWarn ChecksumPolicy = "warn"
	// ChecksumStrict fails on the first mismatch.
	ChecksumStrict ChecksumPolicy = "strict"
)

// ErrChecksumMismatch is wrapped by VerifyChecksums under the strict policy
// when a split archive's content hash differs from the manifest.
var ErrChecksumMismatch = errors.New("archive checksum mismatch")

// DataModule wires archives, datasets, and loaders into named splits for a
// full run. Splits that read the same archive file share one open handle,
// and splits whose file is absent become valid empty datasets.
type DataModule struct {
	cfg Config
	log *zap.Logger

	archives map[string]*archive.Archive
	loaders  map[Split]*Loader
}

// Option configures a DataModule.
type Option func(*DataModule)

// WithLogger routes the module's progress and warning logs to log. Without
// it the module is silent.
func WithLogger(log *zap.Logger) Option {
	return func(m *DataModule) { m.log = log }
}

// NewDataModule validates cfg and returns a module with no loaders; call
// Setup with a stage to open archives and build them.
func NewDataModule(cfg Config, opts ...Option) (*DataModule, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &DataModule{
		cfg:      cfg,
		log:      zap.NewNop(),
		archives: make(map[string]*archive.Archive),
		loaders:  make(map[Split]*Loader),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Setup builds the loaders for a stage. Fit prepares the train loader plus
// the validation family, test prepares the held-out state loader, and
// dagger prepares the expert replay loader over the training archive.
func (m *DataModule) Setup(stage Stage) error {
	switch stage {
	case StageFit:
		return m.setupFit()
	case StageTest:
		// The held-out archive is read with the training collection key and
		// per-state access. Evaluation never noises, so the train flag
		// stays off.
		return m.buildLoader(splitSpec{SplitTest, m.cfg.TrainKey, false, false, 0, m.cfg.ValBatchSize, false})
	case StageDagger:
		return m.buildLoader(splitSpec{SplitDagger, m.cfg.ValKey, true, true, 0, m.cfg.ValBatchSize, true})
	}
	return fmt.Errorf("unknown stage %q", stage)
}

// splitSpec describes how one split's loader is built.
type splitSpec struct {
	split      Split
	key        string
	trajectory bool
	train      bool
	scale      float64
	batchSize  int
	shuffle    bool
}

func (m *DataModule) setupFit() error {
	fit := []splitSpec{
		{SplitTrain, m.cfg.TrainKey, false, true, m.cfg.RandomScale, m.cfg.TrainBatchSize, true},
		// Per-state validation matches the structure of training batches,
		// so it uses the training batch size.
		{SplitValState, m.cfg.ValKey, false, false, 0, m.cfg.TrainBatchSize, false},
		{SplitVal, m.cfg.ValKey, true, false, 0, m.cfg.ValBatchSize, false},
		{SplitMiniTrain, m.cfg.ValKey, true, false, 0, m.cfg.ValBatchSize, false},
	}
	if !m.cfg.IgnorePretrainData {
		fit = append(fit, splitSpec{SplitValPretrain, m.cfg.ValKey, true, false, 0, m.cfg.ValBatchSize, false})
	}
	for _, s := range fit {
		if err := m.buildLoader(s); err != nil {
			return err
		}
	}
	return nil
}

func (m *DataModule) buildLoader(s splitSpec) error {
	col, err := m.openSplit(s.split, s.key)
	if err != nil {
		return err
	}
	p := Params{
		RobotPoints:       m.cfg.NumRobotPoints,
		ObstaclePoints:    m.cfg.NumObstaclePoints,
		TargetPoints:      m.cfg.NumTargetPoints,
		ActionChunkLength: m.cfg.ActionChunkLength,
		PrismaticJoint:    m.cfg.PrismaticJoint,
		RandomScale:       s.scale,
		Train:             s.train,
		Seed:              m.cfg.Seed,
	}
	var src ExampleSource
	if s.trajectory {
		src, err = NewTrajectoryDataset(col, string(s.split), p)
	} else {
		src, err = NewStateDataset(col, string(s.split), p)
	}
	if err != nil {
		return err
	}
	m.loaders[s.split] = NewLoader(src, s.batchSize, s.shuffle, m.cfg.NumWorkers, m.seedFor(s.split))
	m.log.Info("split ready",
		zap.String("split", string(s.split)),
		zap.Int("examples", src.Len()),
		zap.Int("batches", m.loaders[s.split].Batches()))
	return nil
}

// openSplit returns the collection backing a split, or nil when the
// split's archive file does not exist. Archives are memoized by path so
// splits sharing a file share a handle.
func (m *DataModule) openSplit(split Split, key string) (*archive.Collection, error) {
	path := split.File(m.cfg.DataDir)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			m.log.Info("split archive missing, dataset will be empty",
				zap.String("split", string(split)), zap.String("path", path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s archive: %w", split, err)
	}
	a, ok := m.archives[path]
	if !ok {
		var err error
		a, err = archive.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open %s archive: %w", split, err)
		}
		m.archives[path] = a
	}
	col, err := a.Collection(key)
	if err != nil {
		return nil, fmt.Errorf("failed to open collection %q in %s archive: %w", key, split, err)
	}
	return col, nil
}

// seedFor gives each split's loader its own shuffle stream.
func (m *DataModule) seedFor(split Split) int64 {
	for i, s := range allSplits {
		if s == split {
			return m.cfg.Seed + int64(i)
		}
	}
	return m.cfg.Seed
}

// Loader returns the batch loader for split, or nil if Setup has not built
// that split yet.
func (m *DataModule) Loader(split Split) *Loader {
	return m.loaders[split]
}

// ValLoaders returns the validation loaders in reporting order: val_state,
// val, mini_train, and val_pretrain unless pretrain data is ignored.
func (m *DataModule) ValLoaders() []*Loader {
	order := []Split{SplitValState, SplitVal, SplitMiniTrain}
	if !m.cfg.IgnorePretrainData {
		order = append(order, SplitValPretrain)
	}
	out := make([]*Loader, 0, len(order))
	for _, split := range order {
		if l, ok := m.loaders[split]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Checksums hashes the split archives that feed training and validation:
// train, val, and mini_train. Splits whose file is missing are skipped
// without error.
func (m *DataModule) Checksums() (map[string]string, error) {
	out := make(map[string]string)
	for _, split := range []Split{SplitTrain, SplitVal, SplitMiniTrain} {
		path := split.File(m.cfg.DataDir)
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		sum, err := archive.FileChecksum(path)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum %s archive: %w", split, err)
		}
		out[string(split)] = sum
	}
	return out, nil
}

// VerifyChecksums compares the current split archives against a manifest
// recorded by an earlier run. Splits absent from either side are ignored.
// Under the warn policy mismatches are logged and nil is returned; under
// the strict policy the first mismatch fails with ErrChecksumMismatch.
func (m *DataModule) VerifyChecksums(manifest map[string]string) error {
	current, err := m.Checksums()
	if err != nil {
		return err
	}
	for split, want := range manifest {
		got, ok := current[split]
		if !ok || got == want {
			continue
		}
		if m.cfg.ChecksumPolicy == ChecksumStrict {
			return fmt.Errorf("split %s: expected %s, got %s: %w", split, want, got, ErrChecksumMismatch)
		}
		m.log.Warn("split archive changed since manifest was recorded",
			zap.String("split", split),
			zap.String("expected", want),
			zap.String("actual", got))
	}
	return nil
}

// Close releases every archive the module opened. Loaders built by Setup
// must not be used afterwards.
func (m *DataModule) Close() error {
	var firstErr error
	for path, a := range m.archives {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close archive %s: %w", path, err)
		}
		delete(m.archives, path)
	}
	return firstErr
}
