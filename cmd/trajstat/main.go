// Command trajstat inspects a split archive tree: per-split counts and
// checksums, manifest verification, an index self-test, and point cloud
// rendering for eyeballing individual examples.
package main

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gopkg.in/yaml.v3"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/datasets"
)

const defaultDataDir = "data"

func main() {
	dataDir := flag.String("data", defaultDataDir, "root directory of the split archive tree")
	configPath := flag.String("config", "", "optional YAML config file; an explicit -data overrides its data_dir")
	collection := flag.String("collection", "", "collection key to inspect (defaults to the config's train key)")
	manifestOut := flag.String("write-manifest", "", "write the split checksum manifest to this YAML file")
	verifyPath := flag.String("verify", "", "verify split checksums against this YAML manifest")
	analyze := flag.Bool("analyze", false, "scan split collections and log summary statistics")
	selftest := flag.Bool("selftest", false, "scan every split and check that state index lookups invert")
	renderPath := flag.String("render", "", "render one example's point cloud to this PNG file")
	renderSplit := flag.String("split", "train", "split the rendered example is read from")
	sample := flag.Int("sample", 0, "state index of the example to render")
	flag.Parse()

	log := zap.Must(zap.NewProduction())
	defer log.Sync()

	cfg := datasets.DefaultConfig()
	cfg.DataDir = *dataDir
	if *configPath != "" {
		loaded, err := datasets.LoadConfig(*configPath)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
		if *dataDir != defaultDataDir {
			cfg.DataDir = *dataDir
		}
	}
	key := cfg.TrainKey
	if *collection != "" {
		key = *collection
	}

	report(log, cfg)

	if *analyze {
		analyzeSplits(log, cfg)
	}
	if *manifestOut != "" {
		if err := writeManifest(cfg, *manifestOut); err != nil {
			log.Fatal("failed to write manifest", zap.Error(err))
		}
		log.Info("manifest written", zap.String("path", *manifestOut))
	}
	if *verifyPath != "" {
		if err := verifyManifest(log, cfg, *verifyPath); err != nil {
			log.Fatal("checksum verification failed", zap.Error(err))
		}
	}
	if *selftest {
		if err := selftestSplits(log, cfg, key); err != nil {
			log.Fatal("index self-test failed", zap.Error(err))
		}
	}
	if *renderPath != "" {
		if err := renderExample(cfg, key, *renderSplit, *sample, *renderPath); err != nil {
			log.Fatal("failed to render example", zap.Error(err))
		}
		log.Info("example rendered", zap.String("path", *renderPath))
	}
}

// eachSplitArchive calls fn once per split archive file that exists,
// visiting splits that share a file only under the first name.
func eachSplitArchive(cfg datasets.Config, fn func(split datasets.Split, path string) error) error {
	seen := make(map[string]bool)
	for _, split := range datasets.Splits() {
		path := split.File(cfg.DataDir)
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := fn(split, path); err != nil {
			return err
		}
	}
	return nil
}

// report logs one line per collection in every split archive that exists.
// Splits sharing an archive file are reported once, under the first name.
func report(log *zap.Logger, cfg datasets.Config) {
	seen := make(map[string]bool)
	for _, split := range datasets.Splits() {
		path := split.File(cfg.DataDir)
		if seen[path] {
			continue
		}
		seen[path] = true
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			log.Info("split archive missing", zap.String("split", string(split)), zap.String("path", path))
			continue
		}
		if err := reportArchive(log, split, path); err != nil {
			log.Warn("failed to inspect archive", zap.String("path", path), zap.Error(err))
		}
	}
}

func reportArchive(log *zap.Logger, split datasets.Split, path string) error {
	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	sum, err := a.Checksum()
	if err != nil {
		return err
	}
	// Archives written by other tools may not carry a build id.
	buildID, err := a.Meta("build_id")
	if err != nil {
		buildID = "unknown"
	}
	names, err := a.CollectionNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		col, err := a.Collection(name)
		if err != nil {
			return err
		}
		log.Info("collection",
			zap.String("split", string(split)),
			zap.String("path", path),
			zap.String("collection", name),
			zap.Int("trajectories", col.TrajectoryCount()),
			zap.Int("states", col.StateCount()),
			zap.Int("max_length", col.MaxTrajectoryLength()),
			zap.Int("max_cuboids", col.MaxCuboids()),
			zap.Int("max_cylinders", col.MaxCylinders()),
			zap.String("checksum", sum),
			zap.String("build_id", buildID))
	}
	return nil
}

// analyzeSplits logs summary statistics for every collection of every
// split archive present. Failures are logged and the scan moves on.
func analyzeSplits(log *zap.Logger, cfg datasets.Config) {
	_ = eachSplitArchive(cfg, func(split datasets.Split, path string) error {
		if err := analyzeArchive(log, split, path); err != nil {
			log.Warn("failed to analyze archive", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

func analyzeArchive(log *zap.Logger, split datasets.Split, path string) error {
	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()

	names, err := a.CollectionNames()
	if err != nil {
		return err
	}
	for _, name := range names {
		col, err := a.Collection(name)
		if err != nil {
			return err
		}
		st, err := datasets.Summarize(col)
		if err != nil {
			return err
		}
		log.Info("collection statistics",
			zap.String("split", string(split)),
			zap.String("collection", name),
			zap.Float64("mean_length", st.MeanLength),
			zap.Int("min_length", st.MinLength),
			zap.Int("max_length", st.MaxLength),
			zap.Float64("mean_cuboids", st.MeanCuboids),
			zap.Float64("mean_cylinders", st.MeanCylinders),
			zap.String("target_box", fmt.Sprintf("[%.3f %.3f %.3f] to [%.3f %.3f %.3f]",
				st.TargetMin.X, st.TargetMin.Y, st.TargetMin.Z,
				st.TargetMax.X, st.TargetMax.Y, st.TargetMax.Z)))
	}
	return nil
}

func writeManifest(cfg datasets.Config, path string) error {
	m, err := datasets.NewDataModule(cfg)
	if err != nil {
		return err
	}
	defer m.Close()

	sums, err := m.Checksums()
	if err != nil {
		return err
	}
	raw, err := yaml.Marshal(sums)
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

func verifyManifest(log *zap.Logger, cfg datasets.Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read manifest: %w", err)
	}
	var manifest map[string]string
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}

	m, err := datasets.NewDataModule(cfg, datasets.WithLogger(log))
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.VerifyChecksums(manifest); err != nil {
		return err
	}
	log.Info("checksums verified",
		zap.String("manifest", path),
		zap.String("policy", string(cfg.ChecksumPolicy)))
	return nil
}

// selftestSplits checks that state indexing inverts cleanly on every split
// archive present: each global index locates to a (trajectory, step) pair
// that maps back to itself, and the per-trajectory lengths sum to the state
// count.
func selftestSplits(log *zap.Logger, cfg datasets.Config, key string) error {
	return eachSplitArchive(cfg, func(split datasets.Split, path string) error {
		if err := selftestArchive(log, split, path, key); err != nil {
			return fmt.Errorf("split %s: %w", split, err)
		}
		return nil
	})
}

func selftestArchive(log *zap.Logger, split datasets.Split, path, key string) error {
	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()
	col, err := a.Collection(key)
	if err != nil {
		return err
	}

	start := time.Now()
	total := 0
	for traj := range col.TrajectoryCount() {
		length, err := col.TrajectoryLength(traj)
		if err != nil {
			return err
		}
		total += length
	}
	if total != col.StateCount() {
		return fmt.Errorf("trajectory lengths sum to %d, state count is %d", total, col.StateCount())
	}
	for global := range col.StateCount() {
		traj, step, err := col.Locate(global)
		if err != nil {
			return err
		}
		back, err := col.GlobalIndex(traj, step)
		if err != nil {
			return err
		}
		if back != global {
			return fmt.Errorf("state %d locates to (%d, %d) which maps back to %d", global, traj, step, back)
		}
	}

	log.Info("indexes check out",
		zap.String("split", string(split)),
		zap.Int("states", col.StateCount()),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}

func renderExample(cfg datasets.Config, key, splitName string, index int, out string) error {
	split, err := datasets.ParseSplit(splitName)
	if err != nil {
		return err
	}
	a, err := archive.Open(split.File(cfg.DataDir))
	if err != nil {
		return err
	}
	defer a.Close()
	col, err := a.Collection(key)
	if err != nil {
		return err
	}

	ds, err := datasets.NewStateDataset(col, string(split), datasets.Params{
		RobotPoints:       cfg.NumRobotPoints,
		ObstaclePoints:    cfg.NumObstaclePoints,
		TargetPoints:      cfg.NumTargetPoints,
		ActionChunkLength: cfg.ActionChunkLength,
		PrismaticJoint:    cfg.PrismaticJoint,
		Seed:              cfg.Seed,
	})
	if err != nil {
		return err
	}
	ex, err := ds.Example(index)
	if err != nil {
		return err
	}
	return plotCloud(ex, fmt.Sprintf("%s example %d", split, index), out)
}

// plotCloud writes an XZ scatter of the example's point cloud, one scatter
// per segment: robot blue, obstacles grey, target red.
func plotCloud(ex *datasets.Example, title, out string) error {
	classes := []struct {
		name  string
		label int32
		color color.RGBA
	}{
		{"robot", 0, color.RGBA{R: 20, G: 80, B: 200, A: 220}},
		{"obstacles", 1, color.RGBA{R: 120, G: 120, B: 120, A: 180}},
		{"target", 2, color.RGBA{R: 200, G: 30, B: 30, A: 220}},
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "z (m)"
	p.Add(plotter.NewGrid())

	for _, cl := range classes {
		var xys plotter.XYs
		for i, label := range ex.PointCloudLabels {
			if label != cl.label {
				continue
			}
			xys = append(xys, plotter.XY{X: float64(ex.PointCloud[i*3]), Y: float64(ex.PointCloud[i*3+2])})
		}
		if len(xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = cl.color
		sc.GlyphStyle.Radius = vg.Points(1.2)
		p.Add(sc)
		p.Legend.Add(cl.name, sc)
	}

	if dir := filepath.Dir(out); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, out); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
