// Command trajgen builds synthetic split archives: cluttered obstacle
// scenes paired with jittered joint-space trajectories. It exists so the
// data layer can be exercised end to end without a planner run.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/Noofbiz/motionset/archive"
	"github.com/Noofbiz/motionset/datasets"
	"github.com/Noofbiz/motionset/robot"
	"github.com/Noofbiz/motionset/scene"
)

// genParams collects the generator knobs shared by every split.
type genParams struct {
	collection   string
	trajectories int
	minSteps     int
	maxSteps     int
	maxCuboids   int
	maxCylinders int
	jitter       float64
	seed         int64
	buildID      string
}

func main() {
	dataDir := flag.String("data", "data", "root directory of the split archive tree to generate")
	splitsFlag := flag.String("splits", "train,val,mini_train", "comma-separated split names to generate")
	collection := flag.String("collection", "global_solutions", "collection key the trajectories are written under")
	trajectories := flag.Int("trajectories", 64, "trajectories to generate per split")
	minSteps := flag.Int("min-steps", 30, "minimum trajectory length in steps")
	maxSteps := flag.Int("max-steps", 60, "maximum trajectory length in steps")
	maxCuboids := flag.Int("max-cuboids", 4, "most cuboid obstacles per scene (every scene gets at least one)")
	maxCylinders := flag.Int("max-cylinders", 2, "most cylinder obstacles per scene")
	jitter := flag.Float64("jitter", 0.03, "stddev in radians of the jitter applied to interior trajectory steps")
	seed := flag.Int64("seed", 1, "base random seed; each split derives its own stream")
	force := flag.Bool("force", false, "overwrite split archives that already exist")
	flag.Parse()

	log := zap.Must(zap.NewProduction())
	defer log.Sync()

	splits, err := parseSplits(*splitsFlag)
	if err != nil {
		log.Fatal("bad -splits", zap.Error(err))
	}
	g := genParams{
		collection:   *collection,
		trajectories: *trajectories,
		minSteps:     *minSteps,
		maxSteps:     *maxSteps,
		maxCuboids:   *maxCuboids,
		maxCylinders: *maxCylinders,
		jitter:       *jitter,
		seed:         *seed,
		buildID:      uuid.NewString(),
	}
	if err := g.validate(); err != nil {
		log.Fatal("bad generator parameters", zap.Error(err))
	}

	written := make(map[string]datasets.Split)
	for _, split := range splits {
		path := split.File(*dataDir)
		if prev, ok := written[path]; ok {
			log.Info("split shares an archive that was already generated",
				zap.String("split", string(split)), zap.String("with", string(prev)))
			continue
		}
		if err := generateSplit(log, split, path, *force, g); err != nil {
			log.Fatal("failed to generate split", zap.String("split", string(split)), zap.Error(err))
		}
		written[path] = split
	}
	log.Info("generation complete", zap.String("build_id", g.buildID), zap.Int("archives", len(written)))
}

func (g genParams) validate() error {
	if g.collection == "" {
		return fmt.Errorf("collection key must not be empty")
	}
	if g.trajectories <= 0 {
		return fmt.Errorf("trajectories must be positive: %d", g.trajectories)
	}
	if g.minSteps < 2 || g.maxSteps < g.minSteps {
		return fmt.Errorf("step range must satisfy 2 <= min <= max: [%d, %d]", g.minSteps, g.maxSteps)
	}
	if g.maxCuboids < 1 {
		return fmt.Errorf("max-cuboids must be at least 1: %d", g.maxCuboids)
	}
	if g.maxCylinders < 0 {
		return fmt.Errorf("max-cylinders must not be negative: %d", g.maxCylinders)
	}
	if g.jitter < 0 {
		return fmt.Errorf("jitter must not be negative: %v", g.jitter)
	}
	return nil
}

func parseSplits(arg string) ([]datasets.Split, error) {
	var out []datasets.Split
	for _, name := range strings.Split(arg, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		split, err := datasets.ParseSplit(name)
		if err != nil {
			return nil, err
		}
		out = append(out, split)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no split names given")
	}
	return out, nil
}

// splitSeed gives every split its own deterministic stream so train and val
// content differ under the same base seed.
func splitSeed(base int64, split datasets.Split) int64 {
	for i, s := range datasets.Splits() {
		if s == split {
			return base + int64(i)
		}
	}
	return base
}

func generateSplit(log *zap.Logger, split datasets.Split, path string, force bool, g genParams) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create archive directory: %w", err)
	}
	if force {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove stale archive: %w", err)
		}
	}

	w, err := archive.Create(path)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(splitSeed(g.seed, split)))
	states := 0
	for range g.trajectories {
		p, traj := randomProblem(rng, g)
		if err := w.Append(g.collection, p, traj); err != nil {
			w.Close()
			return err
		}
		states += len(traj)
	}

	meta := [...][2]string{
		{"build_id", g.buildID},
		{"created_at", time.Now().UTC().Format(time.RFC3339)},
		{"generator", "trajgen"},
		{"seed", strconv.FormatInt(g.seed, 10)},
		{"split", string(split)},
		{"trajectories", strconv.Itoa(g.trajectories)},
	}
	for _, kv := range meta {
		if err := w.SetMeta(kv[0], kv[1]); err != nil {
			w.Close()
			return err
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive %s: %w", path, err)
	}

	log.Info("split generated",
		zap.String("split", string(split)),
		zap.String("path", path),
		zap.Int("trajectories", g.trajectories),
		zap.Int("states", states))
	return nil
}

// randomProblem draws one cluttered scene and a jittered joint-space path
// from a random start to a random target.
func randomProblem(rng *rand.Rand, g genParams) (*scene.Problem, []robot.Configuration) {
	start := randomConfiguration(rng)
	target := randomConfiguration(rng)

	steps := g.minSteps + rng.Intn(g.maxSteps-g.minSteps+1)
	traj := make([]robot.Configuration, steps)
	for i := range steps {
		q := robot.Interpolate(start, target, float64(i)/float64(steps-1))
		// Endpoints stay exact so the first state is the start configuration
		// and the last one reaches the target.
		if i > 0 && i < steps-1 {
			for j := range q {
				q[j] += rng.NormFloat64() * g.jitter
			}
			q = robot.Clamp(q)
		}
		traj[i] = q
	}

	p := &scene.Problem{Target: target}
	for range 1 + rng.Intn(g.maxCuboids) {
		p.Cuboids = append(p.Cuboids, scene.Cuboid{
			Dims: r3.Vec{
				X: uniform(rng, 0.05, 0.35),
				Y: uniform(rng, 0.05, 0.35),
				Z: uniform(rng, 0.05, 0.35),
			},
			Center: randomCenter(rng),
			Quat:   randomQuat(rng),
		})
	}
	for range rng.Intn(g.maxCylinders + 1) {
		p.Cylinders = append(p.Cylinders, scene.Cylinder{
			Radius: uniform(rng, 0.02, 0.12),
			Height: uniform(rng, 0.08, 0.5),
			Center: randomCenter(rng),
			Quat:   randomQuat(rng),
		})
	}
	return p, traj
}

func randomConfiguration(rng *rand.Rand) robot.Configuration {
	var q robot.Configuration
	for j, lim := range robot.Limits() {
		q[j] = uniform(rng, lim[0], lim[1])
	}
	return q
}

// randomCenter places obstacles in the arm's reachable shell, keeping the
// clutter off the base column.
func randomCenter(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{
			X: uniform(rng, -0.75, 0.75),
			Y: uniform(rng, -0.75, 0.75),
			Z: uniform(rng, 0.05, 0.9),
		}
		if math.Hypot(v.X, v.Y) >= 0.2 {
			return v
		}
	}
}

func randomQuat(rng *rand.Rand) quat.Number {
	q := quat.Number{Real: rng.NormFloat64(), Imag: rng.NormFloat64(), Jmag: rng.NormFloat64(), Kmag: rng.NormFloat64()}
	return quat.Scale(1/quat.Abs(q), q)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}
