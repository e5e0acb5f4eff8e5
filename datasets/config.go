package datasets

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config holds every knob the data layer needs for a run. LoadConfig fills
// it from a YAML file over the defaults, so a config file only needs to
// name what it changes.
type Config struct {
	// DataDir is the root of the split archive tree.
	DataDir string `yaml:"data_dir"`

	// TrainKey and ValKey name the trajectory collections read from the
	// training and validation archives.
	TrainKey string `yaml:"train_trajectory_key"`
	ValKey   string `yaml:"val_trajectory_key"`

	// Per-example point budgets for the point cloud segments.
	NumRobotPoints    int `yaml:"num_robot_points"`
	NumObstaclePoints int `yaml:"num_obstacle_points"`
	NumTargetPoints   int `yaml:"num_target_points"`

	// ActionChunkLength is the supervision window length for state
	// examples.
	ActionChunkLength int `yaml:"action_chunk_length"`

	// PrismaticJoint is the fixed gripper opening in meters.
	PrismaticJoint float64 `yaml:"prismatic_joint"`

	// RandomScale is the standard deviation of training noise in radians.
	RandomScale float64 `yaml:"random_scale"`

	TrainBatchSize int `yaml:"train_batch_size"`
	ValBatchSize   int `yaml:"val_batch_size"`

	// NumWorkers bounds concurrent example assembly per loader.
	NumWorkers int `yaml:"num_workers"`

	// Seed drives sampling topology, scene streams, noise, and shuffling.
	Seed int64 `yaml:"seed"`

	// ChecksumPolicy is either "warn" or "strict".
	ChecksumPolicy ChecksumPolicy `yaml:"checksum_policy"`

	// IgnorePretrainData drops the val_pretrain split from the fit stage.
	IgnorePretrainData bool `yaml:"ignore_pretrain_data"`
}

// DefaultConfig returns the point budgets and batch shapes of the
// reference training recipe.
func DefaultConfig() Config {
	return Config{
		TrainKey:          "global_solutions",
		ValKey:            "global_solutions",
		NumRobotPoints:    2048,
		NumObstaclePoints: 4096,
		NumTargetPoints:   128,
		ActionChunkLength: 8,
		PrismaticJoint:    0.025,
		RandomScale:       0.015,
		TrainBatchSize:    32,
		ValBatchSize:      32,
		NumWorkers:        runtime.NumCPU(),
		Seed:              42,
		ChecksumPolicy:    ChecksumWarn,
	}
}

// LoadConfig reads a YAML config from path, layered over DefaultConfig.
// Unknown keys are rejected so typos fail loudly; an empty file yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for values the data layer cannot work with.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must be set")
	}
	if c.TrainKey == "" || c.ValKey == "" {
		return fmt.Errorf("train_trajectory_key and val_trajectory_key must be set")
	}
	if c.NumRobotPoints <= 0 || c.NumObstaclePoints <= 0 || c.NumTargetPoints <= 0 {
		return fmt.Errorf("point budgets must be positive: robot=%d obstacle=%d target=%d",
			c.NumRobotPoints, c.NumObstaclePoints, c.NumTargetPoints)
	}
	if c.ActionChunkLength < 0 {
		return fmt.Errorf("action_chunk_length must not be negative: %d", c.ActionChunkLength)
	}
	if c.RandomScale < 0 {
		return fmt.Errorf("random_scale must not be negative: %v", c.RandomScale)
	}
	if c.TrainBatchSize <= 0 || c.ValBatchSize <= 0 {
		return fmt.Errorf("batch sizes must be positive: train=%d val=%d", c.TrainBatchSize, c.ValBatchSize)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be positive: %d", c.NumWorkers)
	}
	switch c.ChecksumPolicy {
	case ChecksumWarn, ChecksumStrict:
	default:
		return fmt.Errorf("unknown checksum_policy %q (valid: warn, strict)", c.ChecksumPolicy)
	}
	return nil
}
