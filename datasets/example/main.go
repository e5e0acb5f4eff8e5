package main

// Example program that walks the data layer end to end: it opens the split
// archives under a data directory, builds the fit-stage loaders, pulls one
// training batch, and prints the tensor shapes a model would consume.
//
// Usage:
//   go run ./example -data ../../data
//
// Generate a data directory first with cmd/trajgen if you do not have one.

import (
	"flag"
	"fmt"
	"log"
	"maps"
	"slices"

	"github.com/Noofbiz/motionset/datasets"
)

func main() {
	dataDir := flag.String("data", "data", "root directory of the split archive tree")
	flag.Parse()

	cfg := datasets.DefaultConfig()
	cfg.DataDir = *dataDir
	// Small budgets keep the demo fast on any machine.
	cfg.NumRobotPoints = 512
	cfg.NumObstaclePoints = 1024
	cfg.NumTargetPoints = 64
	cfg.TrainBatchSize = 4

	m, err := datasets.NewDataModule(cfg)
	if err != nil {
		log.Fatalf("failed to build data module: %v", err)
	}
	defer m.Close()

	if err := m.Setup(datasets.StageFit); err != nil {
		log.Fatalf("failed to set up fit stage: %v", err)
	}

	train := m.Loader(datasets.SplitTrain)
	fmt.Printf("train split: %d examples in %d batches\n", train.Len(), train.Batches())
	for _, val := range m.ValLoaders() {
		fmt.Printf("%s split: %d examples in %d batches\n", val.Source().Name(), val.Len(), val.Batches())
	}

	if train.Len() == 0 {
		fmt.Println("train split is empty; generate one with cmd/trajgen")
		return
	}

	batch, err := train.Next()
	if err != nil {
		log.Fatalf("failed to load a batch: %v", err)
	}

	fmt.Printf("\none training batch: %d examples, %d points each\n", batch.Size, batch.Points)
	ts := batch.ToTensors()
	for _, name := range slices.Sorted(maps.Keys(ts)) {
		fmt.Printf("  %s: %v\n", name, ts[name].Shape().Dimensions)
	}
}
