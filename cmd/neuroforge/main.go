// Command neuroforge trains, evaluates and runs feedforward networks.
//
// Subcommands:
//
//	generate  build a fresh network from a topology config
//	train     train against a CSV dataset, checkpointing as it goes
//	evaluate  compute metrics for a checkpoint over a dataset split
//	predict   emit raw per-row outputs for a checkpoint
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"neuroforge/internal/checkpoint"
	"neuroforge/internal/config"
	"neuroforge/internal/dataset"
	"neuroforge/internal/eval"
	"neuroforge/internal/nn"
	"neuroforge/internal/optimizer"
	"neuroforge/internal/trainer"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "generate":
		err = runGenerate(args)
	case "train":
		err = runTrain(args)
	case "evaluate":
		err = runEvaluate(args)
	case "predict":
		err = runPredict(args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: neuroforge <generate|train|evaluate|predict> [flags]")
}

func runGenerate(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/train.yaml", "Path to YAML config")
	out := fs.String("out", "model.ckpt", "Output network file")
	seed := fs.Int64("seed", 0, "PRNG seed override")
	fs.Parse(args)

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyOverrides(config.Overrides{Seed: *seed})

	topo, err := cfg.NNTopology()
	if err != nil {
		return err
	}
	net, err := nn.Generate(topo, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		return err
	}
	rule, err := optimizer.New(cfg.Optimizer, cfg.LearningRate)
	if err != nil {
		return err
	}
	if err := checkpoint.Save(*out, checkpoint.FromNetwork(net, 0, cfg.Seed, rule.State())); err != nil {
		return err
	}
	log.Printf("generated network layers=%d path=%s seed=%d", len(net.Layers()), *out, cfg.Seed)
	return nil
}

func runTrain(args []string) error {
	fs := flag.NewFlagSet("train", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/train.yaml", "Path to YAML config")
	dataPath := fs.String("data", "", "Path to CSV dataset")
	ckptPath := fs.String("checkpoint", "model.ckpt", "Checkpoint file")
	epochs := fs.Int("epochs", 0, "Number of epochs")
	batchSize := fs.Int("batch-size", 0, "Batch size")
	workers := fs.Int("workers", 0, "Number of training workers")
	seed := fs.Int64("seed", 0, "PRNG seed")
	lr := fs.Float64("lr", 0, "Learning rate")
	opt := fs.String("optimizer", "", "Optimizer rule (sgd|momentum|adam)")
	progress := fs.Bool("progress", true, "Show a progress bar")
	fs.Parse(args)

	if *dataPath == "" {
		return fmt.Errorf("missing -data")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyOverrides(config.Overrides{
		LearningRate: *lr,
		Epochs:       *epochs,
		BatchSize:    *batchSize,
		Seed:         *seed,
		Workers:      *workers,
		Optimizer:    *opt,
	})

	topo, err := cfg.NNTopology()
	if err != nil {
		return err
	}
	ds, err := dataset.LoadFile(*dataPath, cfg.LabelColumns)
	if err != nil {
		return err
	}
	splits, err := ds.Split(cfg.Seed, cfg.ValidationSplit, cfg.TestSplit)
	if err != nil {
		return err
	}
	log.Printf("dataset=%s rows=%d train=%d validation=%d test=%d",
		*dataPath, ds.Rows(), len(splits.Train), len(splits.Validation), len(splits.Test))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tr := trainer.New(trainer.RunConfig{
		Dataset:         ds,
		Splits:          splits,
		Topology:        topo,
		CheckpointPath:  *ckptPath,
		LearningRate:    cfg.LearningRate,
		Epochs:          cfg.Epochs,
		BatchSize:       cfg.BatchSize,
		Workers:         cfg.Workers,
		Seed:            cfg.Seed,
		Optimizer:       cfg.Optimizer,
		CheckpointEvery: cfg.CheckpointEvery,
		Tolerance:       cfg.Tolerance,
		ShowProgress:    *progress,
	})
	if err := tr.Run(ctx); err != nil {
		return err
	}
	log.Printf("training state=%s checkpoint=%s", tr.State(), *ckptPath)
	return nil
}

func runEvaluate(args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/train.yaml", "Path to YAML config")
	dataPath := fs.String("data", "", "Path to CSV dataset")
	ckptPath := fs.String("checkpoint", "model.ckpt", "Checkpoint file")
	split := fs.String("split", "test", "Split to evaluate (train|validation|test|all)")
	fs.Parse(args)

	if *dataPath == "" {
		return fmt.Errorf("missing -data")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ds, err := dataset.LoadFile(*dataPath, cfg.LabelColumns)
	if err != nil {
		return err
	}
	rows, err := selectSplit(ds, cfg, *split)
	if err != nil {
		return err
	}
	net, epoch, err := eval.LoadNetwork(*ckptPath)
	if err != nil {
		return err
	}
	m, err := eval.EvaluateNetwork(net, ds, rows, cfg.Tolerance)
	if err != nil {
		return err
	}
	log.Printf("checkpoint=%s epoch=%d split=%s rows=%d loss=%.4f accuracy=%.2f argmax_accuracy=%.2f",
		*ckptPath, epoch, *split, m.Rows, m.Loss, m.Accuracy, m.ArgmaxAccuracy)
	return nil
}

func runPredict(args []string) error {
	fs := flag.NewFlagSet("predict", flag.ExitOnError)
	cfgPath := fs.String("config", "configs/train.yaml", "Path to YAML config")
	dataPath := fs.String("data", "", "Path to CSV dataset")
	ckptPath := fs.String("checkpoint", "model.ckpt", "Checkpoint file")
	fs.Parse(args)

	if *dataPath == "" {
		return fmt.Errorf("missing -data")
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ds, err := dataset.LoadFile(*dataPath, cfg.LabelColumns)
	if err != nil {
		return err
	}
	net, _, err := eval.LoadNetwork(*ckptPath)
	if err != nil {
		return err
	}
	rows := make([]int, ds.Rows())
	for i := range rows {
		rows[i] = i
	}
	preds, err := eval.PredictNetwork(net, ds, rows)
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	if err := w.Write(ds.LabelNames); err != nil {
		return err
	}
	rec := make([]string, net.OutputSize())
	for _, pred := range preds {
		for i, v := range pred {
			rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func selectSplit(ds *dataset.Dataset, cfg *config.Config, name string) ([]int, error) {
	if name == "all" {
		rows := make([]int, ds.Rows())
		for i := range rows {
			rows[i] = i
		}
		return rows, nil
	}
	splits, err := ds.Split(cfg.Seed, cfg.ValidationSplit, cfg.TestSplit)
	if err != nil {
		return nil, err
	}
	switch name {
	case "train":
		return splits.Train, nil
	case "validation":
		return splits.Validation, nil
	case "test":
		return splits.Test, nil
	default:
		return nil, fmt.Errorf("unknown split %q", name)
	}
}
