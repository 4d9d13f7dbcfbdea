package config

import (
	"os"
	"path/filepath"
	"testing"

	"neuroforge/internal/nn"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "train.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
learning_rate: 0.05
epochs: 20
batch_size: 8
seed: 7
validation_split: 0.2
test_split: 0.1
workers: 4
optimizer: adam
topology:
  - width: 4
  - width: 8
    activation: relu
  - width: 3
    activation: softmax
`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LearningRate != 0.05 || cfg.Epochs != 20 || cfg.BatchSize != 8 {
		t.Fatalf("unexpected values %+v", cfg)
	}
	if cfg.Workers != 4 || cfg.Optimizer != "adam" || cfg.Seed != 7 {
		t.Fatalf("unexpected values %+v", cfg)
	}
	// Defaults filled in for keys the file omits.
	if cfg.CheckpointEvery != 10 || cfg.Tolerance != 0.1 || cfg.LabelColumns != 1 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}

	topo, err := cfg.NNTopology()
	if err != nil {
		t.Fatalf("topology: %v", err)
	}
	if len(topo.Layers) != 3 || topo.Layers[1].Activation != nn.ReLU || topo.Layers[2].Activation != nn.Softmax {
		t.Fatalf("topology %+v", topo)
	}
}

func TestLoadIgnoresUnknownKeys(t *testing.T) {
	yaml := validYAML + "\nsome_future_knob: 12\nanother: hello\n"
	if _, err := Load(writeConfig(t, yaml)); err != nil {
		t.Fatalf("unknown keys should be ignored, got %v", err)
	}
}

func TestLoadMissingTopologyFatal(t *testing.T) {
	if _, err := Load(writeConfig(t, "epochs: 5\n")); err == nil {
		t.Fatal("missing topology accepted")
	}
}

func TestLoadMissingEpochsFatal(t *testing.T) {
	yaml := "topology:\n  - width: 2\n  - width: 1\n"
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("missing epochs accepted")
	}
}

func TestLoadBadSplitFractions(t *testing.T) {
	yaml := "epochs: 5\nvalidation_split: 0.7\ntest_split: 0.5\ntopology:\n  - width: 2\n  - width: 1\n"
	if _, err := Load(writeConfig(t, yaml)); err == nil {
		t.Fatal("split fractions past 1 accepted")
	}
}

func TestApplyOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg.ApplyOverrides(Overrides{Epochs: 99, Workers: 2, Optimizer: "sgd"})
	if cfg.Epochs != 99 || cfg.Workers != 2 || cfg.Optimizer != "sgd" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	// Zero-valued overrides leave the config alone.
	cfg.ApplyOverrides(Overrides{})
	if cfg.Epochs != 99 || cfg.LearningRate != 0.05 {
		t.Fatalf("zero overrides mutated config: %+v", cfg)
	}
}

func TestNNTopologyUnknownActivation(t *testing.T) {
	yaml := "epochs: 5\ntopology:\n  - width: 2\n  - width: 1\n    activation: warp\n"
	cfg, err := Load(writeConfig(t, yaml))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := cfg.NNTopology(); err == nil {
		t.Fatal("unknown activation accepted")
	}
}
