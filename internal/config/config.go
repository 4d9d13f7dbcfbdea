// Package config loads the YAML training configuration and applies CLI
// overrides.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"neuroforge/internal/nn"
)

// LayerConfig is one topology entry: a layer width and its activation tag.
type LayerConfig struct {
	Width      int    `yaml:"width"`
	Activation string `yaml:"activation"`
}

// Config captures the runtime knobs for a training run. Unknown YAML keys
// are ignored; missing topology or epochs is fatal at load time.
type Config struct {
	LearningRate    float64       `yaml:"learning_rate"`
	Epochs          int           `yaml:"epochs"`
	BatchSize       int           `yaml:"batch_size"`
	Seed            int64         `yaml:"seed"`
	Topology        []LayerConfig `yaml:"topology"`
	ValidationSplit float64       `yaml:"validation_split"`
	TestSplit       float64       `yaml:"test_split"`
	Workers         int           `yaml:"workers"`
	Optimizer       string        `yaml:"optimizer"`
	CheckpointEvery int           `yaml:"checkpoint_every"`
	Tolerance       float64       `yaml:"tolerance"`
	LabelColumns    int           `yaml:"label_columns"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	LearningRate float64
	Epochs       int
	BatchSize    int
	Seed         int64
	Workers      int
	Optimizer    string
}

// Load reads and validates a Config from YAML.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.LearningRate > 0 {
		c.LearningRate = o.LearningRate
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.Workers > 0 {
		c.Workers = o.Workers
	}
	if o.Optimizer != "" {
		c.Optimizer = o.Optimizer
	}
}

// Validate verifies the config is runnable and fills defaults.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if len(c.Topology) == 0 {
		return errors.New("topology is required")
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.ValidationSplit < 0 || c.TestSplit < 0 || c.ValidationSplit+c.TestSplit >= 1 {
		return fmt.Errorf("invalid split fractions validation=%g test=%g", c.ValidationSplit, c.TestSplit)
	}
	if c.LearningRate <= 0 {
		c.LearningRate = 0.01
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Optimizer == "" {
		c.Optimizer = "sgd"
	}
	if c.CheckpointEvery <= 0 {
		c.CheckpointEvery = 10
	}
	if c.Tolerance <= 0 {
		c.Tolerance = 0.1
	}
	if c.LabelColumns <= 0 {
		c.LabelColumns = 1
	}
	return nil
}

// NNTopology converts the configured topology to its nn form, resolving
// activation tags.
func (c *Config) NNTopology() (nn.Topology, error) {
	t := nn.Topology{Layers: make([]nn.LayerSpec, 0, len(c.Topology))}
	for i, l := range c.Topology {
		act := nn.Identity
		if l.Activation != "" {
			parsed, err := nn.ParseActivation(l.Activation)
			if err != nil {
				return nn.Topology{}, fmt.Errorf("topology layer %d: %w", i, err)
			}
			act = parsed
		}
		t.Layers = append(t.Layers, nn.LayerSpec{Width: l.Width, Activation: act})
	}
	if err := t.Validate(); err != nil {
		return nn.Topology{}, err
	}
	return t, nil
}
