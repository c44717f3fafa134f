package muzero

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testConfig() *Config {
	return &Config{
		Optimizer:          OptimizerSGD,
		LRInit:             0.05,
		LRDecayRate:        0.1,
		LRDecaySteps:       10000,
		TrainingSteps:      1000,
		CheckpointInterval: 10,
		SupportSize:        10,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := testConfig().Validate(); err != nil {
		t.Error(err)
	}

	cases := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"optimizer", func(c *Config) { c.Optimizer = "RMSProp" }},
		{"lr_init", func(c *Config) { c.LRInit = 0 }},
		{"lr_decay_rate", func(c *Config) { c.LRDecayRate = -1 }},
		{"lr_decay_steps", func(c *Config) { c.LRDecaySteps = 0 }},
		{"momentum", func(c *Config) { c.Momentum = -0.1 }},
		{"weight_decay", func(c *Config) { c.WeightDecay = -1e-4 }},
		{"training_steps", func(c *Config) { c.TrainingSteps = 0 }},
		{"self_supervised_steps", func(c *Config) { c.SelfSupervisedSteps = -1 }},
		{"checkpoint_interval", func(c *Config) { c.CheckpointInterval = 0 }},
		{"PER_alpha", func(c *Config) { c.PER = true; c.PERAlpha = -1 }},
		{"training_delay", func(c *Config) { c.TrainingDelay = -time.Second }},
		{"ratio", func(c *Config) { c.Ratio = -0.5 }},
		{"support_size", func(c *Config) { c.SupportSize = 0 }},
	}
	for _, test := range cases {
		c := testConfig()
		test.mutate(c)
		if c.Validate() == nil {
			t.Errorf("%s: expected a validation error", test.name)
		}
	}

	// A negative alpha only matters with PER enabled.
	c := testConfig()
	c.PERAlpha = -1
	if err := c.Validate(); err != nil {
		t.Error(err)
	}
}

func TestLoadConfig(t *testing.T) {
	yaml := `optimizer: Adam
lr_init: 0.008
lr_decay_rate: 0.9
lr_decay_steps: 5000
weight_decay: 0.0001
training_steps: 20000
self_supervised_steps: 500
checkpoint_interval: 100
save_model: true
PER: true
PER_alpha: 0.7
value_loss_weight: 0.25
reconstruction_loss_weight: 2.0
consistency_loss_weight: 1.5
training_delay: 250ms
ratio: 1.5
support_size: 15
train_on_gpu: true
seed: 42
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.Optimizer != OptimizerAdam {
		t.Errorf("bad optimizer: %q", c.Optimizer)
	}
	if c.LRInit != 0.008 || c.LRDecayRate != 0.9 || c.LRDecaySteps != 5000 {
		t.Errorf("bad lr schedule: %v %v %v", c.LRInit, c.LRDecayRate, c.LRDecaySteps)
	}
	if c.WeightDecay != 0.0001 {
		t.Errorf("bad weight decay: %v", c.WeightDecay)
	}
	if c.TrainingSteps != 20000 || c.SelfSupervisedSteps != 500 {
		t.Errorf("bad step counts: %d %d", c.TrainingSteps, c.SelfSupervisedSteps)
	}
	if c.CheckpointInterval != 100 || !c.SaveModel {
		t.Errorf("bad checkpoint fields: %d %v", c.CheckpointInterval, c.SaveModel)
	}
	if !c.PER || c.PERAlpha != 0.7 {
		t.Errorf("bad replay fields: %v %v", c.PER, c.PERAlpha)
	}
	if c.ValueLossWeight != 0.25 || c.ReconstructionLossWeight != 2.0 ||
		c.ConsistencyLossWeight != 1.5 {
		t.Errorf("bad loss weights: %v %v %v", c.ValueLossWeight,
			c.ReconstructionLossWeight, c.ConsistencyLossWeight)
	}
	if c.TrainingDelay != 250*time.Millisecond {
		t.Errorf("bad training delay: %v", c.TrainingDelay)
	}
	if c.Ratio != 1.5 || c.SupportSize != 15 {
		t.Errorf("bad pacing fields: %v %d", c.Ratio, c.SupportSize)
	}
	if !c.TrainOnGPU || c.Seed != 42 {
		t.Errorf("bad device fields: %v %d", c.TrainOnGPU, c.Seed)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("optimizer: SGD\nlr_init: -3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected a validation error for a bad config")
	}
}
