package muzero

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
	"github.com/unixpickle/essentials"
)

// Names accepted by Config.Optimizer.
const (
	OptimizerSGD  = "SGD"
	OptimizerAdam = "Adam"
)

// Config holds the hyper-parameters of a training run.
//
// A Config is read-only once validated and may be shared
// by reference across goroutines.
type Config struct {
	// Seed seeds model randomness at trainer
	// construction for models that support reseeding.
	Seed int64 `mapstructure:"seed"`

	// TrainOnGPU records whether the model's vector
	// creator is expected to be GPU-backed.
	// It is advisory: a false value only produces a
	// warning, since device placement belongs to the
	// model's creator.
	TrainOnGPU bool `mapstructure:"train_on_gpu"`

	// Optimizer selects the update rule, either
	// OptimizerSGD or OptimizerAdam.
	Optimizer string `mapstructure:"optimizer"`

	// LRInit, LRDecayRate and LRDecaySteps define the
	// exponential learning-rate schedule
	//
	//     lr(step) = LRInit * LRDecayRate^(step/LRDecaySteps)
	LRInit       float64 `mapstructure:"lr_init"`
	LRDecayRate  float64 `mapstructure:"lr_decay_rate"`
	LRDecaySteps float64 `mapstructure:"lr_decay_steps"`

	// Momentum is the SGD momentum coefficient.
	// Adam ignores it.
	Momentum float64 `mapstructure:"momentum"`

	// WeightDecay is the L2 penalty coefficient applied
	// by both optimizers.
	WeightDecay float64 `mapstructure:"weight_decay"`

	// TrainingSteps is the optimizer step budget.
	TrainingSteps int `mapstructure:"training_steps"`

	// SelfSupervisedSteps is the length of the initial
	// phase during which only the reconstruction and
	// consistency terms drive the gradient.
	SelfSupervisedSteps int `mapstructure:"self_supervised_steps"`

	// CheckpointInterval is the cadence, in optimizer
	// steps, of weight publication to shared storage.
	CheckpointInterval int `mapstructure:"checkpoint_interval"`

	// SaveModel additionally triggers a durable
	// checkpoint save at every publication.
	SaveModel bool `mapstructure:"save_model"`

	// PER enables prioritized experience replay:
	// fresh priorities are pushed back to the replay
	// buffer and importance-sampling weights are
	// applied to the loss.
	PER bool `mapstructure:"PER"`

	// PERAlpha is the priority exponent.
	PERAlpha float64 `mapstructure:"PER_alpha"`

	// Loss term weights. The reward and policy terms
	// are always weighted 1.
	ValueLossWeight          float64 `mapstructure:"value_loss_weight"`
	ReconstructionLossWeight float64 `mapstructure:"reconstruction_loss_weight"`
	ConsistencyLossWeight    float64 `mapstructure:"consistency_loss_weight"`

	// TrainingDelay is an optional fixed delay applied
	// after every optimizer step.
	TrainingDelay time.Duration `mapstructure:"training_delay"`

	// Ratio is the target ratio of optimizer steps to
	// observed environment steps.
	// Zero disables ratio throttling.
	Ratio float64 `mapstructure:"ratio"`

	// SupportSize is the half-width of the categorical
	// value and reward support, giving 2*SupportSize+1
	// bins.
	SupportSize int `mapstructure:"support_size"`
}

// Validate checks the configuration and returns an error
// describing the first unusable field.
//
// Configuration errors are not recoverable: callers
// should fail outright rather than retry.
func (c *Config) Validate() error {
	if c.Optimizer != OptimizerSGD && c.Optimizer != OptimizerAdam {
		return fmt.Errorf("unsupported optimizer: %q", c.Optimizer)
	}
	if c.LRInit <= 0 {
		return errors.New("lr_init must be positive")
	}
	if c.LRDecayRate <= 0 {
		return errors.New("lr_decay_rate must be positive")
	}
	if c.LRDecaySteps <= 0 {
		return errors.New("lr_decay_steps must be positive")
	}
	if c.Momentum < 0 {
		return errors.New("momentum must not be negative")
	}
	if c.WeightDecay < 0 {
		return errors.New("weight_decay must not be negative")
	}
	if c.TrainingSteps < 1 {
		return errors.New("training_steps must be at least 1")
	}
	if c.SelfSupervisedSteps < 0 {
		return errors.New("self_supervised_steps must not be negative")
	}
	if c.CheckpointInterval < 1 {
		return errors.New("checkpoint_interval must be at least 1")
	}
	if c.PER && c.PERAlpha < 0 {
		return errors.New("PER_alpha must not be negative")
	}
	if c.TrainingDelay < 0 {
		return errors.New("training_delay must not be negative")
	}
	if c.Ratio < 0 {
		return errors.New("ratio must not be negative")
	}
	if c.SupportSize < 1 {
		return errors.New("support_size must be at least 1")
	}
	return nil
}

// LoadConfig reads and validates a YAML configuration
// file.
func LoadConfig(path string) (conf *Config, err error) {
	defer essentials.AddCtxTo("load config "+path, &err)
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
