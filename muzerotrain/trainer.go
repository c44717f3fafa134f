package muzerotrain

import (
	"errors"
	"fmt"
	"math"
	"time"

	channerics "github.com/niceyeti/channerics/channels"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"

	muzero "github.com/pikaju/muzero-g"
)

// Default polling intervals for Trainer.
const (
	DefaultGatePoll     = 100 * time.Millisecond
	DefaultThrottlePoll = 500 * time.Millisecond
)

// A StepResult reports one optimizer step.
type StepResult struct {
	// Step is the step counter after the update.
	Step int

	// LR is the learning rate the update used.
	LR float64

	// Loss diagnostics, detached from the graph.
	// Per-term values are batch means of per-sample sums
	// over unroll steps.
	TotalLoss          float64
	ValueLoss          float64
	RewardLoss         float64
	PolicyLoss         float64
	ReconstructionLoss float64
	ConsistencyLoss    float64

	// ValueErrors and RewardErrors hold the batch mean of
	// the respective loss term at each unroll step past
	// the first.
	ValueErrors  []float64
	RewardErrors []float64

	// Priorities holds one fresh replay priority per
	// sample and unroll step.
	Priorities [][]float64
}

// A Trainer drives the training half of a MuZero run: it
// samples batches from a replay buffer, applies optimizer
// steps, and publishes weights and progress to shared
// storage while pacing itself against the self-play
// workers feeding the buffer.
//
// A Trainer is single-threaded; Run and UpdateWeights must
// not be called concurrently.
type Trainer struct {
	// Logger, if non-nil, receives progress events.
	Logger Logger

	// GatePoll is the interval at which Run polls shared
	// storage for the first self-play game before
	// training starts.
	// Zero means DefaultGatePoll.
	GatePoll time.Duration

	// ThrottlePoll is the interval at which Run re-checks
	// the played-step counter while the train/self-play
	// ratio is above its target.
	// Zero means DefaultThrottlePoll.
	ThrottlePoll time.Duration

	cfg      *muzero.Config
	model    muzero.Model
	creator  anyvec.Creator
	trans    stateTransformer
	schedule Schedule
	unroller *Unroller
	step     int
}

// New creates a Trainer for a model, restoring weights,
// optimizer state and the step counter from ckpt.
//
// Nil checkpoint fields leave the model and optimizer as
// they are. A snapshot that does not match the model's
// parameters is an error.
func New(cfg *muzero.Config, model muzero.Model, ckpt *muzero.Checkpoint) (t *Trainer, err error) {
	defer essentials.AddCtxTo("create trainer", &err)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params := model.Parameters()
	if len(params) == 0 {
		return nil, errors.New("model has no parameters")
	}
	if s, ok := model.(muzero.Seeder); ok {
		s.Seed(cfg.Seed)
	}
	step := 0
	if ckpt != nil {
		if ckpt.TrainingStep < 0 {
			return nil, errors.New("checkpoint step is negative")
		}
		step = ckpt.TrainingStep
		if ckpt.Weights != nil {
			if err := ckpt.Weights.Apply(model); err != nil {
				return nil, err
			}
		}
	}
	trans, err := newTransformer(cfg, params)
	if err != nil {
		return nil, err
	}
	if ckpt != nil && ckpt.OptimizerState != nil {
		if err := trans.Restore(ckpt.OptimizerState); err != nil {
			return nil, err
		}
	}
	return &Trainer{
		cfg:     cfg,
		model:   model,
		creator: params[0].Vector.Creator(),
		trans:   trans,
		schedule: Schedule{
			Init:       cfg.LRInit,
			DecayRate:  cfg.LRDecayRate,
			DecaySteps: cfg.LRDecaySteps,
		},
		unroller: &Unroller{
			Model:                model,
			Support:              muzero.Support{Size: cfg.SupportSize},
			ValueWeight:          cfg.ValueLossWeight,
			ReconstructionWeight: cfg.ReconstructionLossWeight,
			ConsistencyWeight:    cfg.ConsistencyLossWeight,
			PERAlpha:             cfg.PERAlpha,
		},
		step: step,
	}, nil
}

// TrainingStep returns the number of optimizer steps taken
// so far, including steps restored from the checkpoint.
func (t *Trainer) TrainingStep() int {
	return t.step
}

// Run trains until the step budget is exhausted, the
// storage terminate flag is raised, or done is closed.
//
// It waits for the first self-play game before training,
// publishes weights and optimizer state to storage every
// CheckpointInterval steps and metrics every step, and
// paces itself by the configured delay and train/self-play
// ratio. Buffer and storage failures end the run.
func (t *Trainer) Run(buffer muzero.ReplayBuffer, storage muzero.SharedStorage, done <-chan struct{}) (err error) {
	defer essentials.AddCtxTo("run trainer", &err)
	if !t.cfg.TrainOnGPU {
		t.logEvent("model creator is not GPU-backed, training may be slow")
	}
	if err := t.waitForData(storage, done); err != nil {
		return err
	}
	for t.step < t.cfg.TrainingSteps {
		select {
		case <-done:
			return nil
		default:
		}
		if term, err := t.terminated(storage); err != nil {
			return err
		} else if term {
			return nil
		}

		indices, batch, err := buffer.GetBatch()
		if err != nil {
			return err
		}
		res, err := t.UpdateWeights(batch, t.step < t.cfg.SelfSupervisedSteps)
		if err != nil {
			return err
		}
		if t.Logger != nil {
			t.Logger.LogStep(res)
		}
		if t.cfg.PER {
			go buffer.UpdatePriorities(res.Priorities, indices)
		}

		if t.step%t.cfg.CheckpointInterval == 0 {
			if err := t.publishCheckpoint(storage); err != nil {
				return err
			}
		}
		if err := storage.SetInfo(telemetry(res)); err != nil {
			return err
		}

		if t.cfg.TrainingDelay > 0 {
			select {
			case <-time.After(t.cfg.TrainingDelay):
			case <-done:
			}
		}
		if t.cfg.Ratio > 0 {
			if err := t.throttle(storage, done); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateWeights applies one optimizer step for a batch and
// advances the step counter by exactly one.
//
// If selfSupervised is set, only the reconstruction and
// consistency terms drive the gradient.
func (t *Trainer) UpdateWeights(batch *muzero.Batch, selfSupervised bool) (res *StepResult, err error) {
	defer essentials.AddCtxTo("update weights", &err)
	lr := t.schedule.LR(t.step)
	unrolled, err := t.unroller.Run(batch, selfSupervised)
	if err != nil {
		return nil, err
	}

	// Parameters the loss never reaches get no update at
	// all, not even weight decay.
	lossVars := unrolled.Loss.Vars()
	var gradVars []*anydiff.Var
	for _, p := range t.model.Parameters() {
		if lossVars.Has(p) {
			gradVars = append(gradVars, p)
		}
	}
	grad := anydiff.NewGrad(gradVars...)
	unrolled.Loss.Propagate(anyvec.Ones(t.creator, 1), grad)
	grad = t.trans.Transform(grad)
	grad.Scale(t.creator.MakeNumeric(-lr))
	grad.AddToVars()

	t.step++
	return &StepResult{
		Step:               t.step,
		LR:                 lr,
		TotalLoss:          unrolled.TotalLoss,
		ValueLoss:          unrolled.ValueLoss,
		RewardLoss:         unrolled.RewardLoss,
		PolicyLoss:         unrolled.PolicyLoss,
		ReconstructionLoss: unrolled.ReconstructionLoss,
		ConsistencyLoss:    unrolled.ConsistencyLoss,
		ValueErrors:        unrolled.ValueErrors,
		RewardErrors:       unrolled.RewardErrors,
		Priorities:         unrolled.Priorities,
	}, nil
}

// waitForData blocks until the self-play workers report at
// least one finished game.
func (t *Trainer) waitForData(storage muzero.SharedStorage, done <-chan struct{}) error {
	games, err := t.intInfo(storage, muzero.KeyNumPlayedGames)
	if err != nil {
		return err
	}
	if games >= 1 {
		return nil
	}
	t.logEvent("waiting for self-play data")
	for range channerics.NewTicker(done, t.gatePoll()) {
		games, err := t.intInfo(storage, muzero.KeyNumPlayedGames)
		if err != nil {
			return err
		}
		if games >= 1 {
			return nil
		}
	}
	return nil
}

// throttle pauses while the ratio of optimizer steps to
// observed environment steps exceeds the configured
// target, re-checking the budget and the terminate flag at
// every wake.
func (t *Trainer) throttle(storage muzero.SharedStorage, done <-chan struct{}) error {
	wait, err := t.throttled(storage)
	if err != nil || !wait {
		return err
	}
	t.logEvent("throttling to maintain train/self-play ratio")
	for range channerics.NewTicker(done, t.throttlePoll()) {
		wait, err := t.throttled(storage)
		if err != nil || !wait {
			return err
		}
	}
	return nil
}

func (t *Trainer) throttled(storage muzero.SharedStorage) (bool, error) {
	if t.step >= t.cfg.TrainingSteps {
		return false, nil
	}
	if term, err := t.terminated(storage); err != nil || term {
		return false, err
	}
	steps, err := t.intInfo(storage, muzero.KeyNumPlayedSteps)
	if err != nil {
		return false, err
	}
	return float64(t.step)/math.Max(1, float64(steps)) > t.cfg.Ratio, nil
}

// publishCheckpoint atomically publishes deep copies of
// the weights and optimizer state, then optionally
// triggers a durable save without waiting for it.
func (t *Trainer) publishCheckpoint(storage muzero.SharedStorage) error {
	err := storage.SetInfo(map[string]interface{}{
		muzero.KeyWeights:        muzero.WeightsOf(t.model),
		muzero.KeyOptimizerState: t.trans.State(),
	})
	if err != nil {
		return err
	}
	if t.Logger != nil {
		t.Logger.LogCheckpoint(t.step)
	}
	if t.cfg.SaveModel {
		go func() {
			if err := storage.SaveCheckpoint(); err != nil {
				t.logEvent("save checkpoint: " + err.Error())
			}
		}()
	}
	return nil
}

func telemetry(res *StepResult) map[string]interface{} {
	return map[string]interface{}{
		muzero.KeyTrainingStep:       res.Step,
		muzero.KeyLR:                 res.LR,
		muzero.KeyTotalLoss:          res.TotalLoss,
		muzero.KeyValueLoss:          res.ValueLoss,
		muzero.KeyRewardLoss:         res.RewardLoss,
		muzero.KeyPolicyLoss:         res.PolicyLoss,
		muzero.KeyReconstructionLoss: res.ReconstructionLoss,
		muzero.KeyConsistencyLoss:    res.ConsistencyLoss,
		muzero.KeyRewardPredError:    res.RewardErrors,
		muzero.KeyValuePredError:     res.ValueErrors,
	}
}

func (t *Trainer) terminated(storage muzero.SharedStorage) (bool, error) {
	val, err := storage.GetInfo(muzero.KeyTerminate)
	if err != nil {
		return false, err
	}
	flag, ok := val.(bool)
	if !ok {
		return false, fmt.Errorf("storage key %q holds %T, not bool",
			muzero.KeyTerminate, val)
	}
	return flag, nil
}

func (t *Trainer) intInfo(storage muzero.SharedStorage, key string) (int, error) {
	val, err := storage.GetInfo(key)
	if err != nil {
		return 0, err
	}
	switch val := val.(type) {
	case int:
		return val, nil
	case int64:
		return int(val), nil
	case float64:
		return int(val), nil
	}
	return 0, fmt.Errorf("storage key %q holds %T, not a number", key, val)
}

func (t *Trainer) logEvent(msg string) {
	if t.Logger != nil {
		t.Logger.LogEvent(msg)
	}
}

func (t *Trainer) gatePoll() time.Duration {
	if t.GatePoll != 0 {
		return t.GatePoll
	}
	return DefaultGatePoll
}

func (t *Trainer) throttlePoll() time.Duration {
	if t.ThrottlePoll != 0 {
		return t.ThrottlePoll
	}
	return DefaultThrottlePoll
}
