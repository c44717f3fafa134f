package muzero

import "github.com/unixpickle/anyvec"

// Keys of the fields a trainer reads from and publishes
// to shared storage.
const (
	KeyWeights        = "weights"
	KeyOptimizerState = "optimizer_state"
	KeyTrainingStep   = "training_step"
	KeyLR             = "lr"

	KeyTotalLoss          = "total_loss"
	KeyValueLoss          = "value_loss"
	KeyRewardLoss         = "reward_loss"
	KeyPolicyLoss         = "policy_loss"
	KeyReconstructionLoss = "reconstruction_loss"
	KeyConsistencyLoss    = "consistency_loss"
	KeyRewardPredError    = "reward_prediction_error"
	KeyValuePredError     = "value_prediction_error"

	KeyNumPlayedGames = "num_played_games"
	KeyNumPlayedSteps = "num_played_steps"
	KeyTerminate      = "terminate"
)

// An OptimizerState is a deep snapshot of an optimizer's
// accumulators, published alongside weights so a resumed
// run continues the same update trajectory.
type OptimizerState struct {
	// Optimizer names the update rule that produced the
	// snapshot, OptimizerSGD or OptimizerAdam.
	Optimizer string

	// Steps counts the updates each parameter has
	// received, used by Adam's bias correction. Nil for
	// optimizers that do not track it.
	Steps []int

	// Moments holds one slice of per-parameter vectors
	// per accumulator: velocity for SGD, first and
	// second moments for Adam.
	Moments [][]anyvec.Vector
}

// Copy deep-copies the state.
func (o *OptimizerState) Copy() *OptimizerState {
	res := &OptimizerState{
		Optimizer: o.Optimizer,
		Steps:     append([]int(nil), o.Steps...),
		Moments:   make([][]anyvec.Vector, len(o.Moments)),
	}
	for i, ms := range o.Moments {
		res.Moments[i] = make([]anyvec.Vector, len(ms))
		for j, m := range ms {
			res.Moments[i][j] = m.Copy()
		}
	}
	return res
}

// A Checkpoint is the portion of the shared training
// state a trainer consumes at startup and republishes on
// its checkpoint cadence.
type Checkpoint struct {
	// Weights restores model parameters when non-nil.
	Weights Weights

	// OptimizerState restores optimizer accumulators
	// when non-nil.
	OptimizerState *OptimizerState

	// TrainingStep resumes the step counter.
	TrainingStep int
}

// A ReplayBuffer serves sampled training data.
//
// Implementations own their sampling and eviction policy
// and must serialize concurrent callers internally.
type ReplayBuffer interface {
	// GetBatch samples one batch along with the indices
	// of the chosen samples.
	// It may block until data is available; unbounded
	// latency here is normal, not an error.
	GetBatch() ([]SampleIndex, *Batch, error)

	// UpdatePriorities records fresh priorities, one
	// row of UnrollLen() values per index.
	// Callers do not wait for the update to be applied:
	// sampling from stale priorities is tolerated.
	UpdatePriorities(priorities [][]float64, indices []SampleIndex)
}

// A SharedStorage is the registry through which
// concurrent workers exchange the current checkpoint,
// progress counters and metrics.
//
// Implementations must serialize concurrent writers so
// each SetInfo mapping applies atomically: readers see
// either none or all of one call's values.
type SharedStorage interface {
	// GetInfo reads one named field.
	// A missing key is an error; stores are expected to
	// be seeded with every field their readers poll.
	GetInfo(key string) (interface{}, error)

	// SetInfo applies one mapping of named fields,
	// last write wins.
	SetInfo(values map[string]interface{}) error

	// SaveCheckpoint persists the current checkpoint
	// durably.
	// Callers trigger it without awaiting the result.
	SaveCheckpoint() error
}
