package muzero

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// An Output bundles the predictions a model produces for
// one unroll step across a batch of n samples.
//
// Value and Reward are packed n-row matrices of
// categorical logits over a Support, Policy is an n-row
// matrix of action logits, HiddenState is an n-row
// matrix of latent rows, and Reconstruction is an n-row
// matrix of decoded observations.
type Output struct {
	Value          anydiff.Res
	Reward         anydiff.Res
	Policy         anydiff.Res
	HiddenState    anydiff.Res
	Reconstruction anydiff.Res
}

// A Model is the inference contract a trainer drives.
//
// Models must be deterministic given their parameters.
// They carry no state between calls except through the
// returned hidden states.
type Model interface {
	// InitialInference encodes a packed batch of n
	// observation rows and predicts from the resulting
	// hidden state.
	// The Reward field of the result is ignored by
	// consumers: no reward is predicted for the
	// conditioning step.
	InitialInference(obs anydiff.Res, n int) *Output

	// RecurrentInference advances n hidden-state rows
	// by one action each and predicts from the result.
	RecurrentInference(hidden anydiff.Res, actions []int, n int) *Output

	// Representation encodes a packed batch of n
	// observation rows into hidden-state rows, without
	// running the prediction heads.
	Representation(obs anydiff.Res, n int) anydiff.Res

	// Parameters returns the trainable parameters.
	// The order must be stable across calls: weight
	// snapshots and optimizer state are aligned to it.
	Parameters() []*anydiff.Var
}

// A Seeder is a Model with internal randomness that can
// be reseeded for reproducible runs.
type Seeder interface {
	Seed(seed int64)
}

// Weights is a deep snapshot of model parameters, one
// vector per parameter in Parameters() order.
type Weights []anyvec.Vector

// WeightsOf deep-copies a model's current parameters.
func WeightsOf(m Model) Weights {
	params := m.Parameters()
	res := make(Weights, len(params))
	for i, p := range params {
		res[i] = p.Vector.Copy()
	}
	return res
}

// Copy deep-copies the snapshot.
func (w Weights) Copy() Weights {
	res := make(Weights, len(w))
	for i, v := range w {
		res[i] = v.Copy()
	}
	return res
}

// Apply overwrites a model's parameters with the
// snapshot.
func (w Weights) Apply(m Model) error {
	params := m.Parameters()
	if len(params) != len(w) {
		return fmt.Errorf("model has %d parameters, snapshot has %d",
			len(params), len(w))
	}
	for i, p := range params {
		if p.Vector.Len() != w[i].Len() {
			return fmt.Errorf("parameter %d: size mismatch", i)
		}
	}
	for i, p := range params {
		p.Vector.Set(w[i])
	}
	return nil
}

// OneHotActions packs a batch of action indices into
// one-hot rows of width numActions, for models that
// condition their dynamics on discrete actions.
func OneHotActions(c anyvec.Creator, actions []int, numActions int) anyvec.Vector {
	data := make([]float64, len(actions)*numActions)
	for i, a := range actions {
		if a < 0 || a >= numActions {
			panic(fmt.Sprintf("action out of range: %d", a))
		}
		data[i*numActions+a] = 1
	}
	return c.MakeVectorData(c.MakeNumericList(data))
}
