package muzerotrain

import (
	"errors"
	"fmt"
	"math"

	muzero "github.com/pikaju/muzero-g"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
)

// A stateTransformer is a gradient transformer whose
// accumulators can be snapshotted and restored, so a
// resumed run continues the exact update trajectory of
// the run that produced the checkpoint.
type stateTransformer interface {
	anysgd.Transformer
	State() *muzero.OptimizerState
	Restore(state *muzero.OptimizerState) error
}

func newTransformer(cfg *muzero.Config, params []*anydiff.Var) (stateTransformer, error) {
	switch cfg.Optimizer {
	case muzero.OptimizerSGD:
		return NewSGD(params, cfg.Momentum, cfg.WeightDecay), nil
	case muzero.OptimizerAdam:
		return NewAdam(params, cfg.WeightDecay), nil
	}
	return nil, fmt.Errorf("unsupported optimizer: %q", cfg.Optimizer)
}

// SGD is a momentum SGD gradient transformer with L2
// weight decay.
//
// Unlike the stock anysgd transformers, its accumulators
// can be exported for checkpointing.
type SGD struct {
	Momentum    float64
	WeightDecay float64

	params   []*anydiff.Var
	velocity []anyvec.Vector
}

// NewSGD creates an SGD transformer for the parameters.
func NewSGD(params []*anydiff.Var, momentum, weightDecay float64) *SGD {
	return &SGD{
		Momentum:    momentum,
		WeightDecay: weightDecay,
		params:      params,
		velocity:    zeroAccumulators(params),
	}
}

// Transform applies weight decay and momentum.
//
// The returned gradient is only valid until the next
// call to Transform.
func (s *SGD) Transform(grad anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for i, p := range s.params {
		g, ok := grad[p]
		if !ok {
			continue
		}
		c := g.Creator()
		update := g.Copy()
		if s.WeightDecay != 0 {
			decay := p.Vector.Copy()
			decay.Scale(c.MakeNumeric(s.WeightDecay))
			update.Add(decay)
		}
		s.velocity[i].Scale(c.MakeNumeric(s.Momentum))
		s.velocity[i].Add(update)
		res[p] = s.velocity[i].Copy()
	}
	return res
}

// State deep-copies the accumulators.
func (s *SGD) State() *muzero.OptimizerState {
	return &muzero.OptimizerState{
		Optimizer: muzero.OptimizerSGD,
		Moments:   [][]anyvec.Vector{copyAccumulators(s.velocity)},
	}
}

// Restore replaces the accumulators with a snapshot's.
func (s *SGD) Restore(state *muzero.OptimizerState) error {
	if state.Optimizer != muzero.OptimizerSGD {
		return fmt.Errorf("optimizer state is for %q", state.Optimizer)
	}
	if len(state.Moments) != 1 {
		return errors.New("malformed SGD optimizer state")
	}
	velocity, err := alignedCopies(state.Moments[0], s.params)
	if err != nil {
		return err
	}
	s.velocity = velocity
	return nil
}

// Adam is a bias-corrected adaptive moment gradient
// transformer with L2 weight decay.
//
// Unlike anysgd.Adam, its accumulators can be exported
// for checkpointing.
// Bias correction tracks one step count per parameter,
// so a parameter that sits out early updates still gets
// the full first-step correction when it joins.
type Adam struct {
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64

	params []*anydiff.Var
	first  []anyvec.Vector
	second []anyvec.Vector
	steps  []int
}

// NewAdam creates an Adam transformer for the parameters
// with the standard decay rates (0.9, 0.999) and epsilon
// 1e-8.
func NewAdam(params []*anydiff.Var, weightDecay float64) *Adam {
	return &Adam{
		Beta1:       0.9,
		Beta2:       0.999,
		Epsilon:     1e-8,
		WeightDecay: weightDecay,
		params:      params,
		first:       zeroAccumulators(params),
		second:      zeroAccumulators(params),
		steps:       make([]int, len(params)),
	}
}

// Transform applies weight decay and the Adam update
// rule.
//
// The returned gradient is only valid until the next
// call to Transform.
func (a *Adam) Transform(grad anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for i, p := range a.params {
		g, ok := grad[p]
		if !ok {
			continue
		}
		a.steps[i]++
		firstCorr := 1 / (1 - math.Pow(a.Beta1, float64(a.steps[i])))
		secondCorr := 1 / (1 - math.Pow(a.Beta2, float64(a.steps[i])))
		c := g.Creator()
		update := g.Copy()
		if a.WeightDecay != 0 {
			decay := p.Vector.Copy()
			decay.Scale(c.MakeNumeric(a.WeightDecay))
			update.Add(decay)
		}

		a.first[i].Scale(c.MakeNumeric(a.Beta1))
		scaled := update.Copy()
		scaled.Scale(c.MakeNumeric(1 - a.Beta1))
		a.first[i].Add(scaled)

		a.second[i].Scale(c.MakeNumeric(a.Beta2))
		squared := update.Copy()
		squared.Mul(update)
		squared.Scale(c.MakeNumeric(1 - a.Beta2))
		a.second[i].Add(squared)

		numer := a.first[i].Copy()
		numer.Scale(c.MakeNumeric(firstCorr))
		denom := a.second[i].Copy()
		denom.Scale(c.MakeNumeric(secondCorr))
		anyvec.Pow(denom, c.MakeNumeric(0.5))
		denom.AddScalar(c.MakeNumeric(a.Epsilon))
		anyvec.Pow(denom, c.MakeNumeric(-1))
		numer.Mul(denom)
		res[p] = numer
	}
	return res
}

// State deep-copies the accumulators.
func (a *Adam) State() *muzero.OptimizerState {
	return &muzero.OptimizerState{
		Optimizer: muzero.OptimizerAdam,
		Steps:     append([]int(nil), a.steps...),
		Moments: [][]anyvec.Vector{
			copyAccumulators(a.first),
			copyAccumulators(a.second),
		},
	}
}

// Restore replaces the accumulators with a snapshot's.
func (a *Adam) Restore(state *muzero.OptimizerState) error {
	if state.Optimizer != muzero.OptimizerAdam {
		return fmt.Errorf("optimizer state is for %q", state.Optimizer)
	}
	if len(state.Moments) != 2 {
		return errors.New("malformed Adam optimizer state")
	}
	if len(state.Steps) != len(a.params) {
		return fmt.Errorf("optimizer state has %d step counts for %d parameters",
			len(state.Steps), len(a.params))
	}
	first, err := alignedCopies(state.Moments[0], a.params)
	if err != nil {
		return err
	}
	second, err := alignedCopies(state.Moments[1], a.params)
	if err != nil {
		return err
	}
	a.first = first
	a.second = second
	a.steps = append([]int(nil), state.Steps...)
	return nil
}

func zeroAccumulators(params []*anydiff.Var) []anyvec.Vector {
	res := make([]anyvec.Vector, len(params))
	for i, p := range params {
		res[i] = p.Vector.Creator().MakeVector(p.Vector.Len())
	}
	return res
}

func copyAccumulators(vecs []anyvec.Vector) []anyvec.Vector {
	res := make([]anyvec.Vector, len(vecs))
	for i, v := range vecs {
		res[i] = v.Copy()
	}
	return res
}

func alignedCopies(vecs []anyvec.Vector, params []*anydiff.Var) ([]anyvec.Vector, error) {
	if len(vecs) != len(params) {
		return nil, fmt.Errorf("optimizer state has %d moment vectors for %d parameters",
			len(vecs), len(params))
	}
	res := make([]anyvec.Vector, len(vecs))
	for i, v := range vecs {
		if v.Len() != params[i].Vector.Len() {
			return nil, fmt.Errorf("moment vector %d: size mismatch", i)
		}
		res[i] = v.Copy()
	}
	return res, nil
}
