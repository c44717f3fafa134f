package muzerotrain

import (
	"fmt"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"

	muzero "github.com/pikaju/muzero-g"
)

// An Unroller scores a model against batches of unrolled
// trajectories, producing the composite training loss
// along with detached diagnostics and replay priorities.
//
// Each sample contributes
//
//	value*ValueWeight + reward + policy +
//	reconstruction*ReconstructionWeight +
//	consistency*ConsistencyWeight
//
// summed over unroll steps, where the value, reward and
// policy terms are cross-entropies against support
// projections of their targets and the reconstruction and
// consistency terms are mean squared errors.
//
// The reward term starts at the first recurrent step, as
// does the consistency term, which holds each predicted
// hidden state to a fresh, detached encoding of the true
// observation.
// Recurrent steps divide their backward contribution by
// the batch's per-position gradient scales, and hidden
// states are re-scaled by 0.5 on the backward pass each
// time they cross into the next dynamics application.
type Unroller struct {
	Model   muzero.Model
	Support muzero.Support

	ValueWeight          float64
	ReconstructionWeight float64
	ConsistencyWeight    float64

	// PERAlpha is the exponent applied to absolute value
	// errors when deriving replay priorities.
	PERAlpha float64
}

// An UnrollResult is the outcome of scoring one batch.
//
// Loss is the length-one result to propagate through for
// training.
// The remaining fields are detached diagnostics: the
// per-term losses are batch means of per-sample sums over
// steps, ValueErrors and RewardErrors hold the batch mean
// of the respective term at each step past the first, and
// Priorities holds one replay priority per sample and
// step.
type UnrollResult struct {
	Loss anydiff.Res

	TotalLoss          float64
	ValueLoss          float64
	RewardLoss         float64
	PolicyLoss         float64
	ReconstructionLoss float64
	ConsistencyLoss    float64

	ValueErrors  []float64
	RewardErrors []float64

	Priorities [][]float64
}

// Run unrolls the model over a batch and scores it.
//
// If selfSupervised is set, only the reconstruction and
// consistency terms carry gradient; the remaining heads
// are still evaluated for diagnostics and priorities.
// If batch.Weights is non-nil, each sample's loss is
// scaled by its importance weight before the batch mean.
func (u *Unroller) Run(batch *muzero.Batch, selfSupervised bool) (res *UnrollResult, err error) {
	defer essentials.AddCtxTo("unroll batch", &err)
	if err := batch.Check(); err != nil {
		return nil, err
	}
	c := batch.Observations[0].Creator()
	n := batch.Size

	res = &UnrollResult{Priorities: make([][]float64, n)}
	for i := range res.Priorities {
		res.Priorities[i] = make([]float64, batch.UnrollLen())
	}

	out := u.Model.InitialInference(anydiff.NewConst(batch.Observations[0]), n)
	if err := u.checkHeads(out, n); err != nil {
		return nil, err
	}
	perSample := u.unrollStep(batch, 0, out, selfSupervised, res)
	if batch.Weights != nil {
		perSample = anydiff.Mul(perSample, anydiff.NewConst(batch.Weights))
	}
	loss := anydiff.SumCols(&anydiff.Matrix{Data: perSample, Rows: 1, Cols: n})
	res.Loss = anydiff.Scale(loss, c.MakeNumeric(1/float64(n)))
	res.TotalLoss = numericFloat(anyvec.Sum(res.Loss.Output()))
	return res, nil
}

// unrollStep scores the model output at step i and recurs
// through the remaining steps, returning the per-sample
// loss summed over steps i..K.
func (u *Unroller) unrollStep(b *muzero.Batch, i int, out *muzero.Output, selfSup bool, r *UnrollResult) anydiff.Res {
	c := b.Observations[0].Creator()
	n := b.Size

	valueLoss := crossEntropyRows(out.Value, u.Support.FromScalars(c, b.TargetValues[i]), n)
	policyLoss := crossEntropyRows(out.Policy, b.TargetPolicies[i], n)
	reconLoss := meanSquaredRows(out.Reconstruction, b.Observations[i], n)

	r.ValueLoss += batchMean(valueLoss.Output())
	r.PolicyLoss += batchMean(policyLoss.Output())
	r.ReconstructionLoss += batchMean(reconLoss.Output())
	for j, p := range StepPriorities(u.Support, out.Value.Output(), b.TargetValues[i], u.PERAlpha) {
		r.Priorities[j][i] = p
	}

	total := anydiff.Scale(reconLoss, c.MakeNumeric(u.ReconstructionWeight))
	if !selfSup {
		total = anydiff.Add(total, anydiff.Scale(valueLoss, c.MakeNumeric(u.ValueWeight)))
		total = anydiff.Add(total, policyLoss)
	}
	if i > 0 {
		rewardLoss := crossEntropyRows(out.Reward, u.Support.FromScalars(c, b.TargetRewards[i]), n)
		stepReward := batchMean(rewardLoss.Output())
		r.RewardLoss += stepReward
		r.RewardErrors = append(r.RewardErrors, stepReward)
		r.ValueErrors = append(r.ValueErrors, batchMean(valueLoss.Output()))
		if !selfSup {
			total = anydiff.Add(total, rewardLoss)
		}
	}

	if i == 0 {
		if b.UnrollLen() == 1 {
			return total
		}
		return anydiff.Add(total, u.nextStep(b, i+1, out.HiddenState, selfSup, r))
	}

	reprTarget := u.Model.Representation(anydiff.NewConst(b.Observations[i]), n).Output()
	step := func(hidden anydiff.Res) anydiff.Res {
		consistency := meanSquaredRows(hidden, reprTarget, n)
		r.ConsistencyLoss += batchMean(consistency.Output())
		sum := anydiff.Add(total, anydiff.Scale(consistency, c.MakeNumeric(u.ConsistencyWeight)))
		return scaleChunkGradients(sum, invScalers(c, b.GradientScales[i]))
	}
	if i+1 == b.UnrollLen() {
		return step(out.HiddenState)
	}
	return anydiff.Pool(out.HiddenState, func(hidden anydiff.Res) anydiff.Res {
		return anydiff.Add(step(hidden), u.nextStep(b, i+1, hidden, selfSup, r))
	})
}

// nextStep advances the unroll by one action, halving the
// gradient that will flow back across the transition.
func (u *Unroller) nextStep(b *muzero.Batch, i int, hidden anydiff.Res, selfSup bool, r *UnrollResult) anydiff.Res {
	halved := scaleGradient(hidden, 0.5)
	out := u.Model.RecurrentInference(halved, b.Actions[i], b.Size)
	return u.unrollStep(b, i, out, selfSup, r)
}

// checkHeads verifies that the value and reward heads
// match the configured support width.
func (u *Unroller) checkHeads(out *muzero.Output, n int) error {
	bins := u.Support.Bins()
	if l := out.Value.Output().Len(); l != n*bins {
		return fmt.Errorf("value head output has length %d, expected %d", l, n*bins)
	}
	if l := out.Reward.Output().Len(); l != n*bins {
		return fmt.Errorf("reward head output has length %d, expected %d", l, n*bins)
	}
	return nil
}

// crossEntropyRows computes the per-row cross-entropy of
// packed logit rows against constant target distributions.
func crossEntropyRows(logits anydiff.Res, targets anyvec.Vector, rows int) anydiff.Res {
	if logits.Output().Len() != targets.Len() {
		panic("logit and target lengths must match")
	}
	cols := targets.Len() / rows
	logs := anydiff.LogSoftmax(logits, cols)
	prods := anydiff.Mul(logs, anydiff.NewConst(targets))
	sums := anydiff.SumCols(&anydiff.Matrix{Data: prods, Rows: rows, Cols: cols})
	return anydiff.Scale(sums, targets.Creator().MakeNumeric(-1.0))
}

// meanSquaredRows computes the per-row mean squared
// difference between a result and a constant target.
func meanSquaredRows(actual anydiff.Res, target anyvec.Vector, rows int) anydiff.Res {
	if actual.Output().Len() != target.Len() {
		panic("actual and target lengths must match")
	}
	cols := target.Len() / rows
	squares := anydiff.Square(anydiff.Sub(actual, anydiff.NewConst(target)))
	sums := anydiff.SumCols(&anydiff.Matrix{Data: squares, Rows: rows, Cols: cols})
	return anydiff.Scale(sums, target.Creator().MakeNumeric(1/float64(cols)))
}

// invScalers converts per-row divisors into the
// multipliers applied on the backward pass.
func invScalers(c anyvec.Creator, divisors []float64) anyvec.Vector {
	scalers := make([]float64, len(divisors))
	for i, d := range divisors {
		scalers[i] = 1 / d
	}
	return c.MakeVectorData(c.MakeNumericList(scalers))
}

// batchMean averages the components of a vector.
func batchMean(v anyvec.Vector) float64 {
	return numericFloat(anyvec.Sum(v)) / float64(v.Len())
}

func numericFloat(n anyvec.Numeric) float64 {
	switch n := n.(type) {
	case float32:
		return float64(n)
	case float64:
		return n
	}
	panic(fmt.Sprintf("unsupported numeric type: %T", n))
}
