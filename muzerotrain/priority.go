package muzerotrain

import (
	"math"

	"github.com/unixpickle/anyvec"

	muzero "github.com/pikaju/muzero-g"
)

// StepPriorities derives replay priorities for one unroll
// step from a packed batch of predicted value logits.
//
// Each priority is |predicted - target|^alpha, where the
// prediction is the support decoding of the sample's logit
// row.
// The logits are treated as plain data, so no gradient
// flows through the estimate.
func StepPriorities(s muzero.Support, valueLogits anyvec.Vector, targets []float64, alpha float64) []float64 {
	preds := s.ToScalars(valueLogits, len(targets))
	res := make([]float64, len(targets))
	for i, target := range targets {
		res[i] = math.Pow(math.Abs(preds[i]-target), alpha)
	}
	return res
}
