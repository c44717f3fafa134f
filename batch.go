package muzero

import (
	"errors"
	"fmt"

	"github.com/unixpickle/anyvec"
)

// A SampleIndex identifies one sample in a replay
// buffer: a stored game and a position within it.
// Batches travel with one SampleIndex per sample so that
// priorities can be written back to their origin.
type SampleIndex struct {
	Game     int
	Position int
}

// A Batch is a set of aligned training tensors for Size
// samples unrolled over UnrollLen() consecutive steps.
//
// All step-indexed fields have the same length K+1,
// where K is the unroll horizon.
// Step 0 is the conditioning step: Actions[0],
// TargetRewards[0] and GradientScales[0] are carried for
// alignment but never consumed.
type Batch struct {
	// Observations[i] packs Size observation rows for
	// unroll step i.
	Observations []anyvec.Vector

	// Actions[i] holds the Size action indices leading
	// into step i.
	Actions [][]int

	// TargetValues[i] and TargetRewards[i] hold the
	// Size scalar targets for step i.
	TargetValues  [][]float64
	TargetRewards [][]float64

	// TargetPolicies[i] packs Size target policy rows
	// for step i.
	TargetPolicies []anyvec.Vector

	// Weights holds Size importance-sampling weights.
	// It is nil unless prioritized replay produced the
	// batch.
	Weights anyvec.Vector

	// GradientScales[i] holds the Size per-position
	// gradient denominators for step i: the number of
	// effective unroll continuations at that position.
	// Entries for steps >= 1 must be at least 1.
	GradientScales [][]float64

	// Size is the number of samples.
	Size int
}

// UnrollLen returns the number of aligned unroll steps,
// K+1.
func (b *Batch) UnrollLen() int {
	return len(b.Observations)
}

// Check validates the alignment invariants, returning an
// error describing the first violation.
func (b *Batch) Check() error {
	if b.Size < 1 {
		return errors.New("batch is empty")
	}
	steps := b.UnrollLen()
	if steps < 1 {
		return errors.New("batch has no unroll steps")
	}
	if len(b.Actions) != steps || len(b.TargetValues) != steps ||
		len(b.TargetRewards) != steps || len(b.TargetPolicies) != steps ||
		len(b.GradientScales) != steps {
		return errors.New("unroll lengths are misaligned")
	}
	for i := 0; i < steps; i++ {
		if b.Observations[i].Len()%b.Size != 0 {
			return fmt.Errorf("step %d: batch size does not divide observations", i)
		}
		if b.TargetPolicies[i].Len()%b.Size != 0 {
			return fmt.Errorf("step %d: batch size does not divide target policies", i)
		}
		if len(b.Actions[i]) != b.Size || len(b.TargetValues[i]) != b.Size ||
			len(b.TargetRewards[i]) != b.Size || len(b.GradientScales[i]) != b.Size {
			return fmt.Errorf("step %d: sample counts are misaligned", i)
		}
		if i > 0 {
			for _, s := range b.GradientScales[i] {
				if s < 1 {
					return fmt.Errorf("step %d: gradient scale below 1", i)
				}
			}
		}
	}
	if b.Weights != nil && b.Weights.Len() != b.Size {
		return errors.New("weight count does not match batch size")
	}
	return nil
}
