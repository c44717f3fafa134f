package muzerotrain

import (
	"math"
	"testing"

	"github.com/unixpickle/anyvec/anyvec64"

	muzero "github.com/pikaju/muzero-g"
)

func TestStepPriorities(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	s := muzero.Support{Size: 3}

	// Zero logits decode to a value of zero, so the
	// priority is just |target|^alpha.
	logits := c.MakeVector(2 * s.Bins())
	targets := []float64{1.5, -0.25}

	got := StepPriorities(s, logits, targets, 0.7)
	if len(got) != len(targets) {
		t.Fatalf("expected %d priorities, got %d", len(targets), len(got))
	}
	for i, target := range targets {
		expected := math.Pow(math.Abs(target), 0.7)
		if math.Abs(got[i]-expected) > 1e-9 {
			t.Errorf("bad priority %d: %v (expected %v)", i, got[i], expected)
		}
	}

	for i, p := range StepPriorities(s, logits, targets, 0) {
		if p != 1 {
			t.Errorf("priority %d with zero alpha: %v (expected 1)", i, p)
		}
	}
}
