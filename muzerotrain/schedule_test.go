package muzerotrain

import (
	"math"
	"testing"
)

func TestScheduleLR(t *testing.T) {
	s := Schedule{Init: 0.02, DecayRate: 0.1, DecaySteps: 1000}
	if lr := s.LR(0); lr != 0.02 {
		t.Errorf("bad initial lr: %v", lr)
	}
	if lr := s.LR(1000); math.Abs(lr-0.002) > 1e-12 {
		t.Errorf("bad lr after one decay period: %v", lr)
	}

	prev := s.LR(0)
	for _, step := range []int{1, 10, 500, 1000, 5000} {
		lr := s.LR(step)
		if lr >= prev {
			t.Errorf("lr did not decay at step %d: %v >= %v", step, lr, prev)
		}
		prev = lr
	}

	if s.LR(123) != s.LR(123) {
		t.Error("lr is not deterministic")
	}
}
