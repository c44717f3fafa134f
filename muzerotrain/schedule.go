package muzerotrain

import "math"

// A Schedule is a continuous exponential learning-rate
// decay.
//
// It is a pure function of the step count: the rate is
// recomputed on every call and never cached, so LR(0)
// returns Init exactly and repeated calls with the same
// step agree.
type Schedule struct {
	Init       float64
	DecayRate  float64
	DecaySteps float64
}

// LR returns Init * DecayRate^(step/DecaySteps).
func (s Schedule) LR(step int) float64 {
	return s.Init * math.Pow(s.DecayRate, float64(step)/s.DecaySteps)
}
