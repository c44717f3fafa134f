package muzero

import (
	"math"

	"github.com/unixpickle/anyvec"
)

// supportEpsilon is the linear term of the invertible
// value-scaling transform.
const supportEpsilon = 0.001

// A Support is a fixed symmetric categorical support for
// representing scalar values and rewards as probability
// distributions over integer bins.
//
// Scalars pass through the invertible contraction
//
//	h(x) = sign(x)*(sqrt(|x|+1)-1) + 0.001*x
//
// before projection, so a small number of bins covers a
// large value range.
// The same transform pair is used for loss targets and
// for decoding predictions, keeping the two numerically
// consistent.
type Support struct {
	// Size is the half-width; bins span [-Size, Size].
	Size int
}

// Bins returns the number of bins, 2*s.Size+1.
func (s Support) Bins() int {
	return 2*s.Size + 1
}

// FromScalars projects scalars onto the support,
// returning a packed matrix with one row per value and
// Bins() columns.
//
// Each row is a two-hot distribution over the bins
// adjacent to the transformed value, clamped to the
// support range.
func (s Support) FromScalars(c anyvec.Creator, values []float64) anyvec.Vector {
	bins := s.Bins()
	data := make([]float64, len(values)*bins)
	for i, x := range values {
		y := scaleValue(x)
		y = math.Max(-float64(s.Size), math.Min(float64(s.Size), y))
		floor := math.Floor(y)
		frac := y - floor
		low := int(floor) + s.Size
		data[i*bins+low] = 1 - frac
		if low+1 < bins {
			data[i*bins+low+1] = frac
		}
	}
	return c.MakeVectorData(c.MakeNumericList(data))
}

// ToScalars decodes a packed matrix of n rows of
// unnormalized log-probabilities back into scalars by
// taking each row's expectation over the bin values and
// inverting the scaling transform.
func (s Support) ToScalars(logits anyvec.Vector, n int) []float64 {
	bins := s.Bins()
	if logits.Len() != n*bins {
		panic("support size does not divide logit count")
	}
	probs := logits.Copy()
	anyvec.LogSoftmax(probs, bins)
	anyvec.Exp(probs)
	flat := vectorFloats(probs)

	res := make([]float64, n)
	for i := range res {
		var mean float64
		for j := 0; j < bins; j++ {
			mean += flat[i*bins+j] * float64(j-s.Size)
		}
		res[i] = unscaleValue(mean)
	}
	return res
}

func scaleValue(x float64) float64 {
	y := math.Sqrt(math.Abs(x)+1) - 1
	return math.Copysign(y, x) + supportEpsilon*x
}

func unscaleValue(y float64) float64 {
	root := math.Sqrt(1 + 4*supportEpsilon*(math.Abs(y)+1+supportEpsilon))
	x := math.Pow((root-1)/(2*supportEpsilon), 2) - 1
	return math.Copysign(x, y)
}

func vectorFloats(v anyvec.Vector) []float64 {
	switch data := v.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic("unsupported numeric type")
	}
}
