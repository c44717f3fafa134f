package muzerotrain

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

func TestScaleGradient(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVectorData(c.MakeNumericList([]float64{1, -2, 3})))
	scaled := scaleGradient(v, 0.5)

	if !reflect.DeepEqual(scaled.Output().Data(), v.Vector.Data()) {
		t.Errorf("forward pass changed: %v", scaled.Output().Data())
	}
	if !scaled.Vars().Has(v) {
		t.Error("variable missing from the result")
	}

	grad := anydiff.NewGrad(v)
	upstream := c.MakeVectorData(c.MakeNumericList([]float64{2, 4, 6}))
	scaled.Propagate(upstream, grad)
	expected := []float64{1, 2, 3}
	if !reflect.DeepEqual(grad[v].Data(), expected) {
		t.Errorf("bad gradient: %v (expected %v)", grad[v].Data(), expected)
	}
}

func TestScaleChunkGradients(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	data := []float64{1, 1, 1, 1, 1, 1}
	v := anydiff.NewVar(c.MakeVectorData(c.MakeNumericList(data)))
	scalers := c.MakeVectorData(c.MakeNumericList([]float64{1, 0.5, 0.25}))
	scaled := scaleChunkGradients(v, scalers)

	if !reflect.DeepEqual(scaled.Output().Data(), v.Vector.Data()) {
		t.Errorf("forward pass changed: %v", scaled.Output().Data())
	}

	grad := anydiff.NewGrad(v)
	scaled.Propagate(anyvec.Ones(c, 6), grad)
	expected := []float64{1, 1, 0.5, 0.5, 0.25, 0.25}
	if !reflect.DeepEqual(grad[v].Data(), expected) {
		t.Errorf("bad gradient: %v (expected %v)", grad[v].Data(), expected)
	}
}

func TestScaleChunkGradientsBadCount(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	v := anydiff.NewVar(c.MakeVector(6))
	defer func() {
		if recover() == nil {
			t.Error("expected a panic for a scaler count that does not divide")
		}
	}()
	scaleChunkGradients(v, c.MakeVector(4))
}
