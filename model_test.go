package muzero

import (
	"reflect"
	"testing"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// varsModel is a Model with nothing but parameters, for
// snapshot tests.
type varsModel struct {
	params []*anydiff.Var
}

func newVarsModel(c anyvec.Creator, data ...[]float64) *varsModel {
	m := &varsModel{}
	for _, d := range data {
		m.params = append(m.params,
			anydiff.NewVar(c.MakeVectorData(c.MakeNumericList(d))))
	}
	return m
}

func (v *varsModel) InitialInference(obs anydiff.Res, n int) *Output {
	panic("not used")
}

func (v *varsModel) RecurrentInference(hidden anydiff.Res, actions []int, n int) *Output {
	panic("not used")
}

func (v *varsModel) Representation(obs anydiff.Res, n int) anydiff.Res {
	panic("not used")
}

func (v *varsModel) Parameters() []*anydiff.Var {
	return v.params
}

func TestWeightsSnapshot(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	m := newVarsModel(c, []float64{1, 2}, []float64{3})
	w := WeightsOf(m)

	m.params[0].Vector.Scale(c.MakeNumeric(10.0))
	if w[0].Data().([]float64)[0] != 1 {
		t.Error("snapshot aliases the live parameters")
	}

	if err := w.Apply(m); err != nil {
		t.Fatal(err)
	}
	got := m.params[0].Vector.Data().([]float64)
	if got[0] != 1 || got[1] != 2 {
		t.Errorf("apply did not restore: %v", got)
	}

	if err := w.Apply(newVarsModel(c, []float64{1, 2})); err == nil {
		t.Error("expected an error for a parameter count mismatch")
	}
	if err := w.Apply(newVarsModel(c, []float64{1, 2}, []float64{3, 4})); err == nil {
		t.Error("expected an error for a parameter size mismatch")
	}

	w2 := w.Copy()
	w[0].Scale(c.MakeNumeric(5.0))
	if w2[0].Data().([]float64)[0] != 1 {
		t.Error("copy aliases the original snapshot")
	}
}

func TestOneHotActions(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	got := OneHotActions(c, []int{2, 0}, 3).Data().([]float64)
	expected := []float64{0, 0, 1, 1, 0, 0}
	if !reflect.DeepEqual(got, expected) {
		t.Errorf("bad one-hot rows: %v (expected %v)", got, expected)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected a panic for an out-of-range action")
		}
	}()
	OneHotActions(c, []int{3}, 3)
}
