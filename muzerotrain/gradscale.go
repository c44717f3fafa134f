package muzerotrain

import (
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

// scaleGradient scales the gradient flowing backward
// through a result without changing its forward output.
func scaleGradient(in anydiff.Res, scale float64) anydiff.Res {
	return &gradScaleRes{In: in, Scale: scale}
}

// scaleChunkGradients scales the backward gradient of each
// fixed-size chunk of a result by its own multiplier,
// leaving the forward output unchanged.
//
// The number of scalers must evenly divide the length of
// the result.
func scaleChunkGradients(in anydiff.Res, scalers anyvec.Vector) anydiff.Res {
	if in.Output().Len()%scalers.Len() != 0 {
		panic("scaler count must divide input length")
	}
	return &chunkGradScaleRes{In: in, Scalers: scalers}
}

type gradScaleRes struct {
	In    anydiff.Res
	Scale float64
}

func (g *gradScaleRes) Output() anyvec.Vector {
	return g.In.Output()
}

func (g *gradScaleRes) Vars() anydiff.VarSet {
	return g.In.Vars()
}

func (g *gradScaleRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	u.Scale(u.Creator().MakeNumeric(g.Scale))
	g.In.Propagate(u, grad)
}

type chunkGradScaleRes struct {
	In      anydiff.Res
	Scalers anyvec.Vector
}

func (c *chunkGradScaleRes) Output() anyvec.Vector {
	return c.In.Output()
}

func (c *chunkGradScaleRes) Vars() anydiff.VarSet {
	return c.In.Vars()
}

func (c *chunkGradScaleRes) Propagate(u anyvec.Vector, grad anydiff.Grad) {
	anyvec.ScaleChunks(u, c.Scalers)
	c.In.Propagate(u, grad)
}
