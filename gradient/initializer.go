package gradient

import (
	"github.com/notargets/fvgrad/utils"
)

func (bc BCScalar) ab(f int) (a, b float64) {
	a, b = 0., 1.
	if bc.A != nil {
		a = bc.A[f]
	}
	if bc.B != nil {
		b = bc.B[f]
	}
	return
}

func (bc BCVector) ab(f int) (a [3]float64, b [3][3]float64) {
	b = [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	if bc.A != nil {
		a = bc.A[f]
	}
	if bc.B != nil {
		b = bc.B[f]
	}
	return
}

func (bc BCTensor) ab(f int) (a [6]float64, b [6][6]float64) {
	if bc.A != nil {
		a = bc.A[f]
	}
	if bc.B != nil {
		b = bc.B[f]
	} else {
		for i := 0; i < 6; i++ {
			b[i][i] = 1
		}
	}
	return
}

// faceWeight returns the interpolation factor toward the first adjacent
// cell, biased toward the less-diffusive side when a coefficient weight is
// present. Anisotropic weights are projected onto the face normal before
// the same harmonic bias.
func (ctx *Context) faceWeight(f, wStride int, cWeight []float64) (kt float64) {
	var (
		m  = ctx.M
		fc = m.IFaceCells[f]
		w  = m.Weight[f]
	)
	kt = w
	if cWeight == nil {
		return
	}
	var wi, wj float64
	switch wStride {
	case 6:
		n := m.IFaceNormal[f]
		nn := utils.Scale3(1./utils.Norm3(n), n)
		var ki, kj utils.Sym3
		copy(ki[:], cWeight[6*fc[0]:6*fc[0]+6])
		copy(kj[:], cWeight[6*fc[1]:6*fc[1]+6])
		wi = utils.Dot3(nn, utils.SymVec3(ki, nn))
		wj = utils.Dot3(nn, utils.SymVec3(kj, nn))
	default:
		wi, wj = cWeight[fc[0]], cWeight[fc[1]]
	}
	den := w*wi + (1.-w)*wj
	if den != 0 {
		kt = w * wi / den
	}
	return
}

// initScalarGradient seeds grad with the non-reconstructed Green-Gauss
// gradient: face-interpolated values times face normals, divided by the
// cell volume. A constant field yields exactly zero because the face
// normals of a closed cell sum to zero.
func (ctx *Context) initScalarGradient(opt *Options, bc BCScalar, v, cWeight []float64,
	grad [][3]float64) {
	var (
		m   = ctx.M
		inc = float64(opt.Inc)
	)
	for c := range grad {
		grad[c] = utils.Vec3{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			n  = m.IFaceNormal[f]
			kt = ctx.faceWeight(f, opt.WStride, cWeight)
		)
		pfac := kt*v[fc[0]] + (1.-kt)*v[fc[1]]
		for d := 0; d < 3; d++ {
			add(&grad[fc[0]][d], pfac*n[d])
			add(&grad[fc[1]][d], -pfac*n[d])
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			n    = m.BFaceNormal[f]
			pfac float64
		)
		if opt.Coupling != nil && opt.Coupling.IsCoupledFace(f) {
			dv, ok := opt.Coupling.CouplingDelta(f, v[cell])
			if !ok {
				dv = 0
			}
			pfac = v[cell] + 0.5*dv
		} else {
			a, b := bc.ab(f)
			pfac = inc*a + b*v[cell]
		}
		for d := 0; d < 3; d++ {
			add(&grad[cell][d], pfac*n[d])
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = utils.Vec3{}
			return
		}
		dvol := 1. / m.CellVol[c]
		for d := 0; d < 3; d++ {
			grad[c][d] *= dvol
		}
	})
}

// initVectorGradient is the vector analogue; the BC slope matrix couples
// components at the boundary.
func (ctx *Context) initVectorGradient(opt *Options, bc BCVector, v [][3]float64,
	cWeight []float64, grad [][3][3]float64) {
	var (
		m   = ctx.M
		inc = float64(opt.Inc)
	)
	for c := range grad {
		grad[c] = [3][3]float64{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			n  = m.IFaceNormal[f]
			kt = ctx.faceWeight(f, opt.WStride, cWeight)
		)
		for k := 0; k < 3; k++ {
			pfac := kt*v[fc[0]][k] + (1.-kt)*v[fc[1]][k]
			for d := 0; d < 3; d++ {
				add(&grad[fc[0]][k][d], pfac*n[d])
				add(&grad[fc[1]][k][d], -pfac*n[d])
			}
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			n    = m.BFaceNormal[f]
			a, b = bc.ab(f)
		)
		for k := 0; k < 3; k++ {
			pfac := inc * a[k]
			for l := 0; l < 3; l++ {
				pfac += b[k][l] * v[cell][l]
			}
			for d := 0; d < 3; d++ {
				add(&grad[cell][k][d], pfac*n[d])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = [3][3]float64{}
			return
		}
		dvol := 1. / m.CellVol[c]
		for k := 0; k < 3; k++ {
			for d := 0; d < 3; d++ {
				grad[c][k][d] *= dvol
			}
		}
	})
}

// initTensorGradient is the symmetric-tensor analogue.
func (ctx *Context) initTensorGradient(opt *Options, bc BCTensor, v [][6]float64,
	grad [][6][3]float64) {
	var (
		m   = ctx.M
		inc = float64(opt.Inc)
	)
	for c := range grad {
		grad[c] = [6][3]float64{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			n  = m.IFaceNormal[f]
			w  = m.Weight[f]
		)
		for k := 0; k < 6; k++ {
			pfac := w*v[fc[0]][k] + (1.-w)*v[fc[1]][k]
			for d := 0; d < 3; d++ {
				add(&grad[fc[0]][k][d], pfac*n[d])
				add(&grad[fc[1]][k][d], -pfac*n[d])
			}
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			n    = m.BFaceNormal[f]
			a, b = bc.ab(f)
		)
		for k := 0; k < 6; k++ {
			pfac := inc * a[k]
			for l := 0; l < 6; l++ {
				pfac += b[k][l] * v[cell][l]
			}
			for d := 0; d < 3; d++ {
				add(&grad[cell][k][d], pfac*n[d])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = [6][3]float64{}
			return
		}
		dvol := 1. / m.CellVol[c]
		for k := 0; k < 6; k++ {
			for d := 0; d < 3; d++ {
				grad[c][k][d] *= dvol
			}
		}
	})
}
