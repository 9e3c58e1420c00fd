package gradient

import (
	"github.com/notargets/fvgrad/utils"
)

// The combined method seeds a least-squares gradient, optionally clips it,
// and finishes with a single Green-Gauss balance that uses the seed for the
// face-midpoint reconstruction. No matrix correction is applied to the
// final divide, so the result inherits the least-squares accuracy away
// from distorted cells while keeping the conservative face balance.

func (ctx *Context) greenLsqScalar(name string, opt *Options, bc BCScalar,
	v, cWeight []float64, fExt [][3]float64, grad [][3]float64) {
	var (
		m     = ctx.M
		inc   = float64(opt.Inc)
		rGrad = make([][3]float64, m.NCellsExt)
	)
	ctx.lsqScalarGradient(name, opt, bc, v, cWeight, fExt, rGrad)
	ctx.clipScalar(name, opt, v, rGrad)
	ctx.Sync.SyncVector(rGrad)
	for c := range grad {
		grad[c] = utils.Vec3{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			kt = ctx.faceWeight(f, opt.WStride, cWeight)
		)
		pfac := kt*v[fc[0]] + (1.-kt)*v[fc[1]]
		for d := 0; d < 3; d++ {
			pfac += 0.5 * m.Dofij[f][d] * (rGrad[fc[0]][d] + rGrad[fc[1]][d])
		}
		for d := 0; d < 3; d++ {
			add(&grad[fc[0]][d], pfac*m.IFaceNormal[f][d])
			add(&grad[fc[1]][d], -pfac*m.IFaceNormal[f][d])
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		cell := m.BFaceCell[f]
		var pfac float64
		if opt.Coupling != nil && opt.Coupling.IsCoupledFace(f) {
			dv, _ := opt.Coupling.CouplingDelta(f, v[cell])
			pfac = v[cell] + 0.5*dv
		} else {
			a, b := bc.ab(f)
			pfac = inc*a + b*(v[cell]+utils.Dot3(rGrad[cell], m.DiipB[f]))
		}
		for d := 0; d < 3; d++ {
			add(&grad[cell][d], pfac*m.BFaceNormal[f][d])
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = utils.Vec3{}
			return
		}
		dv := 1. / m.CellVol[c]
		for d := 0; d < 3; d++ {
			grad[c][d] *= dv
		}
	})
}

func (ctx *Context) greenLsqVector(name string, opt *Options, bc BCVector,
	v [][3]float64, cWeight []float64, grad [][3][3]float64) {
	var (
		m     = ctx.M
		inc   = float64(opt.Inc)
		rGrad = make([][3][3]float64, m.NCellsExt)
	)
	ctx.lsqVectorGradient(name, opt, bc, v, cWeight, rGrad)
	ctx.clipVector(name, opt, v, rGrad)
	ctx.Sync.SyncMat3(rGrad)
	for c := range grad {
		grad[c] = [3][3]float64{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			kt = ctx.faceWeight(f, opt.WStride, cWeight)
		)
		for i := 0; i < 3; i++ {
			pfac := kt*v[fc[0]][i] + (1.-kt)*v[fc[1]][i]
			for d := 0; d < 3; d++ {
				pfac += 0.5 * m.Dofij[f][d] * (rGrad[fc[0]][i][d] + rGrad[fc[1]][i][d])
			}
			for d := 0; d < 3; d++ {
				add(&grad[fc[0]][i][d], pfac*m.IFaceNormal[f][d])
				add(&grad[fc[1]][i][d], -pfac*m.IFaceNormal[f][d])
			}
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			a, b = bc.ab(f)
		)
		for i := 0; i < 3; i++ {
			pfac := inc * a[i]
			for k := 0; k < 3; k++ {
				pfac += b[i][k] * (v[cell][k] + utils.Dot3(rGrad[cell][k], m.DiipB[f]))
			}
			for d := 0; d < 3; d++ {
				add(&grad[cell][i][d], pfac*m.BFaceNormal[f][d])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = [3][3]float64{}
			return
		}
		dv := 1. / m.CellVol[c]
		for i := 0; i < 3; i++ {
			for d := 0; d < 3; d++ {
				grad[c][i][d] *= dv
			}
		}
	})
}

func (ctx *Context) greenLsqTensor(name string, opt *Options, bc BCTensor,
	v [][6]float64, grad [][6][3]float64) {
	var (
		m     = ctx.M
		inc   = float64(opt.Inc)
		rGrad = make([][6][3]float64, m.NCellsExt)
	)
	ctx.lsqTensorGradient(name, opt, bc, v, rGrad)
	ctx.clipTensor(name, opt, v, rGrad)
	ctx.Sync.SyncSymGrad(rGrad)
	for c := range grad {
		grad[c] = [6][3]float64{}
	}
	ctx.iFaceScatter(func(f int, add addFunc) {
		var (
			fc = m.IFaceCells[f]
			kt = m.Weight[f]
		)
		for i := 0; i < 6; i++ {
			pfac := kt*v[fc[0]][i] + (1.-kt)*v[fc[1]][i]
			for d := 0; d < 3; d++ {
				pfac += 0.5 * m.Dofij[f][d] * (rGrad[fc[0]][i][d] + rGrad[fc[1]][i][d])
			}
			for d := 0; d < 3; d++ {
				add(&grad[fc[0]][i][d], pfac*m.IFaceNormal[f][d])
				add(&grad[fc[1]][i][d], -pfac*m.IFaceNormal[f][d])
			}
		}
	})
	ctx.bFaceScatter(func(f int, add addFunc) {
		var (
			cell = m.BFaceCell[f]
			a, b = bc.ab(f)
		)
		for i := 0; i < 6; i++ {
			pfac := inc * a[i]
			for k := 0; k < 6; k++ {
				pfac += b[i][k] * (v[cell][k] + utils.Dot3(rGrad[cell][k], m.DiipB[f]))
			}
			for d := 0; d < 3; d++ {
				add(&grad[cell][i][d], pfac*m.BFaceNormal[f][d])
			}
		}
	})
	ctx.cellLoop(func(c int) {
		if m.Disabled[c] {
			grad[c] = [6][3]float64{}
			return
		}
		dv := 1. / m.CellVol[c]
		for i := 0; i < 6; i++ {
			for d := 0; d < 3; d++ {
				grad[c][i][d] *= dv
			}
		}
	})
}
